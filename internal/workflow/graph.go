// Package workflow implements the shared status state machine used by
// encounters, department transfers, referral letters, and scheduled
// activities. Each entity kind declares an adjacency table of allowed
// transitions; the Engine validates requested transitions against that
// table and produces typed, bilingual rejections. Nothing in this package
// performs I/O or mutates entity state.
package workflow

import "fmt"

// Kind identifies which entity's state machine governs a transition.
type Kind string

const (
	KindEncounter Kind = "encounter"
	KindTransfer  Kind = "transfer"
	KindReferral  Kind = "referral"
	KindActivity  Kind = "activity"
)

// State is a status token within one entity kind's state machine.
type State string

// Encounter statuses.
const (
	EncounterPlanned    State = "planned"
	EncounterArrived    State = "arrived"
	EncounterTriaged    State = "triaged"
	EncounterInProgress State = "in-progress"
	EncounterFinished   State = "finished"
	EncounterCancelled  State = "cancelled"
)

// Department transfer statuses.
const (
	TransferRequested       State = "requested"
	TransferPendingApproval State = "pending-approval"
	TransferApproved        State = "approved"
	TransferAccepted        State = "accepted"
	TransferInTransit       State = "in-transit"
	TransferCompleted       State = "completed"
	TransferRejected        State = "rejected"
	TransferCancelled       State = "cancelled"
)

// Referral letter statuses.
const (
	ReferralDraft              State = "draft"
	ReferralPendingSignature   State = "pending-signature"
	ReferralSigned             State = "signed"
	ReferralSent               State = "sent"
	ReferralAccepted           State = "accepted"
	ReferralPatientTransferred State = "patient-transferred"
	ReferralCompleted          State = "completed"
	ReferralRejected           State = "rejected"
	ReferralCancelled          State = "cancelled"
)

// Scheduled activity (procedure / imaging order) statuses.
const (
	ActivityPending    State = "pending"
	ActivityScheduled  State = "scheduled"
	ActivityInProgress State = "in-progress"
	ActivityCompleted  State = "completed"
	ActivityCancelled  State = "cancelled"
)

// transitions maps each kind's state to the set of states it may move to.
// Terminal states carry an empty list so they are distinguishable from
// unknown states. A state never lists itself.
var transitions = map[Kind]map[State][]State{
	KindEncounter: {
		EncounterPlanned:    {EncounterArrived, EncounterCancelled},
		EncounterArrived:    {EncounterTriaged, EncounterCancelled},
		EncounterTriaged:    {EncounterInProgress, EncounterCancelled},
		EncounterInProgress: {EncounterFinished},
		EncounterFinished:   {},
		EncounterCancelled:  {},
	},
	KindTransfer: {
		TransferRequested:       {TransferPendingApproval, TransferAccepted, TransferRejected, TransferCancelled},
		TransferPendingApproval: {TransferApproved, TransferRejected, TransferCancelled},
		TransferApproved:        {TransferAccepted, TransferCancelled},
		TransferAccepted:        {TransferInTransit, TransferCancelled},
		TransferInTransit:       {TransferCompleted},
		TransferCompleted:       {},
		TransferRejected:        {},
		TransferCancelled:       {},
	},
	KindReferral: {
		ReferralDraft:              {ReferralPendingSignature, ReferralCancelled},
		ReferralPendingSignature:   {ReferralSigned, ReferralCancelled},
		ReferralSigned:             {ReferralSent, ReferralCancelled},
		ReferralSent:               {ReferralAccepted, ReferralRejected},
		ReferralAccepted:           {ReferralPatientTransferred, ReferralCancelled},
		ReferralPatientTransferred: {ReferralCompleted},
		ReferralCompleted:          {},
		ReferralRejected:           {},
		ReferralCancelled:          {},
	},
	KindActivity: {
		ActivityPending:    {ActivityScheduled, ActivityCancelled},
		ActivityScheduled:  {ActivityInProgress, ActivityPending, ActivityCancelled},
		ActivityInProgress: {ActivityCompleted},
		ActivityCompleted:  {},
		ActivityCancelled:  {},
	},
}

// initialStates records where each lifecycle must begin. Constructors may
// not start an entity anywhere else.
var initialStates = map[Kind]State{
	KindEncounter: EncounterPlanned,
	KindTransfer:  TransferRequested,
	KindReferral:  ReferralDraft,
	KindActivity:  ActivityPending,
}

// Initial returns the mandatory starting state for a kind.
func Initial(kind Kind) State {
	return initialStates[kind]
}

// Known reports whether state is a declared status of kind.
func Known(kind Kind, state State) bool {
	_, ok := transitions[kind][state]
	return ok
}

// ParseState validates a raw status string against a kind's state machine.
func ParseState(kind Kind, raw string) (State, error) {
	s := State(raw)
	if !Known(kind, s) {
		return "", fmt.Errorf("unknown %s status %q", kind, raw)
	}
	return s, nil
}

// AllowedTransitions returns a copy of the states reachable from state.
// Unknown states yield nil.
func AllowedTransitions(kind Kind, state State) []State {
	targets, ok := transitions[kind][state]
	if !ok || len(targets) == 0 {
		return nil
	}
	out := make([]State, len(targets))
	copy(out, targets)
	return out
}

// IsTerminal reports whether state is declared for kind and has no
// outgoing transitions. Unknown states are not terminal, they are invalid.
func IsTerminal(kind Kind, state State) bool {
	targets, ok := transitions[kind][state]
	return ok && len(targets) == 0
}

// CanTransition reports whether from may move to to. Unknown states and
// identity moves (from == to) are always false.
func CanTransition(kind Kind, from, to State) bool {
	if from == to {
		return false
	}
	for _, t := range transitions[kind][from] {
		if t == to {
			return true
		}
	}
	return false
}
