package workflow

import (
	"fmt"
	"strings"
)

// kindLabels holds the display noun for each entity kind in English and
// Indonesian. Rejection messages are assembled from these tables so the
// engine itself carries no locale branching.
var kindLabels = map[Kind]struct {
	en string
	id string
}{
	KindEncounter: {en: "encounter", id: "kunjungan"},
	KindTransfer:  {en: "department transfer", id: "transfer antar unit"},
	KindReferral:  {en: "referral letter", id: "surat rujukan"},
	KindActivity:  {en: "scheduled activity", id: "tindakan terjadwal"},
}

// stateLabels provides Indonesian display names for status tokens that
// appear in localized rejection messages. English messages use the raw
// token, which doubles as the wire value.
var stateLabels = map[State]string{
	EncounterPlanned:           "direncanakan",
	EncounterArrived:           "tiba",
	EncounterTriaged:           "tertriase",
	EncounterInProgress:        "berlangsung",
	EncounterFinished:          "selesai",
	EncounterCancelled:         "dibatalkan",
	TransferRequested:          "diminta",
	TransferPendingApproval:    "menunggu persetujuan",
	TransferApproved:           "disetujui",
	TransferAccepted:           "diterima",
	TransferInTransit:          "dalam perjalanan",
	TransferCompleted:          "selesai",
	TransferRejected:           "ditolak",
	ReferralDraft:              "draf",
	ReferralPendingSignature:   "menunggu tanda tangan",
	ReferralSigned:             "ditandatangani",
	ReferralSent:               "terkirim",
	ReferralPatientTransferred: "pasien dipindahkan",
	ActivityPending:            "menunggu",
	ActivityScheduled:          "terjadwal",
}

func localState(s State) string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}

func joinStates(states []State) string {
	if len(states) == 0 {
		return "none"
	}
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinLocalStates(states []State) string {
	if len(states) == 0 {
		return "tidak ada"
	}
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = localState(s)
	}
	return strings.Join(parts, ", ")
}

// rejectionMessages builds the English and Indonesian message pair for a
// rejection code.
func rejectionMessages(kind Kind, code Code, from, to State, allowed []State) (string, string) {
	label := kindLabels[kind]

	switch code {
	case CodeTargetNull:
		return fmt.Sprintf("no target status given for %s", label.en),
			fmt.Sprintf("status tujuan %s tidak diisi", label.id)
	case CodeSameState:
		return fmt.Sprintf("%s is already in status %q", label.en, from),
			fmt.Sprintf("%s sudah berstatus %q", label.id, localState(from))
	case CodeTerminalState:
		return fmt.Sprintf("%s is in terminal status %q and cannot change", label.en, from),
			fmt.Sprintf("%s sudah berstatus akhir %q dan tidak dapat diubah", label.id, localState(from))
	case CodeTransitionNotAllowed:
		return fmt.Sprintf("%s cannot move from %q to %q; allowed: %s",
				label.en, from, to, joinStates(allowed)),
			fmt.Sprintf("%s tidak dapat berubah dari %q ke %q; yang diizinkan: %s",
				label.id, localState(from), localState(to), joinLocalStates(allowed))
	}
	return "transition rejected", "transisi ditolak"
}
