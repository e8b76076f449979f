package workflow

import (
	"fmt"
	"time"

	"github.com/wardflow/wardflow/internal/platform/clock"
)

// Code classifies why a transition was rejected.
type Code string

const (
	CodeTargetNull           Code = "target-null"
	CodeSameState            Code = "same-state"
	CodeTerminalState        Code = "terminal-state"
	CodeTransitionNotAllowed Code = "transition-not-allowed"
)

// Rejection is the typed error returned when a transition is denied. It
// carries a machine-readable code, the allowed targets for caller guidance,
// and a bilingual human message.
type Rejection struct {
	Kind    Kind
	From    State
	To      State
	Code    Code
	Allowed []State
	// Message is the English display string; MessageLocal the Indonesian one.
	Message      string
	MessageLocal string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// Attempt records an accepted transition. The caller applies the state
// change and writes the history entry; the engine only decides.
type Attempt struct {
	Kind   Kind
	From   State
	To     State
	Actor  string
	Reason string
	At     time.Time
}

// Engine validates transition requests against the per-kind graphs. It is
// stateless apart from the injected clock and safe for concurrent use.
type Engine struct {
	clock clock.Clock
}

func NewEngine(clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{clock: clk}
}

// Attempt decides whether current may move to target for the given kind.
// On acceptance it returns a timestamped Attempt; on denial it returns a
// *Rejection and mutates nothing. Checks are ordered so callers get the
// most specific code: missing target, identity move, terminal source,
// then the adjacency table.
func (e *Engine) Attempt(kind Kind, current, target State, actor, reason string) (*Attempt, error) {
	if target == "" {
		return nil, e.reject(kind, current, target, CodeTargetNull)
	}
	if current == target {
		return nil, e.reject(kind, current, target, CodeSameState)
	}
	if IsTerminal(kind, current) {
		return nil, e.reject(kind, current, target, CodeTerminalState)
	}
	if !CanTransition(kind, current, target) {
		return nil, e.reject(kind, current, target, CodeTransitionNotAllowed)
	}
	return &Attempt{
		Kind:   kind,
		From:   current,
		To:     target,
		Actor:  actor,
		Reason: reason,
		At:     e.clock.Now(),
	}, nil
}

func (e *Engine) reject(kind Kind, from, to State, code Code) *Rejection {
	allowed := AllowedTransitions(kind, from)
	msg, local := rejectionMessages(kind, code, from, to, allowed)
	return &Rejection{
		Kind:         kind,
		From:         from,
		To:           to,
		Code:         code,
		Allowed:      allowed,
		Message:      msg,
		MessageLocal: local,
	}
}
