package subscription

import (
	"fmt"
	"slices"
	"time"
)

// TransitionError reports a disallowed status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid subscription transition %s -> %s", e.From, e.To)
}

// allowedTransitions is the complete transition table. Trial is one-way:
// once a subscription leaves trialing it can never return. CANCELED is
// terminal except for reactivation before period end, which transition
// guards with the record's reactivation window.
var allowedTransitions = map[Status][]Status{
	StatusTrialing:   {StatusActive, StatusPastDue, StatusCanceled},
	StatusActive:     {StatusPastDue, StatusCanceled},
	StatusPastDue:    {StatusActive, StatusCanceled},
	StatusIncomplete: {StatusActive, StatusCanceled},
	StatusCanceled:   {StatusActive},
}

// CanTransition reports whether from -> to is allowed. Self-transitions are
// permitted everywhere: a replayed event lands on the same status.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return slices.Contains(allowedTransitions[from], to)
}

// transition mutates the record's status after validating the change.
// CANCELED -> ACTIVE additionally requires a live reactivation window.
func (r *Record) transition(to Status, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidRecord, to)
	}
	if !CanTransition(r.Status, to) {
		return &TransitionError{From: r.Status, To: to}
	}
	if r.Status == StatusCanceled && to == StatusActive && !r.CanReactivateAt(now) {
		return ErrAlreadyEnded
	}
	r.Status = to
	return nil
}
