package matching

import (
	"fmt"

	dErrors "secretsanta/pkg/domain-errors"
)

// Reason explains why no chain could be produced.
type Reason string

const (
	// ReasonTooFewParticipants: fewer than three participants cannot form a
	// chain without a self-pair or a mutual pair.
	ReasonTooFewParticipants Reason = "too_few_participants"
	// ReasonUnsatisfiable: every cycle over the participants uses a forbidden
	// pair. Certified, not a heuristic give-up.
	ReasonUnsatisfiable Reason = "constraints_unsatisfiable"
	// ReasonBudgetExhausted: the time budget ran out before a cycle without
	// forbidden pairs was found.
	ReasonBudgetExhausted Reason = "budget_exhausted"
	// ReasonRetriesExhausted: the shuffle strategy hit its retry cap.
	ReasonRetriesExhausted Reason = "retries_exhausted"
)

// InfeasibleError is the typed cause behind a CodeInfeasible error.
type InfeasibleError struct {
	Reason       Reason
	Participants int
	Detail       string
}

func (e *InfeasibleError) Error() string {
	msg := fmt.Sprintf("%s (%d participants)", e.Reason, e.Participants)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func infeasible(reason Reason, n int, detail string) error {
	return dErrors.Wrap(&InfeasibleError{Reason: reason, Participants: n, Detail: detail},
		dErrors.CodeInfeasible, "no feasible chain")
}
