package lifecycle

import (
	"fmt"

	dErrors "secretsanta/pkg/domain-errors"
)

// PhaseError reports an operation attempted outside its legal phase.
type PhaseError struct {
	Operation Operation
	Phase     Phase
	Detail    string
}

func (e *PhaseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s not allowed in phase %s: %s", e.Operation, e.Phase, e.Detail)
	}
	return fmt.Sprintf("%s not allowed in phase %s", e.Operation, e.Phase)
}

func invalidPhase(op Operation, phase Phase, detail string) error {
	return dErrors.Wrap(&PhaseError{Operation: op, Phase: phase, Detail: detail},
		dErrors.CodeInvalidPhaseTransition, "invalid phase transition")
}
