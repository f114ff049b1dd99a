package lifecycle

import "fmt"

// Phase is the global phase of the exchange. Exactly one phase is live per
// kv store.
type Phase string

const (
	// PhasePreRegistration precedes the opening of registrations.
	PhasePreRegistration Phase = "PREREGISTRATION"
	// PhaseRegistrationOpen accepts provisional registrations.
	PhaseRegistrationOpen Phase = "REGISTRATION_OPEN"
	// PhaseConfirmationPending asks provisional participants to confirm and
	// hosts the matching run.
	PhaseConfirmationPending Phase = "CONFIRMATION_PENDING"
	// PhaseExchangeActive is entered once a healthy chain exists.
	PhaseExchangeActive Phase = "EXCHANGE_ACTIVE"
)

// ParsePhase validates a stored phase name.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhasePreRegistration, PhaseRegistrationOpen, PhaseConfirmationPending, PhaseExchangeActive:
		return p, nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo reports whether target directly follows p. Transitions are
// one-directional.
func (p Phase) CanTransitionTo(target Phase) bool {
	switch p {
	case PhasePreRegistration:
		return target == PhaseRegistrationOpen
	case PhaseRegistrationOpen:
		return target == PhaseConfirmationPending
	case PhaseConfirmationPending:
		return target == PhaseExchangeActive
	default:
		return false
	}
}

// Operation names a gated core operation.
type Operation string

const (
	OpOpenRegistration  Operation = "open_registration"
	OpRegister          Operation = "register"
	OpUnregister        Operation = "unregister"
	OpCloseRegistration Operation = "close_registration"
	OpConfirm           Operation = "confirm"
	OpCancelPending     Operation = "cancel_pending"
	OpRunMatching       Operation = "run_matching"
	OpSetAssignment     Operation = "set_assignment"
	OpClearAssignments  Operation = "clear_assignments"
	OpActivateExchange  Operation = "activate_exchange"
	OpSendResults       Operation = "send_results"
	OpRelayMessage      Operation = "relay_message"
)

var allowedPhases = map[Operation][]Phase{
	OpOpenRegistration:  {PhasePreRegistration},
	OpRegister:          {PhaseRegistrationOpen},
	OpUnregister:        {PhaseRegistrationOpen, PhaseConfirmationPending},
	OpCloseRegistration: {PhaseRegistrationOpen},
	OpConfirm:           {PhaseConfirmationPending},
	OpCancelPending:     {PhaseConfirmationPending},
	OpRunMatching:       {PhaseConfirmationPending},
	OpSetAssignment:     {PhaseConfirmationPending},
	OpClearAssignments:  {PhaseConfirmationPending},
	OpActivateExchange:  {PhaseConfirmationPending},
	OpSendResults:       {PhaseExchangeActive},
	OpRelayMessage:      {PhaseExchangeActive},
}

// Permits reports whether op may run while phase p is live.
func (p Phase) Permits(op Operation) bool {
	for _, allowed := range allowedPhases[op] {
		if allowed == p {
			return true
		}
	}
	return false
}
