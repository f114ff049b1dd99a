// Package lifecycle tracks the global phase of the exchange and gates which
// operations are legal in it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"secretsanta/internal/kv"
	dErrors "secretsanta/pkg/domain-errors"
	"secretsanta/pkg/platform/sentinel"
)

const phaseKey = "phase"

// Certifier is the outcome of a chain healthcheck.
type Certifier interface {
	Healthy() bool
}

// Machine is the process-wide phase gate, persisted in a kv.Store.
type Machine struct {
	store  kv.Store
	logger *slog.Logger

	// mu serializes transitions; matching guards a single in-flight run.
	mu       sync.Mutex
	matching sync.Mutex
}

type Option func(*Machine)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// New constructs a Machine over store.
func New(store kv.Store, opts ...Option) (*Machine, error) {
	if store == nil {
		return nil, errors.New("kv store is required")
	}
	m := &Machine{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Init seeds PhasePreRegistration when the store carries no phase yet.
func (m *Machine) Init(ctx context.Context) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phase, err := m.current(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		if err := m.store.Set(ctx, phaseKey, string(PhasePreRegistration)); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed phase")
		}
		return PhasePreRegistration, nil
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
	}
	return phase, nil
}

// Current returns the live phase. A store with no phase reads as
// PhasePreRegistration.
func (m *Machine) Current(ctx context.Context) (Phase, error) {
	phase, err := m.current(ctx)
	if errors.Is(err, sentinel.ErrNotFound) {
		return PhasePreRegistration, nil
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load phase")
	}
	return phase, nil
}

func (m *Machine) current(ctx context.Context) (Phase, error) {
	raw, err := m.store.Get(ctx, phaseKey)
	if err != nil {
		return "", err
	}
	return ParsePhase(raw)
}

// Require fails with an InvalidPhaseTransition error naming op and the live
// phase unless the phase permits op.
func (m *Machine) Require(ctx context.Context, op Operation) error {
	phase, err := m.Current(ctx)
	if err != nil {
		return err
	}
	if !phase.Permits(op) {
		return invalidPhase(op, phase, "")
	}
	return nil
}

// OpenRegistration moves PREREGISTRATION to REGISTRATION_OPEN.
func (m *Machine) OpenRegistration(ctx context.Context) error {
	return m.transition(ctx, OpOpenRegistration, PhaseRegistrationOpen, nil)
}

// CloseRegistration moves REGISTRATION_OPEN to CONFIRMATION_PENDING. It needs
// at least one provisional registration.
func (m *Machine) CloseRegistration(ctx context.Context, provisional int) error {
	return m.transition(ctx, OpCloseRegistration, PhaseConfirmationPending, func(phase Phase) error {
		if provisional < 1 {
			return invalidPhase(OpCloseRegistration, phase, "no provisional registrations")
		}
		return nil
	})
}

// ActivateExchange moves CONFIRMATION_PENDING to EXCHANGE_ACTIVE. It fires
// only for a healthy chain; there is no count-based fallback.
func (m *Machine) ActivateExchange(ctx context.Context, report Certifier) error {
	return m.transition(ctx, OpActivateExchange, PhaseExchangeActive, func(phase Phase) error {
		if report == nil || !report.Healthy() {
			return invalidPhase(OpActivateExchange, phase, "chain healthcheck failed")
		}
		return nil
	})
}

func (m *Machine) transition(ctx context.Context, op Operation, to Phase, guard func(Phase) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, err := m.Current(ctx)
	if err != nil {
		return err
	}
	if !from.Permits(op) || !from.CanTransitionTo(to) {
		return invalidPhase(op, from, "")
	}
	if guard != nil {
		if err := guard(from); err != nil {
			return err
		}
	}
	if err := m.store.Set(ctx, phaseKey, string(to)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("failed to persist phase %s", to))
	}
	m.logger.InfoContext(ctx, "phase transition",
		"operation", op,
		"from", from,
		"to", to,
	)
	return nil
}

// BeginMatching admits a single matching run at a time. The returned release
// func must be called when the run ends.
func (m *Machine) BeginMatching(ctx context.Context) (func(), error) {
	if err := m.Require(ctx, OpRunMatching); err != nil {
		return nil, err
	}
	if !m.matching.TryLock() {
		return nil, invalidPhase(OpRunMatching, PhaseConfirmationPending, "a matching run is already in progress")
	}
	return m.matching.Unlock, nil
}
