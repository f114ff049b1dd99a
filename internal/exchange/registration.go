package exchange

import (
	"context"

	"secretsanta/internal/lifecycle"
	"secretsanta/internal/messaging"
	"secretsanta/internal/participant"
)

// OpenRegistration starts accepting registrations.
func (s *Service) OpenRegistration(ctx context.Context) error {
	if err := s.requireOwner(ctx); err != nil {
		return err
	}
	if err := s.phases.OpenRegistration(ctx); err != nil {
		return err
	}
	s.metrics.IncrementPhaseChange(string(lifecycle.PhaseRegistrationOpen))
	return nil
}

// Register signs the caller up provisionally and tells the owner.
func (s *Service) Register(ctx context.Context, description string) (*participant.Participant, error) {
	id, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.directory.Register(ctx, id, description)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementRegistrations()
	// The registration stands even if the owner cannot be told.
	_ = s.send(ctx, s.ownerID, messaging.Text(p.Description+" signed up!"))
	return p, nil
}

// Confirm turns the caller's provisional registration into a confirmed one.
func (s *Service) Confirm(ctx context.Context) error {
	id, err := s.caller(ctx)
	if err != nil {
		return err
	}
	if err := s.directory.Confirm(ctx, id); err != nil {
		return err
	}
	s.metrics.IncrementConfirmations()
	return nil
}

// Withdraw drops the caller's provisional registration.
func (s *Service) Withdraw(ctx context.Context) error {
	id, err := s.caller(ctx)
	if err != nil {
		return err
	}
	return s.directory.Unregister(ctx, id)
}

// CloseRegistration stops new registrations and asks every provisional
// participant to confirm.
func (s *Service) CloseRegistration(ctx context.Context) (Delivery, error) {
	if err := s.requireOwner(ctx); err != nil {
		return Delivery{}, err
	}
	all, err := s.directory.List(ctx)
	if err != nil {
		return Delivery{}, err
	}
	var provisional []string
	for _, p := range all {
		if p.IsProvisional() {
			provisional = append(provisional, p.ID)
		}
	}
	if err := s.phases.CloseRegistration(ctx, len(provisional)); err != nil {
		return Delivery{}, err
	}
	s.metrics.IncrementPhaseChange(string(lifecycle.PhaseConfirmationPending))

	// Registrations admitted just before the phase changed are visible now.
	all, err = s.directory.List(ctx)
	if err != nil {
		return Delivery{}, err
	}
	provisional = provisional[:0]
	for _, p := range all {
		if p.IsProvisional() {
			provisional = append(provisional, p.ID)
		}
	}
	s.logger.InfoContext(ctx, "registration closed", "provisional", len(provisional))

	prompt := messaging.Text(
		"Registrations are closed. Confirm that you are taking part in the Secret Santa.",
		messaging.Option{Label: "Confirm", Data: CallbackConfirm},
	)
	return s.fanOutSend(ctx, provisional, func(string) []messaging.Message {
		return []messaging.Message{prompt}
	}), nil
}

// CancelPending purges every registration still unconfirmed and returns the
// purged ids. The phase does not change.
func (s *Service) CancelPending(ctx context.Context) ([]string, error) {
	if err := s.requireOwner(ctx); err != nil {
		return nil, err
	}
	purged, err := s.directory.PurgeProvisional(ctx)
	if err != nil {
		return purged, err
	}
	s.logger.InfoContext(ctx, "pending registrations cancelled", "purged", len(purged))
	return purged, nil
}

// Broadcast sends text to every registered participant, provisional or
// confirmed.
func (s *Service) Broadcast(ctx context.Context, text string) (Delivery, error) {
	if err := s.requireOwner(ctx); err != nil {
		return Delivery{}, err
	}
	if text == "" {
		return Delivery{}, validation("broadcast text is required")
	}
	all, err := s.directory.List(ctx)
	if err != nil {
		return Delivery{}, err
	}
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	msg := messaging.Text(text)
	return s.fanOutSend(ctx, ids, func(string) []messaging.Message {
		return []messaging.Message{msg}
	}), nil
}
