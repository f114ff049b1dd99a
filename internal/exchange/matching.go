package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"secretsanta/internal/healthcheck"
	"secretsanta/internal/lifecycle"
	"secretsanta/internal/matching"
	"secretsanta/internal/messaging"
	"secretsanta/internal/participant"
	dErrors "secretsanta/pkg/domain-errors"
	"secretsanta/pkg/requestcontext"
)

// RunMatching computes a chain over the confirmed participants, stores it,
// and activates the exchange once the stored chain passes the healthcheck.
// Only one run may be in flight.
func (s *Service) RunMatching(ctx context.Context) (*RunResult, error) {
	if err := s.requireOwner(ctx); err != nil {
		return nil, err
	}
	release, err := s.phases.BeginMatching(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID, "strategy", s.matcher.StrategyName())

	confirmed, err := s.confirmedParticipants(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(confirmed))
	for _, p := range confirmed {
		if p.HasLinks() {
			return nil, dErrors.New(dErrors.CodeInvalidPhaseTransition,
				"assignments already exist; clear them before matching again")
		}
		ids = append(ids, p.ID)
	}

	startedAt := requestcontext.Now(ctx)
	start := time.Now()
	cycle, err := s.matcher.ComputeAssignment(ctx, ids, s.constraints)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveMatching(s.matcher.StrategyName(), outcomeOf(err), elapsed)
		return nil, err
	}

	// Once a chain is computed it is stored, gated and activated (or rolled
	// back) even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	chain := cycle.Assignments()
	for _, a := range chain {
		if err := s.directory.SetAssignment(ctx, a.Giver, a.Recipient); err != nil {
			logger.ErrorContext(ctx, "failed to store assignment; clearing partial chain",
				"giver_id", a.Giver,
				"error", err,
			)
			if clearErr := s.directory.ClearAssignments(ctx); clearErr != nil {
				logger.ErrorContext(ctx, "failed to clear partial chain", "error", clearErr)
			}
			s.metrics.ObserveMatching(s.matcher.StrategyName(), "store_failed", elapsed)
			return nil, err
		}
	}

	confirmed, err = s.confirmedParticipants(ctx)
	if err != nil {
		return nil, err
	}
	report := healthcheck.Verify(confirmed, true)
	s.metrics.SetUnhealthy(report.Unhealthy)
	if err := s.phases.ActivateExchange(ctx, report); err != nil {
		s.metrics.ObserveMatching(s.matcher.StrategyName(), "unhealthy", elapsed)
		logger.ErrorContext(ctx, "stored chain failed the healthcheck",
			"unhealthy", report.Unhealthy,
			"participants", unhealthyIDs(report),
		)
		return nil, err
	}
	s.metrics.ObserveMatching(s.matcher.StrategyName(), "ok", elapsed)
	s.metrics.IncrementPhaseChange(string(lifecycle.PhaseExchangeActive))
	logger.InfoContext(ctx, "matching completed",
		"participants", len(chain),
		"duration_ms", elapsed.Milliseconds(),
	)

	return &RunResult{
		RunID:     runID,
		Strategy:  s.matcher.StrategyName(),
		Chain:     chain,
		Report:    report,
		Duration:  elapsed,
		StartedAt: startedAt,
	}, nil
}

// ClearAssignments drops a stored chain so matching can run again.
func (s *Service) ClearAssignments(ctx context.Context) error {
	if err := s.requireOwner(ctx); err != nil {
		return err
	}
	return s.directory.ClearAssignments(ctx)
}

// SendResults tells every giver who their recipient is.
func (s *Service) SendResults(ctx context.Context) (Delivery, error) {
	if err := s.requireOwner(ctx); err != nil {
		return Delivery{}, err
	}
	if err := s.phases.Require(ctx, lifecycle.OpSendResults); err != nil {
		return Delivery{}, err
	}
	confirmed, err := s.confirmedParticipants(ctx)
	if err != nil {
		return Delivery{}, err
	}
	byID := make(map[string]participant.Participant, len(confirmed))
	ids := make([]string, 0, len(confirmed))
	for _, p := range confirmed {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	return s.fanOutSend(ctx, ids, func(id string) []messaging.Message {
		recipient := byID[byID[id].GiftsTo]
		return []messaging.Message{messaging.Text(fmt.Sprintf(
			"Your Secret Santa recipient is %s. You will give them a gift, but they do not know it comes from you!\n\n"+
				"Someone mysterious has been assigned to you as your Secret Santa too.\n\n"+
				"To talk to your recipient or to your Santa, just send me a message.",
			recipient.Description))}
	}), nil
}

// Status reports the phase, counts and a healthcheck. Before the exchange is
// active every known participant is checked without requiring links; once it
// is active the confirmed participants are checked against the chain, the
// same set the activation gate verified.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	if err := s.requireOwner(ctx); err != nil {
		return nil, err
	}
	phase, err := s.phases.Current(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	st := &Status{Phase: phase, Total: len(all)}
	for _, p := range all {
		switch {
		case p.IsProvisional():
			st.Provisional++
		case p.IsConfirmed():
			st.Confirmed++
		}
		if p.GiftsTo != "" {
			st.Matched++
		}
	}
	if phase == lifecycle.PhaseExchangeActive {
		// The chain covers confirmed participants only; leftover provisional
		// registrations are counted above, not judged.
		confirmed := make([]participant.Participant, 0, st.Confirmed)
		for _, p := range all {
			if p.IsConfirmed() {
				confirmed = append(confirmed, p)
			}
		}
		st.Report = healthcheck.Verify(confirmed, true)
	} else {
		st.Report = healthcheck.Verify(all, false)
	}
	s.metrics.SetUnhealthy(st.Report.Unhealthy)
	return st, nil
}

func (s *Service) confirmedParticipants(ctx context.Context) ([]participant.Participant, error) {
	all, err := s.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.IsConfirmed() {
			out = append(out, p)
		}
	}
	return out, nil
}

func outcomeOf(err error) string {
	var inf *matching.InfeasibleError
	if errors.As(err, &inf) {
		return string(inf.Reason)
	}
	return "error"
}

func unhealthyIDs(r healthcheck.Report) string {
	var ids []string
	for _, p := range r.Participants {
		if !p.OK {
			ids = append(ids, p.ID)
		}
	}
	return strings.Join(ids, ",")
}
