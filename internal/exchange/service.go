// Package exchange orchestrates the Secret Santa exchange: registration,
// matching, result delivery and the anonymous relay between each giver and
// recipient.
package exchange

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"secretsanta/internal/exchange/metrics"
	"secretsanta/internal/lifecycle"
	"secretsanta/internal/matching"
	"secretsanta/internal/messaging"
	"secretsanta/internal/participant"
	dErrors "secretsanta/pkg/domain-errors"
	"secretsanta/pkg/requestcontext"
)

// Phases is the lifecycle gate.
type Phases interface {
	Current(ctx context.Context) (lifecycle.Phase, error)
	Require(ctx context.Context, op lifecycle.Operation) error
	OpenRegistration(ctx context.Context) error
	CloseRegistration(ctx context.Context, provisional int) error
	ActivateExchange(ctx context.Context, report lifecycle.Certifier) error
	BeginMatching(ctx context.Context) (func(), error)
}

// Matcher computes a gift chain.
type Matcher interface {
	ComputeAssignment(ctx context.Context, ids []string, forbid matching.Constraints) (matching.Cycle, error)
	StrategyName() string
}

const defaultFanOut = 8

// Service is the exchange façade used by the HTTP transport.
type Service struct {
	ownerID     string
	phases      Phases
	directory   participant.Directory
	constraints matching.Constraints
	matcher     Matcher
	messenger   messaging.Messenger
	logger      *slog.Logger
	metrics     *metrics.Metrics
	fanOut      int

	// relay holds each participant's last inbound message until they pick a
	// destination. Entries are kept after delivery so they can be re-sent.
	relayMu sync.Mutex
	relay   map[string]messaging.Message
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFanOut bounds concurrent sends for broadcasts and result delivery.
func WithFanOut(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.fanOut = n
		}
	}
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Phases      Phases
	Directory   participant.Directory
	Constraints matching.Constraints
	Matcher     Matcher
	Messenger   messaging.Messenger
}

// New constructs a Service. ownerID is the only caller allowed to run admin
// operations.
func New(ownerID string, deps Deps, opts ...Option) (*Service, error) {
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	if deps.Phases == nil || deps.Directory == nil || deps.Matcher == nil || deps.Messenger == nil {
		return nil, errors.New("phases, directory, matcher and messenger are required")
	}
	s := &Service{
		ownerID:     ownerID,
		phases:      deps.Phases,
		directory:   deps.Directory,
		constraints: deps.Constraints,
		matcher:     deps.Matcher,
		messenger:   deps.Messenger,
		logger:      slog.New(slog.DiscardHandler),
		fanOut:      defaultFanOut,
		relay:       make(map[string]messaging.Message),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// caller returns the authenticated caller id.
func (s *Service) caller(ctx context.Context) (string, error) {
	id := requestcontext.CallerID(ctx)
	if id == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller is not authenticated")
	}
	return id, nil
}

// requireOwner rejects every caller but the owner.
func (s *Service) requireOwner(ctx context.Context) error {
	id, err := s.caller(ctx)
	if err != nil {
		return err
	}
	if id != s.ownerID {
		s.logger.WarnContext(ctx, "admin operation refused", "caller_id", id)
		return dErrors.New(dErrors.CodeForbidden, "only the owner can do that")
	}
	return nil
}

// send delivers one message and records the outcome.
func (s *Service) send(ctx context.Context, to string, msg messaging.Message) error {
	err := s.messenger.Send(ctx, to, msg)
	s.metrics.IncrementOutbound(string(msg.Kind), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send message",
			"to", to,
			"kind", msg.Kind,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to send message")
	}
	return nil
}
