// Package matching computes the gift chain: a single cycle over all
// participants that avoids every forbidden pair, with random tie-breaking so
// identical registrations yield different chains run to run.
package matching

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "secretsanta/pkg/domain-errors"
)

var tracer = otel.Tracer("secretsanta/matching")

// Constraints answers whether giver may never be assigned recipient.
type Constraints interface {
	IsForbidden(giver, recipient string) bool
}

// Strategy turns a participant set into a cycle. Implementations return
// CodeInfeasible errors carrying an *InfeasibleError and never return a
// cycle that uses a forbidden pair.
type Strategy interface {
	Name() string
	Solve(ctx context.Context, ids []string, forbid Constraints, rng *rand.Rand) (Cycle, error)
}

// Engine runs a Strategy under a time budget and verifies its output.
type Engine struct {
	strategy Strategy
	budget   time.Duration
	logger   *slog.Logger
	newRand  func() *rand.Rand
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTimeBudget bounds a single solve. Zero means no bound beyond ctx.
func WithTimeBudget(d time.Duration) Option {
	return func(e *Engine) {
		e.budget = d
	}
}

// WithSeed makes the noise reproducible. Tests only.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		src := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		e.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(src.Uint64(), src.Uint64()))
		}
	}
}

// NewEngine constructs an Engine around strategy.
func NewEngine(strategy Strategy, opts ...Option) (*Engine, error) {
	if strategy == nil {
		return nil, errors.New("matching strategy is required")
	}
	e := &Engine{
		strategy: strategy,
		budget:   time.Second,
		logger:   slog.New(slog.DiscardHandler),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// StrategyName names the configured strategy.
func (e *Engine) StrategyName() string {
	return e.strategy.Name()
}

// ComputeAssignment returns a cycle over the distinct ids in which no giver
// is followed by a recipient forbidden to them. It fails with CodeInfeasible
// for fewer than three participants, for constraint graphs with no such
// cycle, and when the budget expires first.
func (e *Engine) ComputeAssignment(ctx context.Context, ids []string, forbid Constraints) (Cycle, error) {
	ids = distinct(ids)
	if forbid == nil {
		forbid = noConstraints{}
	}
	ctx, span := tracer.Start(ctx, "matching.Engine.ComputeAssignment",
		trace.WithAttributes(
			attribute.Int("participant_count", len(ids)),
			attribute.String("strategy", e.strategy.Name()),
		),
	)
	defer span.End()

	cycle, err := e.compute(ctx, ids, forbid)
	if err != nil {
		var inf *InfeasibleError
		if errors.As(err, &inf) {
			span.SetAttributes(attribute.String("infeasible_reason", string(inf.Reason)))
		}
		span.SetStatus(codes.Error, err.Error())
		e.logger.WarnContext(ctx, "matching failed",
			"strategy", e.strategy.Name(),
			"participants", len(ids),
			"error", err,
		)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return cycle, nil
}

func (e *Engine) compute(ctx context.Context, ids []string, forbid Constraints) (Cycle, error) {
	n := len(ids)
	if n < 3 {
		return nil, infeasible(ReasonTooFewParticipants, n, "a chain needs at least three participants")
	}
	if id, ok := isolated(ids, forbid); ok {
		return nil, infeasible(ReasonUnsatisfiable, n, "participant "+id+" has no allowed giver or recipient")
	}

	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}

	start := time.Now()
	cycle, err := e.strategy.Solve(ctx, ids, forbid, e.newRand())
	if err != nil {
		return nil, err
	}
	if err := cycle.Validate(ids, forbid); err != nil {
		// A strategy bug must never leak a broken chain.
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "strategy produced an invalid cycle")
	}
	e.logger.DebugContext(ctx, "matching solved",
		"strategy", e.strategy.Name(),
		"participants", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cycle, nil
}

// isolated finds a participant whose every outgoing or every incoming pair is
// forbidden, which rules out any cycle.
func isolated(ids []string, forbid Constraints) (string, bool) {
	for _, a := range ids {
		out, in := false, false
		for _, b := range ids {
			if a == b {
				continue
			}
			if !forbid.IsForbidden(a, b) {
				out = true
			}
			if !forbid.IsForbidden(b, a) {
				in = true
			}
		}
		if !out || !in {
			return a, true
		}
	}
	return "", false
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type noConstraints struct{}

func (noConstraints) IsForbidden(string, string) bool { return false }
