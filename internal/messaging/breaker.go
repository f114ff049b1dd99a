package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"secretsanta/pkg/platform/sentinel"
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
)

// BreakerMessenger sends through primary until it fails threshold times in a
// row. While the circuit is open, messages go to fallback instead and Send
// reports sentinel.ErrUnavailable, so fan-outs record them as undelivered
// without waiting on a dead broker. After cooldown one message is let through
// to primary to probe it.
type BreakerMessenger struct {
	primary  Messenger
	fallback Messenger
	logger   *slog.Logger
	now      func() time.Time

	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	open      bool
	openUntil time.Time
}

type BreakerOption func(*BreakerMessenger)

// WithBreakerThreshold sets the consecutive failures that open the circuit.
func WithBreakerThreshold(n int) BreakerOption {
	return func(b *BreakerMessenger) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithBreakerCooldown sets how long the circuit stays open.
func WithBreakerCooldown(d time.Duration) BreakerOption {
	return func(b *BreakerMessenger) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(b *BreakerMessenger) {
		b.logger = logger
	}
}

func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *BreakerMessenger) {
		b.now = now
	}
}

func NewBreakerMessenger(primary, fallback Messenger, opts ...BreakerOption) *BreakerMessenger {
	b := &BreakerMessenger{
		primary:   primary,
		fallback:  fallback,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		threshold: defaultBreakerThreshold,
		cooldown:  defaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BreakerMessenger) Send(ctx context.Context, to string, msg Message) error {
	if !b.allow() {
		if err := b.fallback.Send(ctx, to, msg); err != nil {
			return fmt.Errorf("fallback send: %w", err)
		}
		return fmt.Errorf("outbound circuit open: %w", sentinel.ErrUnavailable)
	}
	if err := b.primary.Send(ctx, to, msg); err != nil {
		if b.recordFailure() {
			b.logger.WarnContext(ctx, "outbound circuit opened",
				"failures", b.threshold,
				"cooldown", b.cooldown,
				"error", err,
			)
		}
		return err
	}
	if b.recordSuccess() {
		b.logger.InfoContext(ctx, "outbound circuit closed")
	}
	return nil
}

// IsOpen reports whether messages are currently diverted to fallback.
func (b *BreakerMessenger) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.now().Before(b.openUntil)
}

// allow reports whether primary may be tried. Once the cooldown expires the
// circuit is half-open: the next attempt decides whether it closes.
func (b *BreakerMessenger) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.now().Before(b.openUntil) {
		return false
	}
	// Half-open: a single failure reopens.
	b.failures = b.threshold - 1
	b.openUntil = b.now().Add(b.cooldown)
	return true
}

// recordFailure reports whether this failure opened the circuit.
func (b *BreakerMessenger) recordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures < b.threshold {
		return false
	}
	wasOpen := b.open
	b.open = true
	b.openUntil = b.now().Add(b.cooldown)
	return !wasOpen
}

// recordSuccess reports whether this success closed the circuit.
func (b *BreakerMessenger) recordSuccess() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	wasOpen := b.open
	b.failures = 0
	b.open = false
	return wasOpen
}
