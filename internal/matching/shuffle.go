package matching

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// Shuffle is the randomized-retry strategy: shuffle, link each participant to
// the next, accept the first order with no forbidden link. Only reliable
// when forbidden pairs are sparse.
type Shuffle struct {
	MaxRetries int
}

// NewShuffle returns a Shuffle strategy with the given retry cap.
func NewShuffle(maxRetries int) *Shuffle {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Shuffle{MaxRetries: maxRetries}
}

func (s *Shuffle) Name() string {
	return "shuffle"
}

func (s *Shuffle) Solve(ctx context.Context, ids []string, forbid Constraints, rng *rand.Rand) (Cycle, error) {
	n := len(ids)
	order := append([]string(nil), ids...)
	for attempt := 0; attempt < s.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, infeasible(ReasonBudgetExhausted, n, fmt.Sprintf("stopped after %d shuffles", attempt))
		}
		rng.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		if !usesForbidden(order, forbid) {
			return Cycle(append([]string(nil), order...)), nil
		}
	}
	return nil, infeasible(ReasonRetriesExhausted, n, fmt.Sprintf("no valid order in %d shuffles", s.MaxRetries))
}

func usesForbidden(order []string, forbid Constraints) bool {
	for i, giver := range order {
		if forbid.IsForbidden(giver, order[(i+1)%len(order)]) {
			return true
		}
	}
	return false
}
