package matching

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	// maxExactLimit caps Held-Karp memory at 2^19 x 19 states.
	maxExactLimit = 20
	// maxRestarts bounds the heuristic when ctx carries no deadline.
	maxRestarts = 64
	maxPasses   = 1000
	epsilon     = 1e-9
)

// TSP solves matching as an asymmetric travelling-salesman instance over a
// noisy cost matrix in which forbidden pairs are prohibitively expensive.
// Up to ExactLimit participants the optimum is exact (Held-Karp), so an
// optimum that still carries a forbidden pair certifies infeasibility.
// Beyond it, randomized nearest-neighbour tours are improved by local search
// until the budget runs out.
type TSP struct {
	ExactLimit int
}

// NewTSP returns a TSP strategy solving exactly up to exactLimit participants.
func NewTSP(exactLimit int) *TSP {
	if exactLimit > maxExactLimit {
		exactLimit = maxExactLimit
	}
	return &TSP{ExactLimit: exactLimit}
}

func (t *TSP) Name() string {
	return "tsp"
}

func (t *TSP) Solve(ctx context.Context, ids []string, forbid Constraints, rng *rand.Rand) (Cycle, error) {
	n := len(ids)
	m := buildCosts(ids, forbid, rng)

	var tour []int
	if n <= t.ExactLimit {
		var err error
		tour, err = heldKarp(ctx, m)
		if err != nil {
			return nil, infeasible(ReasonBudgetExhausted, n, "exact solver interrupted: "+err.Error())
		}
		if v := m.violations(tour); v > 0 {
			return nil, infeasible(ReasonUnsatisfiable, n,
				fmt.Sprintf("every cycle uses at least %d forbidden pair(s)", v))
		}
	} else {
		tour = localSearch(ctx, m, rng)
		if m.violations(tour) > 0 {
			return nil, infeasible(ReasonBudgetExhausted, n, "no cycle avoiding forbidden pairs found within budget")
		}
	}

	cycle := make(Cycle, n)
	for i, idx := range tour {
		cycle[i] = ids[idx]
	}
	return cycle, nil
}

// heldKarp returns a minimum-cost tour anchored at node 0.
func heldKarp(ctx context.Context, m *costMatrix) ([]int, error) {
	k := m.n - 1
	full := 1 << k
	dp := make([]float64, full*k)
	parent := make([]int8, full*k)
	for i := range dp {
		dp[i] = math.Inf(1)
	}
	for j := 0; j < k; j++ {
		dp[(1<<j)*k+j] = m.cost[0][j+1]
		parent[(1<<j)*k+j] = -1
	}

	for mask := 1; mask < full; mask++ {
		if mask&0x3ff == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for j := 0; j < k; j++ {
			if mask&(1<<j) == 0 {
				continue
			}
			cur := dp[mask*k+j]
			if math.IsInf(cur, 1) {
				continue
			}
			for next := 0; next < k; next++ {
				if mask&(1<<next) != 0 {
					continue
				}
				nm := mask | 1<<next
				if c := cur + m.cost[j+1][next+1]; c < dp[nm*k+next] {
					dp[nm*k+next] = c
					parent[nm*k+next] = int8(j)
				}
			}
		}
	}

	best, last := math.Inf(1), -1
	for j := 0; j < k; j++ {
		if c := dp[(full-1)*k+j] + m.cost[j+1][0]; c < best {
			best, last = c, j
		}
	}

	path := make([]int, 0, m.n)
	for mask, j := full-1, last; j >= 0; {
		path = append(path, j+1)
		prev := int(parent[mask*k+j])
		mask ^= 1 << j
		j = prev
	}
	tour := make([]int, 0, m.n)
	tour = append(tour, 0)
	for i := len(path) - 1; i >= 0; i-- {
		tour = append(tour, path[i])
	}
	return tour, nil
}

// localSearch keeps the cheapest of several improved random tours. The first
// restart always completes so an expired ctx still yields a tour.
func localSearch(ctx context.Context, m *costMatrix, rng *rand.Rand) []int {
	var best []int
	bestCost := math.Inf(1)
	for attempt := 0; attempt < maxRestarts; attempt++ {
		if attempt > 0 && ctx.Err() != nil {
			break
		}
		tour := nearestNeighbour(m, rng)
		improve(ctx, m, tour)
		if c := m.tourCost(tour); c < bestCost {
			best, bestCost = tour, c
		}
		if m.violations(best) == 0 {
			if _, ok := ctx.Deadline(); !ok {
				break
			}
		}
	}
	return best
}

// nearestNeighbour builds a tour from node 0, always moving to the cheapest
// unvisited node under extra jitter so restarts differ.
func nearestNeighbour(m *costMatrix, rng *rand.Rand) []int {
	visited := make([]bool, m.n)
	tour := make([]int, 0, m.n)
	cur := 0
	visited[0] = true
	tour = append(tour, 0)
	for len(tour) < m.n {
		next, nextCost := -1, math.Inf(1)
		for j := 0; j < m.n; j++ {
			if visited[j] {
				continue
			}
			if c := m.cost[cur][j] + rng.Float64()*noiseMax; c < nextCost {
				next, nextCost = j, c
			}
		}
		visited[next] = true
		tour = append(tour, next)
		cur = next
	}
	return tour
}

// improve applies first-improvement relocate and swap moves until a full
// pass finds nothing or ctx is done. Moves keep direction, which matters for
// asymmetric costs.
func improve(ctx context.Context, m *costMatrix, tour []int) {
	for pass := 0; pass < maxPasses; pass++ {
		if ctx.Err() != nil {
			return
		}
		improved := false
		for i := range tour {
			if relocate(m, tour, i) {
				improved = true
			}
		}
		for i := 0; i < len(tour); i++ {
			for j := i + 1; j < len(tour); j++ {
				if swap(m, tour, i, j) {
					improved = true
				}
			}
		}
		if !improved {
			return
		}
	}
}

// relocate moves the node at position i to the cheapest gap if that lowers
// the tour cost.
func relocate(m *costMatrix, tour []int, i int) bool {
	n := len(tour)
	if n < 4 {
		return false
	}
	v := tour[i]
	a, b := tour[(i-1+n)%n], tour[(i+1)%n]
	gain := m.cost[a][v] + m.cost[v][b] - m.cost[a][b]

	bestP, bestDelta := -1, -epsilon
	for p := 0; p < n; p++ {
		q := (p + 1) % n
		if p == i || q == i {
			continue
		}
		delta := m.cost[tour[p]][v] + m.cost[v][tour[q]] - m.cost[tour[p]][tour[q]] - gain
		if delta < bestDelta {
			bestP, bestDelta = p, delta
		}
	}
	if bestP < 0 {
		return false
	}

	after := tour[bestP]
	rest := make([]int, 0, n)
	for _, node := range tour {
		if node == v {
			continue
		}
		rest = append(rest, node)
		if node == after {
			rest = append(rest, v)
		}
	}
	copy(tour, rest)
	return true
}

// swap exchanges the nodes at positions i and j if that lowers the tour cost.
func swap(m *costMatrix, tour []int, i, j int) bool {
	n := len(tour)
	affected := map[int]struct{}{
		(i - 1 + n) % n: {},
		i:               {},
		(j - 1 + n) % n: {},
		j:               {},
	}
	edges := func() float64 {
		total := 0.0
		for e := range affected {
			total += m.cost[tour[e]][tour[(e+1)%n]]
		}
		return total
	}
	before := edges()
	tour[i], tour[j] = tour[j], tour[i]
	if edges() < before-epsilon {
		return true
	}
	tour[i], tour[j] = tour[j], tour[i]
	return false
}
