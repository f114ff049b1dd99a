package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "secretsanta/pkg/domain-errors"
)

// pairs forbids every "giver>recipient" entry.
type pairs map[string]bool

func (p pairs) IsForbidden(giver, recipient string) bool {
	return p[giver+">"+recipient]
}

func forbidding(entries ...string) pairs {
	p := pairs{}
	for _, e := range entries {
		p[e] = true
	}
	return p
}

func names(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%03d", i)
	}
	return ids
}

func strategies() map[string]Strategy {
	return map[string]Strategy{
		"tsp exact":     NewTSP(16),
		"tsp heuristic": NewTSP(0),
		"shuffle":       NewShuffle(10000),
	}
}

func newEngine(t *testing.T, s Strategy, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(s, append([]Option{WithSeed(7)}, opts...)...)
	require.NoError(t, err)
	return e
}

func requireInfeasible(t *testing.T, err error, want Reason) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInfeasible), "got %v", err)
	var inf *InfeasibleError
	require.True(t, errors.As(err, &inf))
	assert.Equal(t, want, inf.Reason)
}

func TestComputeAssignmentTooFew(t *testing.T) {
	for name, s := range strategies() {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, s)
			for _, ids := range [][]string{nil, {"a"}, {"a", "b"}, {"a", "b", "a"}} {
				_, err := e.ComputeAssignment(context.Background(), ids, nil)
				requireInfeasible(t, err, ReasonTooFewParticipants)
			}
		})
	}
}

func TestComputeAssignmentUnconstrained(t *testing.T) {
	for name, s := range strategies() {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, s)
			ids := []string{"a", "b", "c"}
			cycle, err := e.ComputeAssignment(context.Background(), ids, nil)
			require.NoError(t, err)
			require.NoError(t, cycle.Validate(ids, noConstraints{}))

			links := cycle.Assignments()
			require.Len(t, links, 3)
			givesTo := map[string]string{}
			for _, l := range links {
				assert.NotEqual(t, l.Giver, l.Recipient)
				givesTo[l.Giver] = l.Recipient
			}
			for _, l := range links {
				assert.NotEqual(t, l.Giver, givesTo[l.Recipient], "no mutual pairs")
			}
		})
	}
}

func TestComputeAssignmentNeverUsesForbiddenPair(t *testing.T) {
	ids := []string{"A", "B", "C", "D"}
	forbid := forbidding("A>B")
	for name, s := range strategies() {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, s)
			for range 200 {
				cycle, err := e.ComputeAssignment(context.Background(), ids, forbid)
				require.NoError(t, err)
				for _, l := range cycle.Assignments() {
					require.False(t, l.Giver == "A" && l.Recipient == "B", "cycle %v", cycle)
				}
			}
		})
	}
}

func TestComputeAssignmentIsolatedParticipant(t *testing.T) {
	forbid := forbidding("X>Y", "X>Z")
	for name, s := range strategies() {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, s)
			_, err := e.ComputeAssignment(context.Background(), []string{"X", "Y", "Z"}, forbid)
			requireInfeasible(t, err, ReasonUnsatisfiable)
		})
	}
}

func TestTSPCertifiesUnsatisfiable(t *testing.T) {
	// Only A<->B and C<->D are allowed: everyone has a giver and a recipient,
	// yet no single cycle exists.
	ids := []string{"A", "B", "C", "D"}
	var entries []string
	allowed := map[string]bool{"A>B": true, "B>A": true, "C>D": true, "D>C": true}
	for _, g := range ids {
		for _, r := range ids {
			if g != r && !allowed[g+">"+r] {
				entries = append(entries, g+">"+r)
			}
		}
	}
	forbid := forbidding(entries...)

	e := newEngine(t, NewTSP(16))
	_, err := e.ComputeAssignment(context.Background(), ids, forbid)
	requireInfeasible(t, err, ReasonUnsatisfiable)

	e = newEngine(t, NewShuffle(500))
	_, err = e.ComputeAssignment(context.Background(), ids, forbid)
	requireInfeasible(t, err, ReasonRetriesExhausted)
}

func TestTSPFindsTheOnlyCycle(t *testing.T) {
	// Each participant may only give to the next one in a fixed ring, so
	// exactly one valid chain exists.
	ids := names(9)
	var entries []string
	for i, g := range ids {
		for j, r := range ids {
			if i != j && j != (i+1)%len(ids) {
				entries = append(entries, g+">"+r)
			}
		}
	}
	forbid := forbidding(entries...)

	for name, s := range map[string]Strategy{"exact": NewTSP(16), "heuristic": NewTSP(0)} {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, s, WithTimeBudget(5*time.Second))
			cycle, err := e.ComputeAssignment(context.Background(), ids, forbid)
			require.NoError(t, err)
			for _, l := range cycle.Assignments() {
				assert.False(t, forbid.IsForbidden(l.Giver, l.Recipient))
			}
		})
	}
}

func TestTSPLargeSparseInstance(t *testing.T) {
	ids := names(120)
	var entries []string
	for i := 0; i+1 < len(ids); i += 2 {
		entries = append(entries, ids[i]+">"+ids[i+1], ids[i+1]+">"+ids[i])
	}
	forbid := forbidding(entries...)

	e := newEngine(t, NewTSP(16), WithTimeBudget(2*time.Second))
	cycle, err := e.ComputeAssignment(context.Background(), ids, forbid)
	require.NoError(t, err)
	require.NoError(t, cycle.Validate(ids, forbid))
}

func TestComputeAssignmentIsRandomized(t *testing.T) {
	ids := names(6)
	e, err := NewEngine(NewTSP(16))
	require.NoError(t, err)

	seen := map[string]bool{}
	for range 30 {
		cycle, err := e.ComputeAssignment(context.Background(), ids, nil)
		require.NoError(t, err)
		seen[canonical(cycle)] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestComputeAssignmentHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(t, NewTSP(16))
	_, err := e.ComputeAssignment(ctx, names(15), nil)
	requireInfeasible(t, err, ReasonBudgetExhausted)

	e = newEngine(t, NewShuffle(10))
	_, err = e.ComputeAssignment(ctx, names(5), nil)
	requireInfeasible(t, err, ReasonBudgetExhausted)
}

func TestHeldKarpIsOptimal(t *testing.T) {
	e := newEngine(t, NewTSP(16))
	rng := e.newRand()
	ids := names(7)
	m := buildCosts(ids, forbidding("p000>p001", "p003>p004"), rng)

	tour, err := heldKarp(context.Background(), m)
	require.NoError(t, err)
	got := m.tourCost(tour)

	best := bruteForce(m)
	assert.InDelta(t, best, got, 1e-9)
	assert.Zero(t, m.violations(tour))
}

func TestNewEngineRequiresStrategy(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)
}

func TestCycleValidate(t *testing.T) {
	want := []string{"a", "b", "c"}
	assert.NoError(t, Cycle{"a", "b", "c"}.Validate(want, noConstraints{}))
	assert.Error(t, Cycle{"a", "b"}.Validate(want, noConstraints{}))
	assert.Error(t, Cycle{"a", "a", "c"}.Validate(want, noConstraints{}))
	assert.Error(t, Cycle{"a", "b", "z"}.Validate(want, noConstraints{}))
	assert.Error(t, Cycle{"a", "b", "c"}.Validate(want, forbidding("c>a")))
}

// canonical rotates a cycle so it starts at its smallest id.
func canonical(c Cycle) string {
	start := 0
	for i := range c {
		if c[i] < c[start] {
			start = i
		}
	}
	rotated := append(append([]string(nil), c[start:]...), c[:start]...)
	return strings.Join(rotated, ",")
}

func bruteForce(m *costMatrix) float64 {
	rest := make([]int, 0, m.n-1)
	for i := 1; i < m.n; i++ {
		rest = append(rest, i)
	}
	best := -1.0
	var permute func(k int)
	permute = func(k int) {
		if k == len(rest) {
			c := m.tourCost(append([]int{0}, rest...))
			if best < 0 || c < best {
				best = c
			}
			return
		}
		for i := k; i < len(rest); i++ {
			rest[k], rest[i] = rest[i], rest[k]
			permute(k + 1)
			rest[k], rest[i] = rest[i], rest[k]
		}
	}
	permute(0)
	return best
}
