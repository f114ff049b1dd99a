package matching

import (
	"math"
	"math/rand/v2"
)

// noiseMax bounds the random cost of an allowed pair. A forbidden pair costs
// more than the noise of any whole cycle, so a cycle with fewer forbidden
// pairs always beats one with more.
const noiseMax = 10.0

type costMatrix struct {
	n         int
	cost      [][]float64
	forbidden [][]bool
	// forbiddenCost is strictly above n*noiseMax.
	forbiddenCost float64
}

func buildCosts(ids []string, forbid Constraints, rng *rand.Rand) *costMatrix {
	n := len(ids)
	m := &costMatrix{
		n:             n,
		cost:          make([][]float64, n),
		forbidden:     make([][]bool, n),
		forbiddenCost: noiseMax*float64(n) + 100,
	}
	for i := range n {
		m.cost[i] = make([]float64, n)
		m.forbidden[i] = make([]bool, n)
		for j := range n {
			switch {
			case i == j:
				m.cost[i][j] = math.Inf(1)
			case forbid.IsForbidden(ids[i], ids[j]):
				m.cost[i][j] = m.forbiddenCost
				m.forbidden[i][j] = true
			default:
				m.cost[i][j] = rng.Float64() * noiseMax
			}
		}
	}
	return m
}

// tourCost sums the cost of every link of the closed tour.
func (m *costMatrix) tourCost(tour []int) float64 {
	total := 0.0
	for i := range tour {
		total += m.cost[tour[i]][tour[(i+1)%len(tour)]]
	}
	return total
}

// violations counts forbidden links in the closed tour.
func (m *costMatrix) violations(tour []int) int {
	count := 0
	for i := range tour {
		if m.forbidden[tour[i]][tour[(i+1)%len(tour)]] {
			count++
		}
	}
	return count
}
