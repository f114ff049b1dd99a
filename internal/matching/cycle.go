package matching

import "fmt"

// Assignment is one giver→recipient link of a chain.
type Assignment struct {
	Giver     string `json:"giver"`
	Recipient string `json:"recipient"`
}

// Cycle lists participants so that Cycle[i] gives to Cycle[i+1], and the last
// gives to the first.
type Cycle []string

// Assignments expands the cycle into its giver→recipient links.
func (c Cycle) Assignments() []Assignment {
	out := make([]Assignment, len(c))
	for i, giver := range c {
		out[i] = Assignment{Giver: giver, Recipient: c[(i+1)%len(c)]}
	}
	return out
}

// Validate checks c is a single cycle visiting every id of want exactly once
// and that no link is forbidden.
func (c Cycle) Validate(want []string, forbid Constraints) error {
	if len(c) != len(want) {
		return fmt.Errorf("cycle has %d nodes, want %d", len(c), len(want))
	}
	expected := make(map[string]bool, len(want))
	for _, id := range want {
		expected[id] = true
	}
	seen := make(map[string]bool, len(c))
	for _, id := range c {
		if !expected[id] {
			return fmt.Errorf("cycle visits unknown participant %s", id)
		}
		if seen[id] {
			return fmt.Errorf("cycle visits %s twice", id)
		}
		seen[id] = true
	}
	for _, a := range c.Assignments() {
		if forbid.IsForbidden(a.Giver, a.Recipient) {
			return fmt.Errorf("cycle uses forbidden pair %s→%s", a.Giver, a.Recipient)
		}
	}
	return nil
}
