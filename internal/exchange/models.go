package exchange

import (
	"time"

	"secretsanta/internal/healthcheck"
	"secretsanta/internal/lifecycle"
	"secretsanta/internal/matching"
)

// Callback data carried by inline options.
const (
	CallbackConfirm   = "confirm"
	CallbackSanta     = "santa"
	CallbackRecipient = "recipient"
)

// RunResult describes a successful matching run.
type RunResult struct {
	RunID     string                `json:"run_id"`
	Strategy  string                `json:"strategy"`
	Chain     []matching.Assignment `json:"chain"`
	Report    healthcheck.Report    `json:"report"`
	Duration  time.Duration         `json:"duration_ns"`
	StartedAt time.Time             `json:"started_at"`
}

// Delivery summarizes a fan-out send.
type Delivery struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}

// Status is the owner's view of the exchange.
type Status struct {
	Phase       lifecycle.Phase    `json:"phase"`
	Total       int                `json:"total"`
	Provisional int                `json:"provisional"`
	Confirmed   int                `json:"confirmed"`
	Matched     int                `json:"matched"`
	Report      healthcheck.Report `json:"report"`
}
