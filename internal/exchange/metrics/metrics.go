package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the exchange. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registrations   prometheus.Counter
	Confirmations   prometheus.Counter
	PhaseChanges    *prometheus.CounterVec
	MatchingRuns    *prometheus.CounterVec
	MatchingLatency *prometheus.HistogramVec
	// Unhealthy participants found by the most recent healthcheck.
	UnhealthyParticipants prometheus.Gauge
	OutboundMessages      *prometheus.CounterVec
}

// New registers the exchange metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the exchange metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "santa_registrations_total",
			Help: "Total provisional registrations accepted",
		}),
		Confirmations: f.NewCounter(prometheus.CounterOpts{
			Name: "santa_confirmations_total",
			Help: "Total registrations confirmed",
		}),
		PhaseChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "santa_phase_transitions_total",
			Help: "Phase transitions by target phase",
		}, []string{"phase"}),
		MatchingRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "santa_matching_runs_total",
			Help: "Matching runs by strategy and outcome",
		}, []string{"strategy", "outcome"}), // outcome: "ok", "unhealthy", or an infeasible reason
		MatchingLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "santa_matching_duration_seconds",
			Help:    "Duration of the matching solve",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"strategy"}),
		UnhealthyParticipants: f.NewGauge(prometheus.GaugeOpts{
			Name: "santa_healthcheck_unhealthy_participants",
			Help: "Participants failing the most recent chain healthcheck",
		}),
		OutboundMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "santa_outbound_messages_total",
			Help: "Outbound messages by kind and result",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) IncrementRegistrations() {
	if m != nil {
		m.Registrations.Inc()
	}
}

func (m *Metrics) IncrementConfirmations() {
	if m != nil {
		m.Confirmations.Inc()
	}
}

func (m *Metrics) IncrementPhaseChange(phase string) {
	if m != nil {
		m.PhaseChanges.WithLabelValues(phase).Inc()
	}
}

// ObserveMatching records one matching run.
func (m *Metrics) ObserveMatching(strategy, outcome string, d time.Duration) {
	if m != nil {
		m.MatchingRuns.WithLabelValues(strategy, outcome).Inc()
		m.MatchingLatency.WithLabelValues(strategy).Observe(d.Seconds())
	}
}

func (m *Metrics) SetUnhealthy(n int) {
	if m != nil {
		m.UnhealthyParticipants.Set(float64(n))
	}
}

// IncrementOutbound records a message handed to the messenger.
func (m *Metrics) IncrementOutbound(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OutboundMessages.WithLabelValues(kind, result).Inc()
}
