package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementRegistrations()
	m.IncrementRegistrations()
	m.ObserveMatching("tsp", "ok", 20*time.Millisecond)
	m.SetUnhealthy(3)
	m.IncrementOutbound("text", nil)
	m.IncrementOutbound("text", errors.New("down"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.Registrations), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MatchingRuns.WithLabelValues("tsp", "ok")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.UnhealthyParticipants), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.OutboundMessages.WithLabelValues("text", "error")), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRegistrations()
		m.IncrementConfirmations()
		m.IncrementPhaseChange("EXCHANGE_ACTIVE")
		m.ObserveMatching("shuffle", "retries_exhausted", time.Second)
		m.SetUnhealthy(1)
		m.IncrementOutbound("photo", nil)
	})
}
