package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Event("view", OutcomeProcessed)
	m.Event("view", OutcomeProcessed)
	m.Event("purchase", OutcomeMalformed)
	m.ContentDegraded()
	m.Inconsistency(3)
	m.ObserveProcessing(5 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("view", OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("purchase", OutcomeMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.contentDegraded))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.inconsistencies))

	RegisterModelSize(reg, func() int { return 42 })
	n, err := testutil.GatherAndCount(reg, "reckit_rt_model_items")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Event("view", OutcomeFailed)
	m.ContentDegraded()
	m.Inconsistency(1)
	m.Published("user")
	m.TransportRetry("kafka")
	m.ObserveProcessing(time.Second)
}
