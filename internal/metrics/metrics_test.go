package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("tools/list", OutcomeOK, 10*time.Millisecond)
	m.ObserveRequest("tools/list", OutcomeOK, 20*time.Millisecond)
	m.ObserveRequest("tools/call", OutcomeTimeout, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("tools/list", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("tools/call", OutcomeTimeout)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetrics_ObserveStart(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveStart(nil)
	m.ObserveStart(errors.New("boom"))
	m.ObserveStart(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.processStarts.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.processStarts.WithLabelValues("error")))
}

func TestMetrics_SharedRegistererReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	var second *Metrics
	assert.NotPanics(t, func() { second = New(reg) })

	first.ObserveRequest("tools/call", OutcomeOK, time.Millisecond)
	second.ObserveRequest("tools/call", OutcomeOK, time.Millisecond)
	second.ObserveStart(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(first.requests.WithLabelValues("tools/call", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.processStarts.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(second.duration))
}

func TestMetrics_ConflictingCollectorPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "different help",
	}, []string{"method"}))

	assert.Panics(t, func() { New(reg) })
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.Nil(t, New(nil))
	assert.NotPanics(t, func() {
		m.ObserveRequest("x", OutcomeOK, time.Millisecond)
		m.ObserveStart(nil)
	})
}
