package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("low-stock-scan", 250*time.Millisecond, nil)
	m.ObserveRun("low-stock-scan", time.Second, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("low-stock-scan", outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("low-stock-scan", outcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", outcomeSuccess)))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("low-stock-scan")), 0.0)

	var sample dto.Metric
	observer, err := m.duration.GetMetricWithLabelValues("low-stock-scan")
	require.NoError(t, err)
	require.NoError(t, observer.(prometheus.Metric).Write(&sample))
	assert.Equal(t, uint64(2), sample.GetHistogram().GetSampleCount())
	assert.InDelta(t, 1.25, sample.GetHistogram().GetSampleSum(), 1e-9)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	assert.NotPanics(t, func() { m.ObserveRun("job", time.Second, nil) })
	assert.NotPanics(t, func() { NewCronJobMetrics(nil).ObserveRun("job", time.Second, nil) })
}
