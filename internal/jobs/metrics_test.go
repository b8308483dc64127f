package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("masters:self_heal").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("masters:self_heal").End(boom), boom)
	metrics.AddCreated("masters:self_heal", 4)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("masters:self_heal", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("masters:self_heal", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("masters:self_heal")))
	require.Equal(t, 4.0, testutil.ToFloat64(metrics.created.WithLabelValues("masters:self_heal")))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("x").End(boom), boom)
	metrics.AddCreated("x", 1)
}
