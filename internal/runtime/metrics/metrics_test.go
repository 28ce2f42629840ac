package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New("test", reg)
	require.NoError(t, m.Register())
	require.NoError(t, m.Register())

	// A second collector set with the same names is tolerated.
	other := New("test", reg)
	assert.NoError(t, other.Register())
}

func TestCallLifecycle(t *testing.T) {
	t.Parallel()

	m := New("test", prometheus.NewRegistry())
	require.NoError(t, m.Register())

	m.CallStarted("weather")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight.WithLabelValues("weather")))

	m.AttemptStarted("weather", "GetCity")
	m.RetryScheduled("weather", "GetCity", true)
	m.AttemptStarted("weather", "GetCity")
	m.RetryScheduled("weather", "GetCity", false)
	m.QuotaRejected("weather", "GetCity")
	m.CallFinished("weather", "GetCity", "throttling", 2, 150*time.Millisecond)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight.WithLabelValues("weather")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("weather", "GetCity")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("weather", "GetCity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.throttlesTotal.WithLabelValues("weather", "GetCity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaRejections.WithLabelValues("weather", "GetCity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsTotal.WithLabelValues("weather", "GetCity", "throttling")))

	stats := m.Operation("GetCity")
	require.NotNil(t, stats)
	assert.EqualValues(t, 1, stats.Calls)
	assert.EqualValues(t, 1, stats.Failures)
	assert.EqualValues(t, 2, stats.Attempts)
	assert.EqualValues(t, 2, stats.Retries)
	assert.EqualValues(t, 1, stats.Throttles)
	assert.EqualValues(t, 1, stats.QuotaRejections)
	assert.Equal(t, 150*time.Millisecond, stats.LastDuration)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	m := New("", prometheus.NewRegistry())
	m.CallStarted("weather")
	m.CallFinished("weather", "GetCity", "success", 1, time.Millisecond)
	m.CallStarted("weather")
	m.CallFinished("weather", "ListCities", "transport", 3, time.Millisecond)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.TotalCalls)
	assert.EqualValues(t, 1, snap.TotalFailures)
	assert.Len(t, snap.Operations, 2)

	// Snapshots are copies.
	snap.Operations["GetCity"].Calls = 99
	assert.EqualValues(t, 1, m.Operation("GetCity").Calls)
	assert.Nil(t, m.Operation("missing"))
}
