package retry

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration)  { c.t = c.t.Add(d) }
func newFakeClock() *fakeClock                { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }
func secs(f float64) time.Duration            { return time.Duration(f * float64(time.Second)) }
func upper(_, hi time.Duration) time.Duration { return hi }

func TestSchedulerAllowsImmediateFirstRequest(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(2*time.Second, 120*time.Second, 360*time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), s.CurrentDelay())
	assert.False(t, s.Expired())
	assert.Equal(t, Idle, s.State())
}

func TestSchedulerAttemptIncrements(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := NewScheduler(2*time.Second, 120*time.Second, 360*time.Second, WithClock(clock.Now))
	require.NoError(t, err)

	assert.Equal(t, 0, s.Attempt())
	s.UpdateAfterRetry()
	assert.Equal(t, 1, s.Attempt())
	s.UpdateAfterRetry()
	assert.Equal(t, 2, s.Attempt())
	assert.Equal(t, Waiting, s.State())
}

func TestSchedulerExpiresAfterMaxWaitTime(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := NewScheduler(2*time.Second, 120*time.Second, 360*time.Second, WithClock(clock.Now))
	require.NoError(t, err)

	s.UpdateAfterRetry()
	clock.Advance(361 * time.Second)
	assert.False(t, s.Expired())
	s.UpdateAfterRetry()
	assert.True(t, s.Expired())
	assert.Equal(t, Expired, s.State())
	assert.Equal(t, time.Duration(0), s.CurrentDelay())
}

func TestSchedulerBackoffGrowsToMaxDelay(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := NewScheduler(time.Second, 8*time.Second, time.Hour, WithClock(clock.Now), WithJitter(upper))
	require.NoError(t, err)

	// ceiling = floor(log2(8)+1) = 4
	want := []time.Duration{1, 2, 4, 8, 8, 8}
	for i, w := range want {
		info := s.UpdateAfterRetry()
		assert.Equal(t, i+1, info.Attempt)
		assert.Equal(t, w*time.Second, info.TimeUntilNextAttempt, "attempt %d", i+1)
	}
}

func TestSchedulerJitterStaysInRange(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := NewScheduler(time.Second, 30*time.Second, 24*time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	for range 50 {
		info := s.UpdateAfterRetry()
		assert.GreaterOrEqual(t, info.TimeUntilNextAttempt, time.Second)
		assert.LessOrEqual(t, info.TimeUntilNextAttempt, 30*time.Second)
	}
}

func TestSchedulerClampsFinalDelay(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := NewScheduler(2*time.Second, 10*time.Second, 12*time.Second, WithClock(clock.Now), WithJitter(upper))
	require.NoError(t, err)

	info := s.UpdateAfterRetry() // delay 2, remaining 12
	assert.False(t, s.Expired())
	clock.Advance(info.TimeUntilNextAttempt)

	info = s.UpdateAfterRetry() // delay 4, remaining 10
	assert.False(t, s.Expired())
	clock.Advance(info.TimeUntilNextAttempt)

	info = s.UpdateAfterRetry() // delay 8, remaining 6 -> clamp to 4
	assert.True(t, s.Expired())
	assert.Equal(t, 4*time.Second, info.TimeUntilNextAttempt)
	assert.Equal(t, 6*time.Second, info.TimeUntilTimeout)
}

func TestNewSchedulerValidates(t *testing.T) {
	t.Parallel()

	_, err := NewScheduler(0, time.Second, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidMinDelay)
	_, err = NewScheduler(2*time.Second, time.Second, time.Minute)
	assert.ErrorIs(t, err, ErrInvalidMaxDelay)
	_, err = NewScheduler(time.Second, time.Second, 0)
	assert.ErrorIs(t, err, ErrInvalidMaxWaitTime)
}

// Requests made at the scheduled times must never start past the wait budget.
func TestSchedulerProceedsToExpirationAndStops(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 1024))
	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	for range 1000 {
		minDelay := secs(between(5, 10))
		maxDelay := secs(between(10, 20))
		maxWait := secs(between(20, 240))

		clock := newFakeClock()
		base := clock.Now()
		s, err := NewScheduler(minDelay, maxDelay, maxWait, WithClock(clock.Now))
		require.NoError(t, err)

		iteration := 0
		for !s.Expired() {
			iteration++
			elapsed := clock.Now().Sub(base)

			info := s.UpdateAfterRetry()
			require.Equal(t, iteration, info.Attempt)
			require.Equal(t, s.CurrentDelay(), info.TimeUntilNextAttempt)
			require.Equal(t, maxWait-elapsed, info.TimeUntilTimeout)

			inflight := secs(between(0, 2))
			clock.Advance(s.CurrentDelay() + inflight)

			require.Less(t, clock.Now().Sub(base), maxWait)
		}
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "waiting", Waiting.String())
	assert.Equal(t, "expired", Expired.String())
}
