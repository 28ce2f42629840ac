package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func upper(_, hi time.Duration) time.Duration { return hi }

func options(clock *fakeClock) Options {
	return Options{
		MinDelay:    time.Second,
		MaxDelay:    4 * time.Second,
		MaxWaitTime: 10 * time.Second,
		Now:         clock.Now,
		Jitter:      upper,
		Sleep:       clock.Sleep,
	}
}

type city struct{ Status string }

func sequence(results ...any) func(context.Context, string) (city, error) {
	i := 0
	return func(context.Context, string) (city, error) {
		r := results[min(i, len(results)-1)]
		i++
		if err, ok := r.(error); ok {
			return city{}, err
		}
		return city{Status: r.(string)}, nil
	}
}

func isStatus(s string) func(city) bool {
	return func(c city) bool { return c.Status == s }
}

func TestWaiterSucceeds(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w, err := New("CityReady", sequence("pending", "pending", "ready"), options(clock),
		OnOutput(Success, isStatus("ready")))
	require.NoError(t, err)

	outcome, err := w.Wait(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, "ready", outcome.Result.Output.Status)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestWaiterFailureState(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w, err := New("CityReady", sequence("pending", "deleted"), options(clock),
		OnOutput(Success, isStatus("ready")),
		OnOutput(Failure, isStatus("deleted")))
	require.NoError(t, err)

	outcome, err := w.Wait(context.Background(), "1")
	var failure *FailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 2, failure.Attempts)
	assert.Equal(t, 2, outcome.Attempts)
}

func TestWaiterRetriesMatchedErrors(t *testing.T) {
	t.Parallel()

	notFound := &errspkg.ServiceError{Code: "NotFound", StatusCode: 404}
	clock := newFakeClock()
	w, err := New("CityExists", sequence(notFound, notFound, "pending"), options(clock),
		OnErrorCode[city](Retry, "NotFound"),
		OnOutput(Success, func(city) bool { return true }))
	require.NoError(t, err)

	outcome, err := w.Wait(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Attempts)
}

func TestWaiterReturnsUnmatchedErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	w, err := New("CityReady", sequence("pending", boom), options(newFakeClock()),
		OnOutput(Success, isStatus("ready")))
	require.NoError(t, err)

	outcome, err := w.Wait(context.Background(), "1")
	assert.Same(t, boom, err)
	assert.Equal(t, 2, outcome.Attempts)
}

func TestWaiterTimesOut(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	w, err := New("CityReady", sequence("pending"), options(clock),
		OnOutput(Success, isStatus("ready")))
	require.NoError(t, err)

	outcome, err := w.Wait(context.Background(), "1")
	require.ErrorIs(t, err, ErrWaiterTimeout)
	// The update that expires the scheduler still allows the attempt it
	// scheduled.
	assert.Equal(t, 5, outcome.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 2 * time.Second}, clock.sleeps)

	var total time.Duration
	for _, d := range clock.sleeps {
		total += d
	}
	assert.Less(t, total, 10*time.Second)
}

func TestWaiterCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	opts := options(newFakeClock())
	opts.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	w, err := New("CityReady", sequence("pending"), opts, OnOutput(Success, isStatus("ready")))
	require.NoError(t, err)

	outcome, err := w.Wait(ctx, "1")
	var cancelled *errspkg.CancellationError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, 1, outcome.Attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New[string, city]("x", sequence("ready"), Options{MaxWaitTime: time.Second})
	assert.ErrorIs(t, err, ErrNoAcceptors)

	_, err = New("x", sequence("ready"), Options{}, OnOutput(Success, isStatus("ready")))
	assert.ErrorIs(t, err, ErrInvalidMaxWait)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "failure", Failure.String())
	assert.Equal(t, "retry", Retry.String())
}
