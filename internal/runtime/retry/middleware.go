package retry

import (
	"context"
	"errors"
	"time"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
)

// MiddlewareID identifies the retry middleware in the Finalize step.
const MiddlewareID = "RetryMiddleware"

const (
	DefaultMaxAttempts = 3
	DefaultMinDelay    = 100 * time.Millisecond
	DefaultMaxDelay    = 20 * time.Second
	DefaultMaxWaitTime = 60 * time.Second
)

var (
	// InfoKey holds the AttemptInfo of the most recently scheduled retry.
	InfoKey = operation.NewKey[AttemptInfo]("RetryAttemptInfo")
	// MaxAttemptsKey holds the attempt limit in effect for the call.
	MaxAttemptsKey = operation.NewKey[int]("RetryMaxAttempts")
)

// Options configures the retry middleware. Zero values fall back to defaults.
type Options struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	MaxWaitTime time.Duration

	// Bucket is shared across calls when set; otherwise each call gets a
	// fresh bucket built from BucketConfig.
	Bucket       *TokenBucket
	BucketConfig TokenBucketConfig

	// Retryable overrides errors.IsRetryable.
	Retryable func(error) bool

	// OnRetry is invoked before sleeping for a retry.
	OnRetry func(oc *operation.Context, info AttemptInfo, err error)

	// OnQuotaExceeded is invoked when the bucket refuses a retry.
	OnQuotaExceeded func(oc *operation.Context, err error)

	Now    func() time.Time
	Jitter func(lo, hi time.Duration) time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MinDelay <= 0 {
		o.MinDelay = DefaultMinDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.MinDelay {
		o.MaxDelay = o.MinDelay
	}
	if o.MaxWaitTime <= 0 {
		o.MaxWaitTime = DefaultMaxWaitTime
	}
	if o.Retryable == nil {
		o.Retryable = errspkg.IsRetryable
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	if o.BucketConfig.Now == nil {
		o.BucketConfig.Now = o.Now
	}
	return o
}

type retryMiddleware[Out any] struct {
	opts Options
}

// NewMiddleware returns the retry middleware for the Finalize step. Every
// attempt runs the inner chain on a fresh clone of the request builder so
// signing and checksums are recomputed; idempotency tokens set earlier in
// the chain are reused untouched.
func NewMiddleware[Out any](opts Options) middleware.Middleware[*httpapi.RequestBuilder, Out] {
	return &retryMiddleware[Out]{opts: opts.withDefaults()}
}

func (m *retryMiddleware[Out]) ID() string { return MiddlewareID }

func (m *retryMiddleware[Out]) HandleMiddleware(
	ctx context.Context,
	oc *operation.Context,
	in *httpapi.RequestBuilder,
	next middleware.Handler[*httpapi.RequestBuilder, Out],
) (Out, error) {
	var zero Out

	sched, err := NewScheduler(m.opts.MinDelay, m.opts.MaxDelay, m.opts.MaxWaitTime,
		WithClock(m.opts.Now), WithJitter(m.opts.Jitter))
	if err != nil {
		return zero, err
	}
	bucket := m.opts.Bucket
	if bucket == nil {
		bucket = NewTokenBucket(m.opts.BucketConfig)
	}
	logger := oc.Logger().With(loggingpkg.LogFields{"operation": oc.OperationName()})
	operation.Set(oc, MaxAttemptsKey, m.opts.MaxAttempts)

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return zero, m.cancelled(oc, attempts, err)
		}

		attempts++
		oc.SetAttemptCount(attempts)

		req := in.Clone()
		if attempts > 1 {
			if err := req.Body().Rewind(); err != nil {
				return zero, &errspkg.SerializationError{Operation: oc.OperationName(), Message: "cannot replay request body", Cause: err}
			}
		}

		out, err := next.Handle(ctx, oc, req)
		if err == nil {
			bucket.RecordSuccess()
			return out, nil
		}

		// Only the caller cancels a call. Timeouts of a single attempt surface
		// as transport errors and stay retryable.
		var cancelErr *errspkg.CancellationError
		if ctx.Err() != nil || errors.As(err, &cancelErr) {
			return zero, m.cancelled(oc, attempts, err)
		}
		if !m.opts.Retryable(err) {
			return zero, err
		}
		if attempts >= m.opts.MaxAttempts {
			logger.Debug("retry attempts exhausted", loggingpkg.LogFields{"attempts": attempts})
			return zero, err
		}
		if sched.Expired() {
			logger.Debug("retry wait budget spent", loggingpkg.LogFields{"attempts": attempts})
			return zero, err
		}
		if !req.Body().Seekable() {
			return zero, err
		}
		if !bucket.Acquire() {
			logger.Debug("retry quota exhausted", loggingpkg.LogFields{"attempts": attempts})
			if m.opts.OnQuotaExceeded != nil {
				m.opts.OnQuotaExceeded(oc, err)
			}
			return zero, err
		}

		info := sched.UpdateAfterRetry()
		operation.Set(oc, InfoKey, info)
		wait := sched.CurrentDelay()
		if hint, ok := errspkg.RetryAfter(err); ok && hint > wait && hint < info.TimeUntilTimeout-sched.MinDelay() {
			wait = hint
		}

		logger.Debug("retrying operation", loggingpkg.LogFields{
			"attempt": attempts,
			"delay":   wait.String(),
			"error":   err.Error(),
		})
		if m.opts.OnRetry != nil {
			m.opts.OnRetry(oc, info, err)
		}

		if err := m.opts.Sleep(ctx, wait); err != nil {
			return zero, m.cancelled(oc, attempts, err)
		}
	}
}

func (m *retryMiddleware[Out]) cancelled(oc *operation.Context, attempts int, err error) error {
	var c *errspkg.CancellationError
	if errors.As(err, &c) {
		return c
	}
	return &errspkg.CancellationError{Operation: oc.OperationName(), Attempts: attempts, Cause: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
