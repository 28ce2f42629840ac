// Package waiter polls an operation until its output or error reaches a
// terminal state, spacing attempts with the retry scheduler.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/retry"
)

// State is what an acceptor decides when it matches.
type State int

const (
	Success State = iota
	Failure
	Retry
)

func (s State) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "retry"
	}
}

// Acceptor matches one attempt's result and names the resulting state.
type Acceptor[O any] struct {
	State   State
	Matcher func(out O, err error) bool
}

// OnOutput matches successful attempts whose output satisfies fn.
func OnOutput[O any](state State, fn func(O) bool) Acceptor[O] {
	return Acceptor[O]{State: state, Matcher: func(out O, err error) bool {
		return err == nil && fn(out)
	}}
}

// OnError matches failed attempts whose error satisfies fn.
func OnError[O any](state State, fn func(error) bool) Acceptor[O] {
	return Acceptor[O]{State: state, Matcher: func(_ O, err error) bool {
		return err != nil && fn(err)
	}}
}

// OnErrorCode matches service errors with the given code.
func OnErrorCode[O any](state State, code string) Acceptor[O] {
	return OnError[O](state, func(err error) bool {
		var svc *errspkg.ServiceError
		return errors.As(err, &svc) && svc.Code == code
	})
}

// Result is the last attempt seen by a waiter.
type Result[O any] struct {
	Output O
	Err    error
}

// Outcome reports how a wait ended.
type Outcome[O any] struct {
	Attempts int
	Result   Result[O]
}

var (
	ErrWaiterTimeout  = errors.New("opflow: waiter timed out before reaching a terminal state")
	ErrNoAcceptors    = errors.New("opflow: waiter needs at least one acceptor")
	ErrInvalidMaxWait = errors.New("opflow: waiter max wait time must be positive")
)

// FailureError reports that a failure acceptor matched.
type FailureError struct {
	Name     string
	Attempts int
	Cause    error
}

func (e *FailureError) Error() string {
	msg := fmt.Sprintf("opflow: waiter %s reached a failure state after %d attempts", e.Name, e.Attempts)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FailureError) Unwrap() error { return e.Cause }

// Options tune a waiter.
type Options struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	MaxWaitTime time.Duration

	Now    func() time.Time
	Jitter func(lo, hi time.Duration) time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger loggingpkg.ServiceLogger
}

const (
	defaultMinDelay = 2 * time.Second
	defaultMaxDelay = 120 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MinDelay <= 0 {
		o.MinDelay = defaultMinDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
	if o.Logger == nil {
		o.Logger = loggingpkg.NopLogger()
	}
	return o
}

// Waiter repeatedly calls an operation until an acceptor ends the wait.
type Waiter[I, O any] struct {
	name      string
	call      func(ctx context.Context, in I) (O, error)
	acceptors []Acceptor[O]
	opts      Options
}

// New returns a waiter. Acceptors are evaluated in order; the first match
// decides the state of an attempt.
func New[I, O any](name string, call func(ctx context.Context, in I) (O, error), opts Options, acceptors ...Acceptor[O]) (*Waiter[I, O], error) {
	if len(acceptors) == 0 {
		return nil, ErrNoAcceptors
	}
	if opts.MaxWaitTime <= 0 {
		return nil, ErrInvalidMaxWait
	}
	return &Waiter[I, O]{name: name, call: call, acceptors: acceptors, opts: opts.withDefaults()}, nil
}

// Wait polls until success, failure, an unmatched error or timeout. An
// unmatched error ends the wait and is returned as-is.
func (w *Waiter[I, O]) Wait(ctx context.Context, in I) (Outcome[O], error) {
	var outcome Outcome[O]
	sched, err := retry.NewScheduler(w.opts.MinDelay, w.opts.MaxDelay, w.opts.MaxWaitTime,
		retry.WithClock(w.opts.Now), retry.WithJitter(w.opts.Jitter))
	if err != nil {
		return outcome, err
	}
	logger := w.opts.Logger.With(loggingpkg.LogFields{"waiter": w.name})

	for {
		if outcome.Attempts > 0 {
			if err := w.opts.Sleep(ctx, sched.CurrentDelay()); err != nil {
				return outcome, &errspkg.CancellationError{Operation: w.name, Attempts: outcome.Attempts, Cause: err}
			}
		}

		outcome.Attempts++
		out, callErr := w.call(ctx, in)
		outcome.Result = Result[O]{Output: out, Err: callErr}
		if ctx.Err() != nil {
			return outcome, &errspkg.CancellationError{Operation: w.name, Attempts: outcome.Attempts, Cause: ctx.Err()}
		}

		state, matched := w.match(out, callErr)
		switch {
		case matched && state == Success:
			logger.Debug("waiter succeeded", loggingpkg.LogFields{"attempts": outcome.Attempts})
			return outcome, nil
		case matched && state == Failure:
			return outcome, &FailureError{Name: w.name, Attempts: outcome.Attempts, Cause: callErr}
		case !matched && callErr != nil:
			return outcome, callErr
		}

		if sched.Expired() {
			return outcome, fmt.Errorf("%w: %s after %d attempts", ErrWaiterTimeout, w.name, outcome.Attempts)
		}
		info := sched.UpdateAfterRetry()
		logger.Trace("waiter retrying", loggingpkg.LogFields{
			"attempts": outcome.Attempts,
			"delay":    info.TimeUntilNextAttempt.String(),
		})
	}
}

func (w *Waiter[I, O]) match(out O, err error) (State, bool) {
	for _, a := range w.acceptors {
		if a.Matcher != nil && a.Matcher(out, err) {
			return a.State, true
		}
	}
	return Retry, false
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
