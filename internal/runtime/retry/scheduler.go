// Package retry schedules repeated attempts of an operation call: a backoff
// scheduler bounded by a total wait budget, a token bucket quota and the
// middleware that combines them around the transport.
package retry

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// State is the lifecycle phase of a Scheduler.
type State int

const (
	// Idle means no attempt has been scheduled yet; the first request is
	// allowed immediately.
	Idle State = iota
	// Waiting means further attempts are allowed once CurrentDelay elapses.
	Waiting
	// Expired means the wait budget is spent; no further attempts.
	Expired
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Expired:
		return "expired"
	default:
		return "idle"
	}
}

// AttemptInfo describes the attempt just scheduled.
type AttemptInfo struct {
	Attempt              int
	TimeUntilNextAttempt time.Duration
	TimeUntilTimeout     time.Duration
}

// Scheduler computes the delay before each further attempt following the
// exponential formula with full jitter between MinDelay and the capped
// backoff. It is owned by one call.
type Scheduler struct {
	minDelay time.Duration
	maxDelay time.Duration
	maxWait  time.Duration

	now    func() time.Time
	jitter func(lo, hi time.Duration) time.Duration

	attempt int
	expired bool
	start   time.Time
	next    time.Time
}

// SchedulerOption customises a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJitter replaces the uniform random pick in [lo, hi].
func WithJitter(jitter func(lo, hi time.Duration) time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if jitter != nil {
			s.jitter = jitter
		}
	}
}

var (
	ErrInvalidMinDelay    = errors.New("opflow: retry min delay must be positive")
	ErrInvalidMaxDelay    = errors.New("opflow: retry max delay must not be below min delay")
	ErrInvalidMaxWaitTime = errors.New("opflow: retry max wait time must be positive")
)

// NewScheduler returns an idle scheduler.
func NewScheduler(minDelay, maxDelay, maxWaitTime time.Duration, opts ...SchedulerOption) (*Scheduler, error) {
	switch {
	case minDelay <= 0:
		return nil, ErrInvalidMinDelay
	case maxDelay < minDelay:
		return nil, ErrInvalidMaxDelay
	case maxWaitTime <= 0:
		return nil, ErrInvalidMaxWaitTime
	}
	s := &Scheduler{
		minDelay: minDelay,
		maxDelay: maxDelay,
		maxWait:  maxWaitTime,
		now:      time.Now,
		jitter:   uniformJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func uniformJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// UpdateAfterRetry records an attempt and schedules the next one. When the
// remaining budget cannot absorb the computed delay plus MinDelay, the delay
// is clamped and the scheduler expires: the attempt it schedules is the last.
func (s *Scheduler) UpdateAfterRetry() AttemptInfo {
	now := s.now()
	s.attempt++
	if s.attempt == 1 {
		s.start = now
	}

	var delay time.Duration
	if s.attempt > s.attemptCeiling() {
		delay = s.maxDelay
	} else {
		delay = s.minDelay * time.Duration(1<<uint(s.attempt-1))
	}
	delay = s.jitter(s.minDelay, delay)

	remaining := s.maxWait - now.Sub(s.start)
	if remaining-delay <= s.minDelay {
		delay = remaining - s.minDelay
		s.expired = true
	}
	s.next = now.Add(delay)

	return AttemptInfo{
		Attempt:              s.attempt,
		TimeUntilNextAttempt: s.CurrentDelay(),
		TimeUntilTimeout:     remaining,
	}
}

// attemptCeiling is the last attempt whose backoff stays below MaxDelay.
func (s *Scheduler) attemptCeiling() int {
	return int(math.Log2(float64(s.maxDelay)/float64(s.minDelay)) + 1)
}

// CurrentDelay is how long to wait before the next attempt. Zero until the
// first update.
func (s *Scheduler) CurrentDelay() time.Duration {
	if s.next.IsZero() {
		return 0
	}
	return max(0, s.next.Sub(s.now()))
}

func (s *Scheduler) Attempt() int  { return s.attempt }
func (s *Scheduler) Expired() bool { return s.expired }

func (s *Scheduler) MinDelay() time.Duration    { return s.minDelay }
func (s *Scheduler) MaxDelay() time.Duration    { return s.maxDelay }
func (s *Scheduler) MaxWaitTime() time.Duration { return s.maxWait }

func (s *Scheduler) State() State {
	switch {
	case s.expired:
		return Expired
	case s.attempt == 0:
		return Idle
	default:
		return Waiting
	}
}
