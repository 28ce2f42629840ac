package errors

import (
	"context"
	sterrors "errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"
)

// Kind is the coarse category of a call failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindSerialization
	KindTransport
	KindAuth
	KindService
	KindThrottling
	KindCancellation
)

func (k Kind) String() string {
	switch k {
	case KindSerialization:
		return "serialization"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindService:
		return "service"
	case KindThrottling:
		return "throttling"
	case KindCancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

// RetryableError lets any error override the default retry decision.
type RetryableError interface {
	error
	RetryableError() bool
}

// SerializationError reports a failure to encode input or decode output.
type SerializationError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *SerializationError) Error() string {
	return format("serialization", e.Operation, e.Message, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// TransportError is a network-level failure. Retryable unless Permanent.
type TransportError struct {
	Operation string
	Cause     error
	Permanent bool
}

func (e *TransportError) Error() string {
	return format("transport", e.Operation, "", e.Cause)
}

func (e *TransportError) Unwrap() error        { return e.Cause }
func (e *TransportError) RetryableError() bool { return !e.Permanent }

// AuthError reports that no auth scheme or identity could be resolved, or
// that signing failed. Never retried.
type AuthError struct {
	Operation string
	Message   string
	Cause     error
}

func (e *AuthError) Error() string {
	return format("auth", e.Operation, e.Message, e.Cause)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// ServiceError is a modeled error returned by the remote service.
type ServiceError struct {
	Operation  string
	Code       string
	Message    string
	StatusCode int
	RequestID  string
	Fault      smithy.ErrorFault
	Retryable  bool
	Throttling bool
	RetryAfter time.Duration
	Cause      error
}

func (e *ServiceError) Error() string {
	msg := e.Code
	if e.Message != "" {
		msg = e.Code + ": " + e.Message
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.RequestID != "" {
		msg += ", request id " + e.RequestID
	}
	return format("service", e.Operation, msg, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func (e *ServiceError) ErrorCode() string    { return e.Code }
func (e *ServiceError) ErrorMessage() string { return e.Message }

func (e *ServiceError) ErrorFault() smithy.ErrorFault {
	if e.Fault != smithy.FaultUnknown {
		return e.Fault
	}
	switch {
	case e.StatusCode >= 500:
		return smithy.FaultServer
	case e.StatusCode >= 400:
		return smithy.FaultClient
	default:
		return smithy.FaultUnknown
	}
}

func (e *ServiceError) RetryableError() bool { return e.Retryable || e.Throttling }

// ThrottlingError signals the service asked the client to slow down. Always
// retryable.
type ThrottlingError struct {
	Operation  string
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottlingError) Error() string {
	msg := e.Message
	if e.RetryAfter > 0 {
		msg = fmt.Sprintf("%s (retry after %v)", msg, e.RetryAfter)
	}
	return format("throttling", e.Operation, msg, e.Cause)
}

func (e *ThrottlingError) Unwrap() error        { return e.Cause }
func (e *ThrottlingError) RetryableError() bool { return true }

// CancellationError reports that the caller cancelled the call. Never retried.
type CancellationError struct {
	Operation string
	Attempts  int
	Cause     error
}

func (e *CancellationError) Error() string {
	return format("cancellation", e.Operation, fmt.Sprintf("after %d attempt(s)", e.Attempts), e.Cause)
}

func (e *CancellationError) Unwrap() error { return e.Cause }

func format(kind, operation, msg string, cause error) string {
	s := "opflow: " + kind + " error"
	if operation != "" {
		s += " in " + operation
	}
	if msg != "" {
		s += ": " + msg
	}
	if cause != nil {
		s += ": " + cause.Error()
	}
	return s
}

// Classify returns the category of err, walking the wrap chain.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var (
		cancel *CancellationError
		auth   *AuthError
		thr    *ThrottlingError
		svc    *ServiceError
		ser    *SerializationError
		tr     *TransportError
	)
	switch {
	case sterrors.As(err, &cancel):
		return KindCancellation
	case sterrors.As(err, &tr):
		// Engines return the caller's context error bare, so a context error
		// inside a TransportError is a per-attempt timeout.
		return KindTransport
	case isContextError(err):
		return KindCancellation
	case sterrors.As(err, &auth):
		return KindAuth
	case sterrors.As(err, &thr):
		return KindThrottling
	case sterrors.As(err, &svc):
		if svc.Throttling {
			return KindThrottling
		}
		return KindService
	case sterrors.As(err, &ser):
		return KindSerialization
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether the retry middleware may attempt the call
// again after err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case KindCancellation, KindAuth, KindSerialization:
		return false
	case KindThrottling:
		return true
	}
	var r RetryableError
	if sterrors.As(err, &r) {
		return r.RetryableError()
	}
	return false
}

// IsThrottling reports whether err asks the client to back off.
func IsThrottling(err error) bool {
	return Classify(err) == KindThrottling
}

// RetryAfter returns the server-suggested delay carried by err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var thr *ThrottlingError
	if sterrors.As(err, &thr) && thr.RetryAfter > 0 {
		return thr.RetryAfter, true
	}
	var svc *ServiceError
	if sterrors.As(err, &svc) && svc.RetryAfter > 0 {
		return svc.RetryAfter, true
	}
	return 0, false
}

func isContextError(err error) bool {
	return sterrors.Is(err, context.Canceled) || sterrors.Is(err, context.DeadlineExceeded)
}
