package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrConfigRequired", ErrConfigRequired, "opflow: configuration is required"},
		{"ErrTransportRequired", ErrTransportRequired, "opflow: transport handler is required"},
		{"ErrOperationNameRequired", ErrOperationNameRequired, "opflow: operation name is required"},
		{"ErrDuplicateMiddleware", ErrDuplicateMiddleware, "opflow: middleware id already registered"},
		{"ErrMiddlewareNotFound", ErrMiddlewareNotFound, "opflow: middleware id not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("retry: max attempts cannot be negative")
	err := ConfigValidationError{Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "opflow: invalid configuration: retry: max attempts cannot be negative", err.Error())
	assert.Equal(t, "opflow: invalid configuration", ConfigValidationError{}.Error())
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"nil", nil, KindUnknown, false},
		{"plain", cause, KindUnknown, false},
		{"serialization", &SerializationError{Cause: cause}, KindSerialization, false},
		{"transport", &TransportError{Cause: cause}, KindTransport, true},
		{"permanent transport", &TransportError{Cause: cause, Permanent: true}, KindTransport, false},
		{"transport timeout", &TransportError{Cause: fmt.Errorf("client timeout: %w", context.DeadlineExceeded)}, KindTransport, true},
		{"auth", &AuthError{Message: "no resolver"}, KindAuth, false},
		{"service non retryable", &ServiceError{Code: "NotFound", StatusCode: 404}, KindService, false},
		{"service retryable", &ServiceError{Code: "InternalError", StatusCode: 500, Retryable: true}, KindService, true},
		{"service throttling", &ServiceError{Code: "SlowDown", Throttling: true}, KindThrottling, true},
		{"throttling", &ThrottlingError{}, KindThrottling, true},
		{"cancellation", &CancellationError{Cause: context.Canceled}, KindCancellation, false},
		{"deadline", context.DeadlineExceeded, KindCancellation, false},
		{"wrapped throttling", fmt.Errorf("outer: %w", &ThrottlingError{}), KindThrottling, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.kind, Classify(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestServiceErrorImplementsAPIError(t *testing.T) {
	t.Parallel()

	var apiErr smithy.APIError = &ServiceError{Code: "ValidationException", Message: "bad city", StatusCode: 400, RequestID: "req-1"}
	assert.Equal(t, "ValidationException", apiErr.ErrorCode())
	assert.Equal(t, "bad city", apiErr.ErrorMessage())
	assert.Equal(t, smithy.FaultClient, apiErr.ErrorFault())
	assert.Contains(t, apiErr.Error(), "ValidationException: bad city (status 400), request id req-1")

	assert.Equal(t, smithy.FaultServer, (&ServiceError{StatusCode: 503}).ErrorFault())
	assert.Equal(t, smithy.FaultClient, (&ServiceError{StatusCode: 503, Fault: smithy.FaultClient}).ErrorFault())
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	d, ok := RetryAfter(&ThrottlingError{RetryAfter: 2 * time.Second})
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	d, ok = RetryAfter(&ServiceError{RetryAfter: time.Second})
	assert.True(t, ok)
	assert.Equal(t, time.Second, d)

	_, ok = RetryAfter(errors.New("x"))
	assert.False(t, ok)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "opflow: auth error in GetCity: no scheme", (&AuthError{Operation: "GetCity", Message: "no scheme"}).Error())
	assert.Equal(t, "opflow: transport error: dial: refused", (&TransportError{Cause: errors.New("dial: refused")}).Error())
	assert.Equal(t, "opflow: cancellation error in Op: after 2 attempt(s): context canceled",
		(&CancellationError{Operation: "Op", Attempts: 2, Cause: context.Canceled}).Error())
	assert.Equal(t, "throttling", KindThrottling.String())
}
