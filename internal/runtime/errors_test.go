package runtime

import (
	"net/http"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	"github.com/drblury/opflow/internal/runtime/operation"
)

func TestDeserializeServiceError(t *testing.T) {
	t.Parallel()

	oc := operation.NewBuilder().WithOperation("GetCity").Build()

	tests := []struct {
		name       string
		status     int
		header     http.Header
		body       string
		code       string
		message    string
		fault      smithy.ErrorFault
		retryable  bool
		throttling bool
	}{
		{
			name:   "error type header wins",
			status: http.StatusBadRequest,
			header: http.Header{"X-Amzn-Errortype": {"ValidationException:http://internal/"}},
			body:   `{"__type":"Other","message":"bad input"}`,
			code:   "ValidationException", message: "bad input", fault: smithy.FaultClient,
		},
		{
			name:   "namespaced body type",
			status: http.StatusNotFound,
			body:   `{"__type":"com.example.weather#NoSuchResource","Message":"missing"}`,
			code:   "NoSuchResource", message: "missing", fault: smithy.FaultClient,
		},
		{
			name:   "code member",
			status: http.StatusConflict,
			body:   `{"code":"Conflict","errorMessage":"busy"}`,
			code:   "Conflict", message: "busy", fault: smithy.FaultClient,
		},
		{
			name:   "throttling code",
			status: http.StatusBadRequest,
			body:   `{"__type":"ThrottlingException"}`,
			code:   "ThrottlingException", fault: smithy.FaultClient, throttling: true,
		},
		{
			name:   "too many requests without body",
			status: http.StatusTooManyRequests,
			code:   "TooManyRequests", fault: smithy.FaultClient, throttling: true,
		},
		{
			name:   "transient status",
			status: http.StatusServiceUnavailable,
			body:   `not json`,
			code:   "ServiceUnavailable", fault: smithy.FaultServer, retryable: true,
		},
		{
			name:   "unknown status",
			status: 599,
			code:   "HTTP599", fault: smithy.FaultServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			err := DeserializeServiceError(oc, &httpapi.Response{StatusCode: tt.status, Header: header, Body: []byte(tt.body)})

			var svc *errspkg.ServiceError
			require.ErrorAs(t, err, &svc)
			assert.Equal(t, tt.code, svc.Code)
			assert.Equal(t, tt.message, svc.Message)
			assert.Equal(t, tt.status, svc.StatusCode)
			assert.Equal(t, tt.fault, svc.Fault)
			assert.Equal(t, tt.retryable, svc.Retryable)
			assert.Equal(t, tt.throttling, svc.Throttling)
			assert.Equal(t, "GetCity", svc.Operation)
		})
	}
}

func TestDeserializeServiceErrorRetryAfter(t *testing.T) {
	t.Parallel()

	oc := operation.NewBuilder().WithOperation("GetCity").Build()
	header := http.Header{}
	header.Set("Retry-After", "3")
	header.Set("X-Amz-Request-Id", "req-2")

	err := DeserializeServiceError(oc, &httpapi.Response{StatusCode: http.StatusServiceUnavailable, Header: header})
	hint, ok := errspkg.RetryAfter(err)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, hint)

	var svc *errspkg.ServiceError
	require.ErrorAs(t, err, &svc)
	assert.Equal(t, "req-2", svc.RequestID)
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestID(nil))
	assert.Empty(t, RequestID(&httpapi.Response{Header: http.Header{}}))

	h := http.Header{}
	h.Set("X-Request-Id", "fallback")
	assert.Equal(t, "fallback", RequestID(&httpapi.Response{Header: h}))
	h.Set("X-Amzn-Requestid", "primary")
	assert.Equal(t, "primary", RequestID(&httpapi.Response{Header: h}))
}

func TestSanitizeErrorCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "FooError", sanitizeErrorCode("aws.protocoltests.restjson#FooError:http://internal.amazon.com/coral/com.amazon.coral.validate/"))
	assert.Equal(t, "FooError", sanitizeErrorCode("FooError"))
	assert.Equal(t, "FooError", sanitizeErrorCode(" FooError:extra"))
}
