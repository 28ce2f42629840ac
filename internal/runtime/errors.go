package runtime

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/smithy-go"

	"github.com/drblury/opflow/internal/runtime/codec"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	"github.com/drblury/opflow/internal/runtime/operation"
)

var requestIDHeaders = []string{"X-Amzn-Requestid", "X-Amz-Request-Id", "X-Request-Id"}

var throttlingCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ThrottledException":                     {},
	"RequestThrottledException":              {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"TransactionInProgressException":         {},
	"RequestLimitExceeded":                   {},
	"BandwidthLimitExceeded":                 {},
	"LimitExceededException":                 {},
	"RequestThrottled":                       {},
	"SlowDown":                               {},
}

var transientCodes = map[string]struct{}{
	"RequestTimeout":          {},
	"RequestTimeoutException": {},
	"InternalError":           {},
	"InternalFailure":         {},
	"ServiceUnavailable":      {},
}

var transientStatus = map[int]struct{}{
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// RequestID returns the service request id carried by resp, if any.
func RequestID(resp *httpapi.Response) string {
	if resp == nil {
		return ""
	}
	for _, name := range requestIDHeaders {
		if v := resp.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}

// DeserializeServiceError turns a non-2xx response into a *errors.ServiceError.
// The code comes from the X-Amzn-Errortype header or a JSON body with a
// "__type" or "code" member; the status text is the fallback.
func DeserializeServiceError(oc *operation.Context, resp *httpapi.Response) error {
	code, message := errorDetails(resp)
	if code == "" {
		code = strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "")
	}
	if code == "" {
		code = "HTTP" + strconv.Itoa(resp.StatusCode)
	}

	svc := &errspkg.ServiceError{
		Operation:  oc.OperationName(),
		Code:       code,
		Message:    message,
		StatusCode: resp.StatusCode,
		RequestID:  RequestID(resp),
		RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
	}
	switch {
	case resp.StatusCode >= 500:
		svc.Fault = smithy.FaultServer
	case resp.StatusCode >= 400:
		svc.Fault = smithy.FaultClient
	}

	_, throttled := throttlingCodes[code]
	svc.Throttling = throttled || resp.StatusCode == http.StatusTooManyRequests
	_, transientCode := transientCodes[code]
	_, transientHTTP := transientStatus[resp.StatusCode]
	svc.Retryable = transientCode || transientHTTP
	return svc
}

func errorDetails(resp *httpapi.Response) (code, message string) {
	code = sanitizeErrorCode(resp.Header.Get("X-Amzn-Errortype"))
	if len(resp.Body) == 0 {
		return code, ""
	}
	r, err := codec.NewJSONReader(resp.Body)
	if err != nil {
		return code, ""
	}
	if code == "" {
		for _, name := range []string{"__type", "code", "Code"} {
			if v, err := codec.ReadIfPresent[string](r, codec.Node(name)); err == nil && v != nil {
				code = sanitizeErrorCode(*v)
				break
			}
		}
	}
	for _, name := range []string{"message", "Message", "errorMessage"} {
		if v, err := codec.ReadIfPresent[string](r, codec.Node(name)); err == nil && v != nil {
			message = *v
			break
		}
	}
	return code, message
}

// sanitizeErrorCode strips the namespace and any trailing URI, e.g.
// "aws.protocoltests#FooError:http://internal/" becomes "FooError".
func sanitizeErrorCode(code string) string {
	if i := strings.Index(code, ":"); i >= 0 {
		code = code[:i]
	}
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}
	return strings.TrimSpace(code)
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
