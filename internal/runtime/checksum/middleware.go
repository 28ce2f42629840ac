package checksum

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
)

const (
	RequestMiddlewareID  = "FlexibleChecksumsRequestMiddleware"
	ResponseMiddlewareID = "FlexibleChecksumsResponseMiddleware"

	trailerHeader   = "X-Amz-Trailer"
	algorithmHeader = "x-amz-checksum-algorithm"
)

// Context keys owned by this package.
var (
	// AlgorithmKey holds the algorithm a non-seekable body is trailed with.
	AlgorithmKey = operation.NewKey[Algorithm]("ChecksumAlgorithm")
	// ValidatedKey holds the algorithm a response was validated with.
	ValidatedKey = operation.NewKey[Algorithm]("ValidatedChecksum")
)

// MismatchError reports a response whose body does not match its checksum.
type MismatchError struct {
	Algorithm Algorithm
	Expected  string
	Actual    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("opflow: %s checksum mismatch: expected %s, computed %s", e.Algorithm, e.Expected, e.Actual)
}

func hasUserChecksum(h http.Header) bool {
	for name := range h {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, headerPrefix) && lower != algorithmHeader {
			return true
		}
	}
	return false
}

// RequestMiddleware adds the digest of the request body in the Build step.
// An empty or unsupported algorithm name disables it.
func RequestMiddleware[Out any](algorithm string) middleware.Middleware[*httpapi.RequestBuilder, Out] {
	return middleware.NewMiddleware(RequestMiddlewareID,
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder, next middleware.Handler[*httpapi.RequestBuilder, Out]) (Out, error) {
			if err := addChecksum(oc, b, algorithm); err != nil {
				var zero Out
				return zero, err
			}
			return next.Handle(ctx, oc, b)
		})
}

func addChecksum(oc *operation.Context, b *httpapi.RequestBuilder, algorithm string) error {
	logger := oc.Logger()
	if algorithm == "" {
		logger.Trace("no checksum algorithm requested", nil)
		return nil
	}
	a, ok := Parse(algorithm)
	if !ok {
		logger.Info("unsupported checksum algorithm, skipping", loggingpkg.LogFields{"algorithm": algorithm})
		return nil
	}
	if hasUserChecksum(b.Header()) {
		logger.Debug("checksum header already provided, skipping calculation", nil)
		return nil
	}

	body := b.Body()
	switch body.Kind() {
	case httpapi.BodyData:
		b.WithHeader(a.HeaderName(), Compute(a, body.Data()))
	case httpapi.BodyStream:
		if body.Seekable() {
			digest, err := ComputeReader(a, body.Reader())
			if err == nil {
				err = body.Rewind()
			}
			if err != nil {
				return &errspkg.SerializationError{
					Operation: oc.OperationName(),
					Message:   "cannot calculate the checksum of the request body",
					Cause:     err,
				}
			}
			b.WithHeader(a.HeaderName(), digest)
			return nil
		}
		operation.Set(oc, AlgorithmKey, a)
		b.WithHeader(trailerHeader, a.HeaderName())
		b.WithTrailer(a.HeaderName(), func() httpapi.TrailerSource { return newDigest(a) })
	default:
		return &errspkg.SerializationError{
			Operation: oc.OperationName(),
			Message:   "cannot calculate the checksum of an empty body",
		}
	}
	return nil
}

// ResponseMiddleware validates the first checksum header present on the
// response, in priority order, in the Deserialize step. Only algorithms in
// accepted are considered; none means every flexible one.
func ResponseMiddleware[O any](accepted ...Algorithm) middleware.Middleware[*httpapi.Request, *middleware.Result[O]] {
	if len(accepted) == 0 {
		accepted = validationOrder
	}
	order := PriorityOrder(accepted)
	return middleware.NewMiddleware(ResponseMiddlewareID,
		func(ctx context.Context, oc *operation.Context, req *httpapi.Request, next middleware.Handler[*httpapi.Request, *middleware.Result[O]]) (*middleware.Result[O], error) {
			res, err := next.Handle(ctx, oc, req)
			if err != nil || res == nil || res.Response == nil {
				return res, err
			}
			if err := validate(oc, res.Response, order); err != nil {
				return nil, err
			}
			return res, nil
		})
}

func validate(oc *operation.Context, resp *httpapi.Response, order []Algorithm) error {
	for _, a := range order {
		expected := resp.Header.Get(a.HeaderName())
		if expected == "" {
			continue
		}
		// Multipart composites look like "<digest>-<parts>" and cannot be
		// recomputed from the object body.
		if strings.Contains(expected, "-") {
			oc.Logger().Debug("skipping composite checksum", loggingpkg.LogFields{"algorithm": a.String()})
			return nil
		}
		actual := Compute(a, resp.Body)
		if actual != expected {
			return &MismatchError{Algorithm: a, Expected: expected, Actual: actual}
		}
		operation.Set(oc, ValidatedKey, a)
		return nil
	}
	return nil
}
