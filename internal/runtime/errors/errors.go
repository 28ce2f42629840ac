package errors

import sterrors "errors"

var (
	ErrConfigRequired           = sterrors.New("opflow: configuration is required")
	ErrClientRequired           = sterrors.New("opflow: client is required")
	ErrTransportRequired        = sterrors.New("opflow: transport handler is required")
	ErrOperationNameRequired    = sterrors.New("opflow: operation name is required")
	ErrEndpointResolverRequired = sterrors.New("opflow: endpoint resolver is required")
	ErrMiddlewareRequired       = sterrors.New("opflow: middleware is required")
	ErrDuplicateMiddleware      = sterrors.New("opflow: middleware id already registered")
	ErrMiddlewareNotFound       = sterrors.New("opflow: middleware id not found")
)

// ConfigValidationError wraps the joined problems found by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	if e.Err == nil {
		return "opflow: invalid configuration"
	}
	return "opflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }
