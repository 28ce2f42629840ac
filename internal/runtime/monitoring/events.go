package monitoring

import "time"

// Event types, also used as the metadata value of MetadataKeyEventType.
const (
	EventTypeAttempt = "attempt"
	EventTypeCall    = "call"
)

// AttemptEvent describes one transmitted attempt of a call.
type AttemptEvent struct {
	Service      string        `json:"service"`
	Operation    string        `json:"operation"`
	InvocationID string        `json:"invocation_id"`
	Attempt      int           `json:"attempt"`
	StatusCode   int           `json:"status_code,omitempty"`
	Latency      time.Duration `json:"latency_ns"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Error        string        `json:"error,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// CallEvent summarizes a finished call.
type CallEvent struct {
	Service      string        `json:"service"`
	Operation    string        `json:"operation"`
	InvocationID string        `json:"invocation_id"`
	RequestID    string        `json:"request_id,omitempty"`
	Attempts     int           `json:"attempts"`
	Duration     time.Duration `json:"duration_ns"`
	Outcome      string        `json:"outcome"`
	Error        string        `json:"error,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}
