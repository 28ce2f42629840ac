package monitoring

import "github.com/ThreeDotsLabs/watermill/message"

// Metadata keys set on every published event.
const (
	MetadataKeyEventType    = "opflow_event_type"
	MetadataKeyService      = "opflow_service"
	MetadataKeyOperation    = "opflow_operation"
	MetadataKeyInvocationID = "opflow_invocation_id"
	MetadataKeyTraceID      = "trace_id"
	MetadataKeySpanID       = "span_id"
)

// Metadata represents the headers carried alongside an event.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	cloned := make(Metadata, len(m)+extra)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a copy containing key. Empty values are dropped.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	if value != "" {
		cloned[key] = value
	}
	return cloned
}

// WithAll returns a copy containing entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// toWatermill copies m into a watermill map.
func (m Metadata) toWatermill() message.Metadata {
	wm := make(message.Metadata, len(m))
	for k, v := range m {
		wm[k] = v
	}
	return wm
}

// FromMessage copies the metadata of a received event.
func FromMessage(msg *message.Message) Metadata {
	if msg == nil || len(msg.Metadata) == 0 {
		return Metadata{}
	}
	md := make(Metadata, len(msg.Metadata))
	for k, v := range msg.Metadata {
		md[k] = v
	}
	return md
}
