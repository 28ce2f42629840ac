// Package codec reads and writes operation payloads. Generated serializers
// address fields through NodeInfo and never touch wire bytes directly.
package codec

import (
	"errors"
	"fmt"
)

// NodeInfo names a field as the protocol addresses it.
type NodeInfo struct {
	Name string
}

// Node is shorthand for NodeInfo{Name: name}.
func Node(name string) NodeInfo { return NodeInfo{Name: name} }

func (n NodeInfo) String() string { return n.Name }

// Writer accumulates the fields of one payload.
type Writer interface {
	// Write stores value under node. Nil values are skipped.
	Write(node NodeInfo, value any) error
	Bytes() ([]byte, error)
}

// Reader exposes the fields of one decoded payload.
type Reader interface {
	// Child returns the reader of node. The boolean reports whether the field
	// is present and not null.
	Child(node NodeInfo) (Reader, bool)
	// Decode stores the value of this node in v.
	Decode(v any) error
}

// BodyCodec converts whole payloads.
type BodyCodec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// ErrMissingField is returned by Read for absent fields.
var ErrMissingField = errors.New("opflow: required field is missing")

// Read decodes a required field.
func Read[T any](r Reader, node NodeInfo) (T, error) {
	var v T
	child, ok := r.Child(node)
	if !ok {
		return v, fmt.Errorf("%w: %s", ErrMissingField, node)
	}
	if err := child.Decode(&v); err != nil {
		return v, fmt.Errorf("opflow: decode field %s: %w", node, err)
	}
	return v, nil
}

// ReadIfPresent decodes an optional field, returning nil when it is absent.
func ReadIfPresent[T any](r Reader, node NodeInfo) (*T, error) {
	child, ok := r.Child(node)
	if !ok {
		return nil, nil
	}
	v := new(T)
	if err := child.Decode(v); err != nil {
		return nil, fmt.Errorf("opflow: decode field %s: %w", node, err)
	}
	return v, nil
}
