package codec

import (
	"io"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

func Decode(r io.Reader, v any) error {
	return defaultConfig.NewDecoder(r).Decode(v)
}

// JSON is the application/json body codec.
type JSON struct{}

func (JSON) ContentType() string                { return "application/json" }
func (JSON) Marshal(v any) ([]byte, error)      { return Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return Unmarshal(data, v) }

// JSONWriter builds a JSON object field by field. Keys are emitted sorted.
type JSONWriter struct {
	fields map[string]any
}

func NewJSONWriter() *JSONWriter { return &JSONWriter{fields: map[string]any{}} }

func (w *JSONWriter) Write(node NodeInfo, value any) error {
	if isNil(value) {
		return nil
	}
	w.fields[node.Name] = value
	return nil
}

func (w *JSONWriter) Bytes() ([]byte, error) { return Marshal(w.fields) }

// JSONReader walks a decoded JSON document lazily.
type JSONReader struct {
	node ast.Node
}

// NewJSONReader parses data. An empty document reads as an empty object.
func NewJSONReader(data []byte) (*JSONReader, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	node, err := sonic.Get(data)
	if err != nil {
		return nil, err
	}
	return &JSONReader{node: node}, nil
}

func (r *JSONReader) Child(node NodeInfo) (Reader, bool) {
	child := r.node.Get(node.Name)
	if child == nil || !child.Exists() || child.TypeSafe() == ast.V_NULL {
		return nil, false
	}
	return &JSONReader{node: *child}, true
}

func (r *JSONReader) Decode(v any) error {
	raw, err := r.node.Raw()
	if err != nil {
		return err
	}
	return defaultConfig.UnmarshalFromString(raw, v)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
