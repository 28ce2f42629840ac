package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Protobuf encodes proto.Message payloads in the binary wire format.
type Protobuf struct{}

func (Protobuf) ContentType() string { return "application/x-protobuf" }

func (Protobuf) Marshal(v any) ([]byte, error) {
	m, err := asMessage(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(m)
}

func (Protobuf) Unmarshal(data []byte, v any) error {
	m, err := asMessage(v)
	if err != nil {
		return err
	}
	return proto.Unmarshal(data, m)
}

// ProtoJSON encodes proto.Message payloads with the canonical JSON mapping.
type ProtoJSON struct{}

func (ProtoJSON) ContentType() string { return "application/json" }

func (ProtoJSON) Marshal(v any) ([]byte, error) {
	m, err := asMessage(v)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(m)
}

func (ProtoJSON) Unmarshal(data []byte, v any) error {
	m, err := asMessage(v)
	if err != nil {
		return err
	}
	return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
}

func asMessage(v any) (proto.Message, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("opflow: %T is not a proto.Message", v)
	}
	return m, nil
}
