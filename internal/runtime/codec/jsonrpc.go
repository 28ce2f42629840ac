package codec

import (
	"bytes"
	"errors"

	"github.com/gorilla/rpc/v2/json2"
)

// JSONRPC wraps payloads in JSON-RPC 2.0 envelopes for one method.
type JSONRPC struct {
	Method string
}

func (JSONRPC) ContentType() string { return "application/json" }

func (c JSONRPC) Marshal(v any) ([]byte, error) {
	return json2.EncodeClientRequest(c.Method, v)
}

// Unmarshal decodes the result member into v. Error envelopes come back as
// *json2.Error.
func (JSONRPC) Unmarshal(data []byte, v any) error {
	return json2.DecodeClientResponse(bytes.NewReader(data), v)
}

// JSONRPCError returns the error envelope carried by err, if any.
func JSONRPCError(err error) (*json2.Error, bool) {
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
