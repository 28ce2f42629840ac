package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type testPayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{ID: 42, Name: "opflow"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}

	indented, err := MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal indent failed: %v", err)
	}
	if !strings.Contains(string(indented), "\n  \"id\"") {
		t.Fatalf("expected indented output, got %s", string(indented))
	}
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := testPayload{ID: 7, Name: "stream"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded testPayload
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var missing *string
	w := NewJSONWriter()
	require.NoError(t, w.Write(Node("name"), "Seattle"))
	require.NoError(t, w.Write(Node("population"), 750000))
	require.NoError(t, w.Write(Node("nickname"), missing))
	require.NoError(t, w.Write(Node("tags"), nil))

	data, err := w.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Seattle","population":750000}`, string(data))
}

func TestJSONReader(t *testing.T) {
	t.Parallel()

	r, err := NewJSONReader([]byte(`{"name":"Seattle","coordinates":{"lat":47.6,"lon":-122.3},"nickname":null}`))
	require.NoError(t, err)

	name, err := Read[string](r, Node("name"))
	require.NoError(t, err)
	assert.Equal(t, "Seattle", name)

	type coords struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	c, err := Read[coords](r, Node("coordinates"))
	require.NoError(t, err)
	assert.InDelta(t, 47.6, c.Lat, 0.001)

	nested, ok := r.Child(Node("coordinates"))
	require.True(t, ok)
	lon, err := Read[float64](nested, Node("lon"))
	require.NoError(t, err)
	assert.InDelta(t, -122.3, lon, 0.001)

	nick, err := ReadIfPresent[string](r, Node("nickname"))
	require.NoError(t, err)
	assert.Nil(t, nick)

	_, err = Read[string](r, Node("country"))
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Read[int](r, Node("name"))
	assert.Error(t, err)
}

func TestJSONReaderEmptyBody(t *testing.T) {
	t.Parallel()

	r, err := NewJSONReader(nil)
	require.NoError(t, err)
	v, err := ReadIfPresent[string](r, Node("anything"))
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = NewJSONReader([]byte(`{"broken"`))
	assert.Error(t, err)
}

func TestProtobufCodecs(t *testing.T) {
	t.Parallel()

	for _, c := range []BodyCodec{Protobuf{}, ProtoJSON{}} {
		data, err := c.Marshal(wrapperspb.String("Seattle"))
		require.NoError(t, err)

		out := &wrapperspb.StringValue{}
		require.NoError(t, c.Unmarshal(data, out))
		assert.Equal(t, "Seattle", out.GetValue())

		_, err = c.Marshal(testPayload{})
		assert.Error(t, err)
	}
	assert.Equal(t, "application/x-protobuf", Protobuf{}.ContentType())
}

func TestJSONRPCCodec(t *testing.T) {
	t.Parallel()

	c := JSONRPC{Method: "weather.GetCity"}
	data, err := c.Marshal(map[string]string{"cityId": "1"})
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `"jsonrpc":"2.0"`)
	assert.Contains(t, body, `"method":"weather.GetCity"`)

	var out testPayload
	require.NoError(t, c.Unmarshal([]byte(`{"jsonrpc":"2.0","result":{"id":1,"name":"Seattle"},"id":1}`), &out))
	assert.Equal(t, testPayload{ID: 1, Name: "Seattle"}, out)

	err = c.Unmarshal([]byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"},"id":1}`), &out)
	rpcErr, ok := JSONRPCError(err)
	require.True(t, ok)
	assert.Equal(t, json2.ErrorCode(-32601), rpcErr.Code)
	assert.Equal(t, "method not found", rpcErr.Message)
}
