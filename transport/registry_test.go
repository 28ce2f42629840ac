package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/opflow/internal/runtime/httpapi"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/operation"
)

func stubBuilder(status int) Builder {
	return func(context.Context, Config, watermill.LoggerAdapter) (Handler, error) {
		return middleware.HandlerFunc[*httpapi.Request, *httpapi.Response](
			func(context.Context, *operation.Context, *httpapi.Request) (*httpapi.Response, error) {
				return &httpapi.Response{StatusCode: status}, nil
			}), nil
	}
}

func TestRegistryBuild(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("stub", stubBuilder(204))

	h, err := reg.Build(context.Background(), StaticConfig{Engine: "stub"}, nil)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), operation.NewBuilder().Build(), httpapi.NewRequestBuilder().Build())
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestRegistryUnknownEngine(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("b", stubBuilder(200))
	reg.Register("a", stubBuilder(200))

	_, err := reg.Build(context.Background(), StaticConfig{Engine: "grpc"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"grpc"`)
	assert.Equal(t, []string{"a", "b"}, reg.Names())

	_, err = reg.Build(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRegistryBuilderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	reg := NewRegistry()
	reg.Register("broken", func(context.Context, Config, watermill.LoggerAdapter) (Handler, error) {
		return nil, boom
	})
	_, err := reg.Build(context.Background(), StaticConfig{Engine: "broken"}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryCapabilities(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.RegisterWithCapabilities("http", stubBuilder(200), HTTPCapabilities)
	assert.True(t, reg.Has("http"))
	assert.False(t, reg.Has("nope"))
	assert.Equal(t, HTTPCapabilities, reg.GetCapabilities("http"))
	assert.Equal(t, Capabilities{Name: "nope"}, reg.GetCapabilities("nope"))
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	assert.False(t, HTTPCapabilities.RequiresBufferedBody())
	assert.True(t, InProcessCapabilities.RequiresBufferedBody())
	assert.False(t, InProcessCapabilities.UsesNetwork)
}
