package inprocess

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	"github.com/drblury/opflow/internal/runtime/operation"
)

func TestEngineServesHandler(t *testing.T) {
	t.Parallel()

	engine := New(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "/cities", r.URL.Path)
		assert.Equal(t, "q=1", r.URL.RawQuery)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.ToUpper(string(body))))
	}))

	req := httpapi.NewRequestBuilder().
		WithMethod(http.MethodPost).
		WithHost("weather.local").
		WithPath("/cities").
		WithQueryItem("q", "1").
		WithBody(httpapi.NewStreamBody(strings.NewReader("abc"), 3)).
		Build()

	resp, err := engine.Handle(context.Background(), operation.NewBuilder().Build(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ABC", string(resp.Body))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}

func TestEngineWithoutHandler(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Handle(context.Background(), operation.NewBuilder().Build(), httpapi.NewRequestBuilder().Build())
	assert.ErrorIs(t, err, errspkg.ErrTransportRequired)
	assert.False(t, errspkg.IsRetryable(err))
}

func TestEngineCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(http.NotFoundHandler()).Handle(ctx, operation.NewBuilder().Build(), httpapi.NewRequestBuilder().Build())
	assert.ErrorIs(t, err, context.Canceled)
}
