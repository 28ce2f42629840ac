// Package transport defines the engines that put finished requests on the
// wire. Each engine lives in its own sub-package and registers itself with
// the transport registry.
package transport

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/opflow/internal/runtime/middleware"
)

// Handler sends one request and returns the fully read response. It is the
// terminal handler of every operation stack.
type Handler = middleware.Transport

// Builder is the function signature for creating an engine from config.
// Each engine package provides a Builder that can be registered.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Handler, error)

// Config provides the configuration values needed by engines without
// depending on the full config package.
type Config interface {
	// GetTransportEngine returns the engine name.
	GetTransportEngine() string
	// GetRequestTimeout bounds one attempt; zero disables it.
	GetRequestTimeout() time.Duration
	// GetProxyURL routes requests through a proxy when set.
	GetProxyURL() string
}

// StaticConfig is a Config backed by plain fields.
type StaticConfig struct {
	Engine         string
	RequestTimeout time.Duration
	ProxyURL       string
}

func (c StaticConfig) GetTransportEngine() string       { return c.Engine }
func (c StaticConfig) GetRequestTimeout() time.Duration { return c.RequestTimeout }
func (c StaticConfig) GetProxyURL() string              { return c.ProxyURL }
