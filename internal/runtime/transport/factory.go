// Package transport builds the engine a client sends its requests through.
package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/opflow/internal/runtime/config"
	newtransport "github.com/drblury/opflow/transport"

	// Import the built-in engines to register them.
	_ "github.com/drblury/opflow/transport/transports"
)

// Handler is the engine every operation stack terminates in.
type Handler = newtransport.Handler

// Factory abstracts how opflow initialises transport engines.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Handler, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Handler, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Handler, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the engine registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Handler, error) {
	if conf == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	cfg := *conf
	if cfg.TransportEngine == "" {
		cfg.TransportEngine = config.DefaultTransportEngine
	}

	h, err := newtransport.Build(ctx, &cfg, logger)
	if err != nil {
		return nil, err
	}
	return h, nil
}
