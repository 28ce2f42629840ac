// Package monitoring publishes per-attempt and per-call events onto a
// watermill publisher so they can be consumed out of band.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/trace"

	"github.com/drblury/opflow/internal/runtime/codec"
	"github.com/drblury/opflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "opflow.calls"

var (
	ErrPublisherRequired = errors.New("opflow: monitoring publisher is required")
	ErrPublisherClosed   = errors.New("opflow: monitoring publisher is closed")
)

// Publisher emits monitoring events as JSON messages.
type Publisher struct {
	publisher message.Publisher
	topic     string
	logger    loggingpkg.ServiceLogger
	closed    atomic.Bool
}

// NewPublisher wraps an existing watermill publisher.
func NewPublisher(publisher message.Publisher, topic string, logger loggingpkg.ServiceLogger) (*Publisher, error) {
	if publisher == nil {
		return nil, ErrPublisherRequired
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Publisher{publisher: publisher, topic: topic, logger: logger}, nil
}

// NewChannelPublisher publishes onto an in-process gochannel. The returned
// channel is also the subscriber side.
func NewChannelPublisher(topic string, logger loggingpkg.ServiceLogger) (*Publisher, *gochannel.GoChannel) {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, loggingpkg.NewWatermillAdapter(logger))
	p, _ := NewPublisher(ch, topic, logger)
	return p, ch
}

// Topic returns the topic events are published to.
func (p *Publisher) Topic() string { return p.topic }

// PublishAttempt emits an AttemptEvent.
func (p *Publisher) PublishAttempt(ctx context.Context, ev AttemptEvent) error {
	md := Metadata{}.
		With(MetadataKeyEventType, EventTypeAttempt).
		With(MetadataKeyService, ev.Service).
		With(MetadataKeyOperation, ev.Operation).
		With(MetadataKeyInvocationID, ev.InvocationID)
	return p.publish(ctx, ev, md)
}

// PublishCall emits a CallEvent.
func (p *Publisher) PublishCall(ctx context.Context, ev CallEvent) error {
	md := Metadata{}.
		With(MetadataKeyEventType, EventTypeCall).
		With(MetadataKeyService, ev.Service).
		With(MetadataKeyOperation, ev.Operation).
		With(MetadataKeyInvocationID, ev.InvocationID)
	return p.publish(ctx, ev, md)
}

func (p *Publisher) publish(ctx context.Context, ev any, md Metadata) error {
	if p == nil || p.publisher == nil {
		return ErrPublisherRequired
	}
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	payload, err := codec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal monitoring event: %w", err)
	}

	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			md = md.With(MetadataKeyTraceID, sc.TraceID().String()).
				With(MetadataKeySpanID, sc.SpanID().String())
		}
	}

	msg := message.NewMessage(ids.NewInvocationID(), payload)
	msg.Metadata = md.toWatermill()
	if ctx != nil {
		msg.SetContext(ctx)
	}

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("failed to publish monitoring event", err, loggingpkg.LogFields{
			"topic":      p.topic,
			"event_type": md[MetadataKeyEventType],
		})
		return err
	}
	return nil
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.publisher.Close()
}
