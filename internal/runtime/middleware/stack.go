package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/drblury/opflow/internal/runtime/httpapi"
	"github.com/drblury/opflow/internal/runtime/operation"
)

// SerializeInput carries the operation input alongside the request builder
// serializers write into.
type SerializeInput[I any] struct {
	Parameters I
	Request    *httpapi.RequestBuilder
}

// Result is what every step returns: the typed output and the raw response
// it was decoded from.
type Result[O any] struct {
	Output   O
	Response *httpapi.Response
}

// Transport is the terminal handler of a stack.
type Transport = Handler[*httpapi.Request, *httpapi.Response]

// Stack is the five-step pipeline of one operation call. Steps run in field
// order; the Deserialize step wraps the transport and runs inside Finalize.
type Stack[I, O any] struct {
	id string

	Initialize  *Step[I, *Result[O]]
	Serialize   *Step[*SerializeInput[I], *Result[O]]
	Build       *Step[*httpapi.RequestBuilder, *Result[O]]
	Finalize    *Step[*httpapi.RequestBuilder, *Result[O]]
	Deserialize *Step[*httpapi.Request, *Result[O]]
}

// NewStack returns a stack with five empty steps.
func NewStack[I, O any](id string) *Stack[I, O] {
	return &Stack[I, O]{
		id:          id,
		Initialize:  NewStep[I, *Result[O]]("Initialize"),
		Serialize:   NewStep[*SerializeInput[I], *Result[O]]("Serialize"),
		Build:       NewStep[*httpapi.RequestBuilder, *Result[O]]("Build"),
		Finalize:    NewStep[*httpapi.RequestBuilder, *Result[O]]("Finalize"),
		Deserialize: NewStep[*httpapi.Request, *Result[O]]("Deserialize"),
	}
}

func (s *Stack[I, O]) ID() string { return s.id }

// HandleMiddleware runs input through every step and the transport.
func (s *Stack[I, O]) HandleMiddleware(ctx context.Context, oc *operation.Context, input I, transport Transport) (O, error) {
	var zero O
	if transport == nil {
		return zero, fmt.Errorf("%s: transport handler is nil", s.id)
	}

	deserialize := s.Deserialize.Compose(HandlerFunc[*httpapi.Request, *Result[O]](
		func(ctx context.Context, oc *operation.Context, req *httpapi.Request) (*Result[O], error) {
			resp, err := transport.Handle(ctx, oc, req)
			if err != nil {
				return nil, err
			}
			return &Result[O]{Response: resp}, nil
		}))

	finalize := s.Finalize.Compose(HandlerFunc[*httpapi.RequestBuilder, *Result[O]](
		func(ctx context.Context, oc *operation.Context, b *httpapi.RequestBuilder) (*Result[O], error) {
			return deserialize.Handle(ctx, oc, b.Build())
		}))

	build := s.Build.Compose(finalize)

	serialize := s.Serialize.Compose(HandlerFunc[*SerializeInput[I], *Result[O]](
		func(ctx context.Context, oc *operation.Context, in *SerializeInput[I]) (*Result[O], error) {
			return build.Handle(ctx, oc, in.Request)
		}))

	initialize := s.Initialize.Compose(HandlerFunc[I, *Result[O]](
		func(ctx context.Context, oc *operation.Context, in I) (*Result[O], error) {
			return serialize.Handle(ctx, oc, &SerializeInput[I]{
				Parameters: in,
				Request:    newRequestBuilder(oc),
			})
		}))

	res, err := initialize.Handle(ctx, oc, input)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	return res.Output, nil
}

// String lists every step with its middleware ids, outermost first.
func (s *Stack[I, O]) String() string {
	var b strings.Builder
	b.WriteString("Stack " + s.id + "\n")
	for _, step := range []struct {
		name string
		ids  []string
	}{
		{s.Initialize.ID(), s.Initialize.IDs()},
		{s.Serialize.ID(), s.Serialize.IDs()},
		{s.Build.ID(), s.Build.IDs()},
		{s.Finalize.ID(), s.Finalize.IDs()},
		{s.Deserialize.ID(), s.Deserialize.IDs()},
	} {
		b.WriteString("\t" + step.name + " stack step\n")
		for _, id := range step.ids {
			b.WriteString("\t\t" + id + "\n")
		}
	}
	return b.String()
}

func newRequestBuilder(oc *operation.Context) *httpapi.RequestBuilder {
	b := httpapi.NewRequestBuilder()
	if m := oc.Method(); m != "" {
		b.WithMethod(m)
	}
	if p := oc.Path(); p != "" {
		b.WithPath(p)
	}
	if h := oc.Host(); h != "" {
		b.WithHost(h)
	}
	return b
}
