package middleware

import (
	"fmt"

	errspkg "github.com/drblury/opflow/internal/runtime/errors"
)

type positionKind int

const (
	positionFront positionKind = iota
	positionBack
	positionBefore
	positionAfter
)

// Position says where Intercept places a middleware.
type Position struct {
	kind     positionKind
	relative string
}

var (
	// Front makes the middleware the outermost of its step.
	Front = Position{kind: positionFront}
	// Back makes the middleware the innermost of its step.
	Back = Position{kind: positionBack}
)

// Before places the middleware immediately outside id.
func Before(id string) Position { return Position{kind: positionBefore, relative: id} }

// After places the middleware immediately inside id.
func After(id string) Position { return Position{kind: positionAfter, relative: id} }

func (p Position) String() string {
	switch p.kind {
	case positionFront:
		return "front"
	case positionBack:
		return "back"
	case positionBefore:
		return "before(" + p.relative + ")"
	default:
		return "after(" + p.relative + ")"
	}
}

// Step is an ordered list of middleware. Index 0 is outermost.
type Step[In, Out any] struct {
	id    string
	items []Middleware[In, Out]
}

// NewStep returns an empty step.
func NewStep[In, Out any](id string) *Step[In, Out] {
	return &Step[In, Out]{id: id}
}

// ID returns the step name.
func (s *Step[In, Out]) ID() string { return s.id }

// Intercept inserts m at pos. Middleware ids are unique within a step.
func (s *Step[In, Out]) Intercept(pos Position, m Middleware[In, Out]) error {
	if m == nil {
		return fmt.Errorf("%s step: %w", s.id, errspkg.ErrMiddlewareRequired)
	}
	if s.index(m.ID()) >= 0 {
		return fmt.Errorf("%s step: %w: %s", s.id, errspkg.ErrDuplicateMiddleware, m.ID())
	}

	switch pos.kind {
	case positionFront:
		s.insert(0, m)
	case positionBack:
		s.items = append(s.items, m)
	case positionBefore, positionAfter:
		at := s.index(pos.relative)
		if at < 0 {
			return fmt.Errorf("%s step: %w: %s", s.id, errspkg.ErrMiddlewareNotFound, pos.relative)
		}
		if pos.kind == positionAfter {
			at++
		}
		s.insert(at, m)
	}
	return nil
}

// Get returns the middleware registered under id.
func (s *Step[In, Out]) Get(id string) (Middleware[In, Out], bool) {
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	return nil, false
}

// Remove deletes the middleware registered under id.
func (s *Step[In, Out]) Remove(id string) (Middleware[In, Out], error) {
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%s step: %w: %s", s.id, errspkg.ErrMiddlewareNotFound, id)
	}
	m := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return m, nil
}

// Swap replaces the middleware registered under id, keeping its position.
func (s *Step[In, Out]) Swap(id string, m Middleware[In, Out]) (Middleware[In, Out], error) {
	if m == nil {
		return nil, fmt.Errorf("%s step: %w", s.id, errspkg.ErrMiddlewareRequired)
	}
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%s step: %w: %s", s.id, errspkg.ErrMiddlewareNotFound, id)
	}
	if m.ID() != id && s.index(m.ID()) >= 0 {
		return nil, fmt.Errorf("%s step: %w: %s", s.id, errspkg.ErrDuplicateMiddleware, m.ID())
	}
	old := s.items[i]
	s.items[i] = m
	return old, nil
}

// IDs lists middleware ids from outermost to innermost.
func (s *Step[In, Out]) IDs() []string {
	ids := make([]string, len(s.items))
	for i, m := range s.items {
		ids[i] = m.ID()
	}
	return ids
}

func (s *Step[In, Out]) Len() int { return len(s.items) }

func (s *Step[In, Out]) Clear() { s.items = nil }

// Compose folds the step around terminal so index 0 runs first.
func (s *Step[In, Out]) Compose(terminal Handler[In, Out]) Handler[In, Out] {
	h := terminal
	for i := len(s.items) - 1; i >= 0; i-- {
		h = decorated[In, Out]{m: s.items[i], next: h}
	}
	return h
}

func (s *Step[In, Out]) index(id string) int {
	for i, m := range s.items {
		if m.ID() == id {
			return i
		}
	}
	return -1
}

func (s *Step[In, Out]) insert(at int, m Middleware[In, Out]) {
	s.items = append(s.items, nil)
	copy(s.items[at+1:], s.items[at:])
	s.items[at] = m
}
