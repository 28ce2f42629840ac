// Package operation holds the per-call attribute bag shared by every
// middleware of a single invocation.
package operation

import (
	"fmt"
	"sync"
)

// Key identifies a typed attribute. Two keys are equal only when they are the
// same value returned by NewKey, so keys with identical names never collide.
type Key[T any] struct {
	id *keyID
}

type keyID struct {
	name string
}

// NewKey creates a fresh attribute key. The name is only used for debugging.
func NewKey[T any](name string) Key[T] {
	return Key[T]{id: &keyID{name: name}}
}

// Name returns the debug name of the key.
func (k Key[T]) Name() string {
	if k.id == nil {
		return ""
	}
	return k.id.name
}

func (k Key[T]) String() string {
	return fmt.Sprintf("operation.Key[%T](%s)", *new(T), k.Name())
}

// Context is the attribute bag of one invocation. It is created per call and
// never shared across calls.
type Context struct {
	mu    sync.RWMutex
	attrs map[*keyID]any
}

func newContext(attrs map[*keyID]any) *Context {
	return &Context{attrs: attrs}
}

// Get returns the value stored under k. The boolean reports presence.
func Get[T any](c *Context, k Key[T]) (T, bool) {
	var zero T
	if c == nil || k.id == nil {
		return zero, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.attrs[k.id]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Value returns the value stored under k or the zero value of T.
func Value[T any](c *Context, k Key[T]) T {
	v, _ := Get(c, k)
	return v
}

// Set stores v under k, replacing any previous value.
func Set[T any](c *Context, k Key[T], v T) {
	if c == nil || k.id == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attrs == nil {
		c.attrs = make(map[*keyID]any)
	}
	c.attrs[k.id] = v
}

// Remove deletes the value stored under k.
func Remove[T any](c *Context, k Key[T]) {
	if c == nil || k.id == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attrs, k.id)
}

// Has reports whether a value is stored under k.
func Has[T any](c *Context, k Key[T]) bool {
	_, ok := Get(c, k)
	return ok
}

// Len returns the number of stored attributes.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.attrs)
}
