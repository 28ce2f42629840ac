package operation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysWithSameNameDoNotCollide(t *testing.T) {
	t.Parallel()

	a := NewKey[string]("name")
	b := NewKey[string]("name")
	c := NewBuilder().Build()

	Set(c, a, "first")
	Set(c, b, "second")

	got, ok := Get(c, a)
	require.True(t, ok)
	assert.Equal(t, "first", got)
	assert.Equal(t, "second", Value(c, b))
}

func TestGetSetRemove(t *testing.T) {
	t.Parallel()

	k := NewKey[int]("count")
	c := NewBuilder().Build()

	_, ok := Get(c, k)
	assert.False(t, ok)
	assert.False(t, Has(c, k))

	Set(c, k, 3)
	assert.True(t, Has(c, k))
	assert.Equal(t, 3, Value(c, k))

	Set(c, k, 4)
	assert.Equal(t, 4, Value(c, k))

	Remove(c, k)
	assert.False(t, Has(c, k))
	assert.Equal(t, 0, Value(c, k))
}

func TestNilContextIsSafe(t *testing.T) {
	t.Parallel()

	var c *Context
	k := NewKey[string]("x")
	Set(c, k, "v")
	Remove(c, k)
	assert.False(t, Has(c, k))
	assert.Equal(t, 0, c.Len())
}

func TestBuilderCopiesAttributes(t *testing.T) {
	t.Parallel()

	b := NewBuilder().
		WithOperation("GetCity").
		WithServiceName("Weather").
		WithMethod("post").
		WithPath("/cities/1").
		WithHostPrefix("data.").
		WithRegion("eu-west-1")

	first := b.Build()
	second := b.WithPath("/cities/2").Build()

	assert.Equal(t, "GetCity", first.OperationName())
	assert.Equal(t, "Weather", first.ServiceName())
	assert.Equal(t, "POST", first.Method())
	assert.Equal(t, "/cities/1", first.Path())
	assert.Equal(t, "data.", first.HostPrefix())
	assert.Equal(t, "eu-west-1", first.Region())
	assert.Equal(t, "/cities/2", second.Path())

	first.SetPath("/changed")
	assert.Equal(t, "/cities/2", second.Path())
}

func TestBuilderWithout(t *testing.T) {
	t.Parallel()

	c := Without(NewBuilder().WithHost("example.com"), HostKey).Build()
	assert.False(t, Has(c, HostKey))
	assert.Equal(t, "GET", c.Method())
}

func TestLoggerFallsBackToNop(t *testing.T) {
	t.Parallel()

	c := NewBuilder().Build()
	require.NotNil(t, c.Logger())
	c.Logger().Info("ignored", nil)
}

type fixedTokens string

func (f fixedTokens) IdempotencyToken() (string, error) { return string(f), nil }

func TestIdempotencyTokenGenerator(t *testing.T) {
	t.Parallel()

	c := NewBuilder().Build()
	_, ok := c.IdempotencyTokenGenerator()
	assert.False(t, ok)

	c = NewBuilder().WithIdempotencyTokenGenerator(fixedTokens("tok")).Build()
	g, ok := c.IdempotencyTokenGenerator()
	require.True(t, ok)
	token, err := g.IdempotencyToken()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	k := NewKey[int]("n")
	c := NewBuilder().Build()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			Set(c, k, v)
			_ = Value(c, k)
		}(i)
	}
	wg.Wait()
	assert.True(t, Has(c, k))
}
