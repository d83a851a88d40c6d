package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetOrSet(t *testing.T) {
	c := New[string, int](10, time.Minute)
	calls := 0
	load := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrSet(context.Background(), "answer", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrSet(context.Background(), "answer", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := New[string, int](10, time.Minute)
	_, err := c.GetOrSet(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestCache_Expires(t *testing.T) {
	c := New[string, string](10, 20*time.Millisecond)
	c.Set("k", "v")

	_, ok := c.Get("k")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int, int](2, time.Minute)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Get(1)
	c.Set(3, 3)

	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
}

func TestCache_GetMany(t *testing.T) {
	c := New[string, int](10, time.Minute)
	c.Set("a", 1)
	c.Set("c", 3)

	hits, misses := c.GetMany([]string{"a", "b", "c", "d"})
	assert.Equal(t, map[string]int{"a": 1, "c": 3}, hits)
	assert.Equal(t, []string{"b", "d"}, misses)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}
