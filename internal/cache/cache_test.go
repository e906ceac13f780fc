package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	c := New[string, []int](time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", []int{1, 2})
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []int{1, 2}, v)

	c.Set("b", []int{3}, now.Add(-time.Second))
	_, ok = c.Get("b")
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entries expire after the TTL")

	c.Put("c", []int{4})
	assert.Equal(t, 1, c.Len(), "expired entries are pruned on write")

	c.Delete("c")
	assert.Equal(t, 0, c.Len())
}

func TestCache_ZeroTTL(t *testing.T) {
	c := New[string, int](0)
	c.Put("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}
