package research

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheTTLExpiry(t *testing.T) {
	clock := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	c := NewCache(time.Hour)
	c.now = func() time.Time { return clock }

	c.Put("channel:https://youtube.com/@alex", Result{Summary: "tech videos"})

	got, ok := c.Get("channel:https://youtube.com/@alex")
	assert.True(t, ok)
	assert.Equal(t, "tech videos", got.Summary)

	// Just inside the TTL.
	clock = clock.Add(59 * time.Minute)
	_, ok = c.Get("channel:https://youtube.com/@alex")
	assert.True(t, ok)

	// Past it: the entry is gone and stays gone.
	clock = clock.Add(2 * time.Minute)
	_, ok = c.Get("channel:https://youtube.com/@alex")
	assert.False(t, ok)
	_, ok = c.Get("channel:https://youtube.com/@alex")
	assert.False(t, ok)
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(0)
	assert.Equal(t, DefaultTTL, c.ttl)
	_, ok := c.Get("site:example.com")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	c := NewCache(time.Hour)
	c.Put("a", Result{Summary: "x"})
	c.Clear()
	_, ok := c.Get("a")
	assert.False(t, ok)
}
