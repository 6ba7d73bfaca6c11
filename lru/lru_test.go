package lru

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvictsByCount(t *testing.T) {
	var evicted []string
	c := New[string, int](Options[string, int]{
		MaxCount: 2,
		OnEvict: func(key string, value int, reason EvictReason) {
			evicted = append(evicted, key)
			require.Equal(t, EvictLRU, reason)
		},
	})
	c.Set("a", 1, 1)
	c.Set("b", 2, 1)
	c.Set("c", 3, 1)
	require.Equal(t, []string{"a"}, evicted)
	require.Equal(t, 2, c.Len())
}

func TestEvictsByBytes(t *testing.T) {
	c := New[string, int](Options[string, int]{MaxBytes: 10})
	c.Set("a", 1, 6)
	c.Set("b", 2, 6)
	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
}

func TestGetPromotesPeekDoesNot(t *testing.T) {
	c := New[string, int](Options[string, int]{MaxCount: 2})
	c.Set("a", 1, 1)
	c.Set("b", 2, 1)
	_, _ = c.Peek("a")
	c.Set("c", 3, 1) // should evict "a" since Peek didn't promote it
	_, ok := c.Get("a")
	require.False(t, ok)

	c2 := New[string, int](Options[string, int]{MaxCount: 2})
	c2.Set("a", 1, 1)
	c2.Set("b", 2, 1)
	_, _ = c2.Get("a") // promotes "a"
	c2.Set("c", 3, 1)  // should evict "b"
	_, ok = c2.Get("b")
	require.False(t, ok)
	_, ok = c2.Get("a")
	require.True(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	var reason EvictReason
	c := New[string, int](Options[string, int]{
		TTL:     time.Millisecond,
		OnEvict: func(key string, value int, r EvictReason) { reason = r },
	})
	c.Set("a", 1, 1)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, EvictTTL, reason)
}

func TestRemoveAndClear(t *testing.T) {
	c := New[string, int](Options[string, int]{})
	c.Set("a", 1, 1)
	c.Set("b", 2, 1)
	require.True(t, c.Remove("a"))
	require.False(t, c.Remove("a"))
	c.Clear()
	require.Equal(t, 0, c.Len())
}
