package cache

import (
	"testing"
	"time"

	"github.com/oakline/storefront/internal/clock"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, int](clk)

	c.Set("a", 42, 30*time.Second)

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 42, got)

	clk.Advance(29 * time.Second)
	_, ok = c.Get("a")
	require.True(t, ok)

	clk.Advance(2 * time.Second)
	_, ok = c.Get("a")
	require.False(t, ok)
}

func TestTTLCacheDeleteAndOverwrite(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, string](clk)

	c.Set("k", "v1", time.Minute)
	c.Set("k", "v2", time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v2", got)

	c.Delete("k")
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestTTLCacheZeroTTLIgnored(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	c := NewTTLCache[string, int](clk)

	c.Set("k", 1, 0)
	_, ok := c.Get("k")
	require.False(t, ok)
}
