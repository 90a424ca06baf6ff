package cache_test

import (
	"testing"
	"time"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"
	"github.com/boddenberg/isp-billing-bfa/internal/infra/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[*domain.DashboardSummary](5 * time.Minute)
	defer c.Close()

	c.Set("2024-06", &domain.DashboardSummary{TotalClients: 3})
	got, ok := c.Get("2024-06")
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalClients)

	_, ok = c.Get("2024-07")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("settings", "v1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("settings")
	assert.False(t, ok, "expected entry to be expired")
}

func TestCache_DeleteAndPurge(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := cache.New[int](time.Minute)
	c.Close()
	c.Close()

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCache_NonPositiveTTLDisablesCaching(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		c := cache.New[int](ttl)

		c.Set("report", 42)
		_, ok := c.Get("report")
		assert.False(t, ok)

		c.Close()
	}
}
