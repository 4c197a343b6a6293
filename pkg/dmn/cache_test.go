package dmn

import (
	"testing"
	"time"

	"github.com/rendis/dmn/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	result := &schema.ExecutionResult{TableID: "dt_risk", Success: true}

	assert.Nil(t, c.Get("k"))

	c.Set("k", result)
	got := c.Get("k")
	require.NotNil(t, got)
	assert.Equal(t, "dt_risk", got.TableID)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	c.Set("k", &schema.ExecutionResult{Success: true})

	require.NotNil(t, c.Get("k"))
	time.Sleep(25 * time.Millisecond)
	assert.Nil(t, c.Get("k"))
	// Expired entries linger until the janitor sweeps.
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_PurgeExpired(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	c.Set("old", &schema.ExecutionResult{})
	time.Sleep(25 * time.Millisecond)
	c.Set("fresh", &schema.ExecutionResult{})

	assert.Equal(t, 1, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())
	assert.NotNil(t, c.Get("fresh"))
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("k", &schema.ExecutionResult{})

	time.Sleep(5 * time.Millisecond)
	assert.NotNil(t, c.Get("k"))
	assert.Equal(t, 0, c.PurgeExpired())
}

func TestMemoryCache_Clear(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Set("a", &schema.ExecutionResult{})
	c.Set("b", &schema.ExecutionResult{})

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Get("a"))
}
