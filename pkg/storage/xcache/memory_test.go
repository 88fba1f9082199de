package xcache

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) Memory {
	t.Helper()
	mem, err := NewMemory(WithMemoryNumCounters(1000), WithMemoryMaxCost(MinMemoryMaxCost))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })
	return mem
}

func TestNewMemoryFromClient_WithNilClient_ReturnsError(t *testing.T) {
	mem, err := NewMemoryFromClient(nil)
	assert.ErrorIs(t, err, ErrNilClient)
	assert.Nil(t, mem)
}

func TestNewMemoryFromClient_MetricsDisabled_ReturnsError(t *testing.T) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	require.NoError(t, err)
	defer cache.Close()

	_, err = NewMemoryFromClient(cache)
	assert.ErrorIs(t, err, ErrMetricsDisabled)
}

func TestNewMemoryFromClient_CloseKeepsUnderlyingCache(t *testing.T) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 100,
		MaxCost:     1 << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	require.NoError(t, err)
	defer cache.Close()

	mem, err := NewMemoryFromClient(cache)
	require.NoError(t, err)
	require.NoError(t, mem.Close())

	// 底层缓存仍可用
	assert.True(t, cache.Set("k", []byte("v"), 1))
}

func TestMemory_SetGet_VisibleImmediately(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "k", []byte("v"), time.Minute))

	val, err := mem.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestMemory_Get_Missing_ReturnsCacheMiss(t *testing.T) {
	mem := newTestMemory(t)

	_, err := mem.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemory_GetWithTTL_ReturnsRemaining(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "k", []byte("v"), time.Minute))

	val, ttl, err := mem.GetWithTTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestMemory_TTL_NoExpiry_ReturnsNoExpiration(t *testing.T) {
	mem := newTestMemory(t)
	require.True(t, mem.Client().Set("persist", []byte("v"), 1))
	mem.Wait()

	ttl, err := mem.TTL(context.Background(), "persist")
	require.NoError(t, err)
	assert.Equal(t, NoExpiration, ttl)
}

func TestMemory_Set_InvalidTTL_ReturnsError(t *testing.T) {
	mem := newTestMemory(t)

	err := mem.Set(context.Background(), "k", []byte("v"), 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestMemory_Stats_CountsHitsAndMisses(t *testing.T) {
	mem := newTestMemory(t)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "k", []byte("v"), time.Minute))

	_, _ = mem.Get(ctx, "k")
	_, _ = mem.Get(ctx, "absent")

	stats := mem.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRatio, 0.001)
}

func TestMemory_Close_Twice_ReturnsErrClosed(t *testing.T) {
	mem, err := NewMemory()
	require.NoError(t, err)

	require.NoError(t, mem.Close())
	assert.ErrorIs(t, mem.Close(), ErrClosed)
	assert.ErrorIs(t, mem.Health(context.Background()), ErrClosed)
}

func TestWithMemoryMaxCost_BelowMinimum_Clamped(t *testing.T) {
	opts := defaultMemoryOptions()
	WithMemoryMaxCost(10)(opts)
	assert.Equal(t, int64(MinMemoryMaxCost), opts.MaxCost)

	WithMemoryMaxCost(-1)(opts)
	assert.Equal(t, int64(MinMemoryMaxCost), opts.MaxCost)
}
