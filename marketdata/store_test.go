package marketdata

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-dashboard/models"
)

func TestEntry_Fresh(t *testing.T) {
	captured := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	e := Entry{CapturedAt: captured}

	assert.True(t, e.Fresh(captured.Add(14*time.Minute+59*time.Second), DefaultTTL))
	assert.False(t, e.Fresh(captured.Add(15*time.Minute), DefaultTTL))
	assert.False(t, e.Fresh(captured.Add(15*time.Minute+1*time.Second), DefaultTTL))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "AAPL", Entry{Quote: models.Quote{Symbol: "AAPL"}, CapturedAt: time.Now()}))
	e, ok, err := s.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "AAPL", e.Quote.Symbol)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis store test")
	}

	ctx := context.Background()
	s, err := NewRedisStore(ctx, url, DefaultTTL)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Clear(ctx))

	captured := time.Now().UTC().Truncate(time.Second)
	q := PlaceholderQuote("TEST", captured)
	require.NoError(t, s.Set(ctx, "TEST", Entry{Quote: q, CapturedAt: captured}))

	e, ok, err := s.Get(ctx, "TEST")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, e.CapturedAt.Equal(captured))
	assert.True(t, e.Quote.Close.Equal(q.Close))

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Get(ctx, "TEST")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-redis-url", DefaultTTL)
	assert.Error(t, err)
}
