package marketdata

import (
	"database/sql"
	"testing"
	"time"

	"github.com/jtallis/ballast/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCacheDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE bar_cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func TestCacheSetGetRoundTrip(t *testing.T) {
	cache := NewCache(setupCacheDB(t))

	bars := []domain.Bar{
		{Timestamp: time.Date(2025, 1, 2, 5, 0, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101, Volume: 5000000},
		{Timestamp: time.Date(2025, 1, 3, 5, 0, 0, 0, time.UTC), Open: 101, High: 103, Low: 100, Close: 102, Volume: 4000000},
	}

	future := time.Now().Add(time.Hour).Unix()
	require.NoError(t, cache.Set("bars:daily:AAPL:90", bars, future))

	var got []domain.Bar
	require.NoError(t, cache.Get("bars:daily:AAPL:90", &got))
	require.Len(t, got, 2)
	assert.Equal(t, 101.0, got[0].Close)
	assert.Equal(t, 4000000.0, got[1].Volume)
	assert.True(t, got[0].Timestamp.Equal(bars[0].Timestamp))
}

func TestCacheGetMissingOrExpired(t *testing.T) {
	cache := NewCache(setupCacheDB(t))

	var dest []domain.Bar
	assert.ErrorIs(t, cache.Get("missing", &dest), sql.ErrNoRows)

	past := time.Now().Add(-time.Hour).Unix()
	require.NoError(t, cache.Set("stale", []domain.Bar{{Close: 1}}, past))
	assert.ErrorIs(t, cache.Get("stale", &dest), sql.ErrNoRows)
}

func TestCacheDeleteByPrefix(t *testing.T) {
	cache := NewCache(setupCacheDB(t))

	future := time.Now().Add(time.Hour).Unix()
	require.NoError(t, cache.Set("bars:daily:AAPL:90", []domain.Bar{{Close: 1}}, future))
	require.NoError(t, cache.Set("bars:daily:AAPL:30", []domain.Bar{{Close: 2}}, future))
	require.NoError(t, cache.Set("bars:daily:MSFT:90", []domain.Bar{{Close: 3}}, future))

	require.NoError(t, cache.DeleteByPrefix("bars:daily:AAPL:"))

	var dest []domain.Bar
	assert.Error(t, cache.Get("bars:daily:AAPL:90", &dest))
	assert.Error(t, cache.Get("bars:daily:AAPL:30", &dest))
	assert.NoError(t, cache.Get("bars:daily:MSFT:90", &dest))
}

func TestCachePruneExpired(t *testing.T) {
	cache := NewCache(setupCacheDB(t))

	require.NoError(t, cache.Set("live", []domain.Bar{{Close: 1}}, time.Now().Add(time.Hour).Unix()))
	require.NoError(t, cache.Set("dead", []domain.Bar{{Close: 2}}, time.Now().Add(-time.Hour).Unix()))

	pruned, err := cache.PruneExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	assert.NotZero(t, cache.GetExpiresAt("live"))
	assert.Zero(t, cache.GetExpiresAt("dead"))
}
