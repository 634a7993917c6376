// Package marketdata provides cached access to daily bar history.
package marketdata

import (
	"database/sql"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cache provides key-value storage with expiration over the bar_cache
// table. Values are msgpack blobs.
type Cache struct {
	db *sql.DB
}

// NewCache creates a new cache instance.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// GetExpiresAt returns the expiration timestamp for a key.
// Returns 0 if key doesn't exist.
// Does not check if expired - callers should compare with time.Now().Unix().
func (c *Cache) GetExpiresAt(key string) int64 {
	var expiresAt int64
	err := c.db.QueryRow("SELECT expires_at FROM bar_cache WHERE key = ?", key).Scan(&expiresAt)
	if err != nil {
		return 0
	}
	return expiresAt
}

// Set stores a value as msgpack in the cache with expiration timestamp.
func (c *Cache) Set(key string, value interface{}, expiresAt int64) error {
	blob, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(`
		INSERT INTO bar_cache (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, blob, expiresAt)
	return err
}

// Get retrieves a msgpack value from the cache and unmarshals it into dest.
// Returns sql.ErrNoRows if the key doesn't exist or is expired.
func (c *Cache) Get(key string, dest interface{}) error {
	var blob []byte
	var expiresAt int64
	err := c.db.QueryRow("SELECT value, expires_at FROM bar_cache WHERE key = ?", key).Scan(&blob, &expiresAt)
	if err != nil {
		return err
	}

	if time.Now().Unix() >= expiresAt {
		return sql.ErrNoRows
	}

	return msgpack.Unmarshal(blob, dest)
}

// Delete removes a cache entry.
func (c *Cache) Delete(key string) error {
	_, err := c.db.Exec("DELETE FROM bar_cache WHERE key = ?", key)
	return err
}

// DeleteByPrefix removes all cache entries matching a prefix.
func (c *Cache) DeleteByPrefix(prefix string) error {
	_, err := c.db.Exec("DELETE FROM bar_cache WHERE key LIKE ?", prefix+"%")
	return err
}

// PruneExpired removes entries whose expiration has passed and returns
// the number of rows deleted.
func (c *Cache) PruneExpired() (int64, error) {
	result, err := c.db.Exec("DELETE FROM bar_cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
