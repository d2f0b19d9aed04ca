package fetchadapter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// fileCache is the content-addressed, TTL'd, atomic-write cache
// described in spec.md §4.1: key = sha256(address||chain||kind), TTL
// 300s default, atomic rename-into-place writes, advisory on I/O error.
type fileCache struct {
	dir string
	ttl time.Duration
}

func newFileCache(dir string, ttl time.Duration) *fileCache {
	return &fileCache{dir: dir, ttl: ttl}
}

type cacheEnvelope struct {
	StoredAt     int64         `json:"stored_at"`
	Transactions []Transaction `json:"transactions"`
}

func cacheKey(address string, chainID int64, kind Kind) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s||%d||%s", address, chainID, kind)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached list and true if a fresh (within TTL) entry
// exists; a miss, stale entry, or read error returns (nil, false) and
// never surfaces an error — cache I/O failures are swallowed (§7
// CacheIOError).
func (c *fileCache) Get(address string, chainID int64, kind Kind) ([]Transaction, bool) {
	path := c.path(address, chainID, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("cache entry malformed, treating as miss")
		return nil, false
	}
	if time.Since(time.Unix(env.StoredAt, 0)) > c.ttl {
		return nil, false
	}
	return env.Transactions, true
}

// Put overwrites the cache entry atomically: write to a temp file then
// rename into place. Errors are swallowed.
func (c *fileCache) Put(address string, chainID int64, kind Kind, txns []Transaction) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		log.Debug().Err(err).Msg("cache mkdir failed, skipping write")
		return
	}
	env := cacheEnvelope{StoredAt: time.Now().Unix(), Transactions: txns}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	path := c.path(address, chainID, kind)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Debug().Err(err).Msg("cache write failed, skipping")
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Debug().Err(err).Msg("cache rename failed, skipping")
		_ = os.Remove(tmp)
	}
}

func (c *fileCache) path(address string, chainID int64, kind Kind) string {
	return filepath.Join(c.dir, cacheKey(address, chainID, kind)+".json")
}
