package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
)

// KeyLength is the number of hex characters kept from the key digest.
const KeyLength = 32

// Store caches audit results by key.
type Store interface {
	// Get returns the cached result for key. A missing or expired entry is a
	// miss, not an error.
	Get(ctx context.Context, key string) (*models.AuditResult, bool, error)
	// Set stores result under key. A ttl of zero or less never expires.
	Set(ctx context.Context, key string, result *models.AuditResult, ttl time.Duration) error
}

// Clearer is implemented by stores that can drop every entry.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Key derives the cache key for one stage audit.
func Key(model, templateHash, promptHash, contentHash string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{model, templateHash, promptHash, contentHash}, ":")))
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// Hash returns the hex sha256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// entry is the stored form of a result.
type entry struct {
	Key       string              `json:"key"`
	StoredAt  time.Time           `json:"stored_at"`
	ExpiresAt time.Time           `json:"expires_at,omitzero"`
	Result    *models.AuditResult `json:"result"`
}

func newEntry(key string, result *models.AuditResult, ttl time.Duration, now time.Time) entry {
	e := entry{Key: key, StoredAt: now, Result: result}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}

func (e *entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// encode serialises an entry as zstd-compressed JSON.
func encode(e entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling cache entry: %w", err)
	}
	return encoder.EncodeAll(data, nil), nil
}

func decode(data []byte) (entry, error) {
	var e entry
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return e, fmt.Errorf("decompressing cache entry: %w", err)
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("unmarshaling cache entry: %w", err)
	}
	if e.Result == nil {
		return e, fmt.Errorf("cache entry has no result")
	}
	return e, nil
}
