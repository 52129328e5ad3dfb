package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultTTL is used when neither the caller nor the configuration picks one
const DefaultTTL = 300 * time.Second

// Store defines the interface for ephemeral key/value caching with per-entry expiry
type Store interface {
	Set(key string, value any, ttl time.Duration)
	Get(key string) (any, bool)
	Delete(key string) bool
	Clear()
	Size() int
	SweepExpired() int
}

// Key generates a cache key from its parts
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "antihoax:v1:" + hex.EncodeToString(hash[:])
}
