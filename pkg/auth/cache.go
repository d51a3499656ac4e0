package auth

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// TokenCache keeps recently validated tokens keyed by hash.
// Only credentials are cached; users, memberships and ownership are always read fresh.
type TokenCache struct {
	cache *lru.LRU[string, *APIToken]
}

// NewTokenCache creates a cache holding up to size tokens for ttl each
func NewTokenCache(size int, ttl time.Duration) *TokenCache {
	if size < 1 {
		size = 1
	}
	return &TokenCache{
		cache: lru.NewLRU[string, *APIToken](size, nil, ttl),
	}
}

// Get returns the cached token for hash
func (c *TokenCache) Get(hash string) (*APIToken, bool) {
	return c.cache.Get(hash)
}

// Add caches token under hash
func (c *TokenCache) Add(hash string, token *APIToken) {
	c.cache.Add(hash, token)
}

// Remove evicts hash
func (c *TokenCache) Remove(hash string) {
	c.cache.Remove(hash)
}

// Purge empties the cache
func (c *TokenCache) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached tokens
func (c *TokenCache) Len() int {
	return c.cache.Len()
}
