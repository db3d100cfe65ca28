// Package revocation remembers logged-out session tokens until they would
// have expired anyway. Tokens are keyed by their SHA-256 digest so the raw
// bearer credential is never retained.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/server/repositories/revocations"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MaxTTL bounds how long any revocation is remembered.
const MaxTTL = 24 * time.Hour

// Cache answers whether a token has been revoked.
type Cache interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Digest is the cache key for token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl > MaxTTL {
		return MaxTTL
	}
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// MemoryCache is a process-local cache. It has no size bound: an entry
// leaves only once its token would have expired, either through its own
// expiry or the LRU's MaxTTL sweep.
type MemoryCache struct {
	lru *expirable.LRU[string, time.Time]
	now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		lru: expirable.NewLRU[string, time.Time](0, nil, MaxTTL),
		now: time.Now,
	}
}

func (c *MemoryCache) Revoke(_ context.Context, token string, ttl time.Duration) error {
	key := Digest(token)
	exp := c.now().Add(clampTTL(ttl))
	if prev, ok := c.lru.Peek(key); ok && prev.After(exp) {
		return nil
	}
	c.lru.Add(key, exp)
	return nil
}

func (c *MemoryCache) IsRevoked(_ context.Context, token string) (bool, error) {
	key := Digest(token)
	exp, ok := c.lru.Get(key)
	if !ok {
		return false, nil
	}
	if !c.now().Before(exp) {
		c.lru.Remove(key)
		return false, nil
	}
	return true, nil
}

// Len reports how many revocations are held.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// RepositoryCache shares revocations between processes through the
// revoked_tokens table.
type RepositoryCache struct {
	repo revocations.Repository
	now  func() time.Time
}

func NewRepositoryCache(repo revocations.Repository) *RepositoryCache {
	return &RepositoryCache{repo: repo, now: time.Now}
}

func (c *RepositoryCache) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return c.repo.Insert(ctx, Digest(token), c.now().Add(clampTTL(ttl)))
}

func (c *RepositoryCache) IsRevoked(ctx context.Context, token string) (bool, error) {
	return c.repo.Exists(ctx, Digest(token), c.now())
}

// Sweep deletes lapsed revocations.
func (c *RepositoryCache) Sweep(ctx context.Context) (int64, error) {
	return c.repo.DeleteExpired(ctx, c.now())
}
