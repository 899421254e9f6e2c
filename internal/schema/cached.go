package schema

import (
	"context"
	"errors"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/internal/credential/ports"

	"github.com/bluele/gcache"
)

// CachedLoader is an LRU in front of another loader. Misses are not cached,
// so a schema registered later becomes visible immediately.
type CachedLoader struct {
	next  ports.SchemaLoader
	cache gcache.Cache
}

// NewCachedLoader caches up to size schemas for ttl.
func NewCachedLoader(next ports.SchemaLoader, size int, ttl time.Duration) *CachedLoader {
	if size <= 0 {
		size = 128
	}
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &CachedLoader{next: next, cache: b.Build()}
}

func (c *CachedLoader) Load(ctx context.Context, schemaID string) (*models.Schema, error) {
	v, err := c.cache.Get(schemaID)
	if err == nil {
		if s, ok := v.(models.Schema); ok {
			return &s, nil
		}
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, err
	}

	s, err := c.next.Load(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(schemaID, *s)
	return s, nil
}

// Purge drops every cached schema.
func (c *CachedLoader) Purge() {
	c.cache.Purge()
}
