package price

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// CachedResolver memoizes quotes in memory. Known quotes live for ttl,
// unknown quotes for missTTL so a provider gap is retried later. Errors are
// never cached.
type CachedResolver struct {
	next    Resolver
	cache   *gocache.Cache
	missTTL time.Duration
	logger  *zap.Logger
}

// NewCachedResolver wraps next.
func NewCachedResolver(next Resolver, ttl, missTTL time.Duration, logger *zap.Logger) *CachedResolver {
	if missTTL <= 0 || missTTL > ttl {
		missTTL = ttl / 4
	}
	return &CachedResolver{
		next:    next,
		cache:   gocache.New(ttl, 2*ttl),
		missTTL: missTTL,
		logger:  logger.Named("price_cache"),
	}
}

func (c *CachedResolver) Resolve(ctx context.Context, assetID string, date time.Time) (Quote, error) {
	key := cacheKey(assetID, date)
	if v, ok := c.cache.Get(key); ok {
		return v.(Quote), nil
	}

	q, err := c.next.Resolve(ctx, assetID, date)
	if err != nil {
		return q, err
	}

	if q.Known {
		c.cache.SetDefault(key, q)
	} else {
		c.cache.Set(key, q, c.missTTL)
	}
	c.logger.Debug("Price cached",
		zap.String("key", key),
		zap.Bool("known", q.Known),
		zap.String("price", q.Price.String()))
	return q, nil
}

// Len returns the number of cached entries, expired ones included.
func (c *CachedResolver) Len() int { return c.cache.ItemCount() }
