package ncaa

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/cache"
	"github.com/fortuna/collegebaseball/internal/monitoring"
)

// PageStore is the subset of the Redis cache the fetcher needs.
type PageStore interface {
	GetPage(ctx context.Context, key string) ([]byte, bool, error)
	SetPage(ctx context.Context, key string, body []byte, ttl time.Duration) error
}

// CachedFetcher serves pages from a PageStore before asking Next. Cache
// failures are logged and never fail the fetch.
type CachedFetcher struct {
	Next    Fetcher
	Store   PageStore
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Fetch returns the cached body for pageURL or fetches and stores it.
func (f *CachedFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	key := cache.PageKey(pageURL)

	body, ok, err := f.Store.GetPage(ctx, key)
	if err != nil {
		logger.Warn("page cache read failed", zap.String("url", pageURL), zap.Error(err))
	} else if ok {
		f.Metrics.RecordFetch("cache", monitoring.OutcomeCached, 0)
		return body, nil
	}

	body, err = f.Next.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if err := f.Store.SetPage(ctx, key, body, f.TTL); err != nil {
		logger.Warn("page cache write failed", zap.String("url", pageURL), zap.Error(err))
	}
	return body, nil
}
