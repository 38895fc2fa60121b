package s0_data

import (
	"context"
	"time"

	"github.com/wonny/wuxing-quant/internal/contracts"
	"github.com/wonny/wuxing-quant/pkg/logger"
	"github.com/wonny/wuxing-quant/pkg/redis"
)

// CachedSource puts a Redis cache in front of another PriceSource.
// Cache failures are logged and fall through to the inner source.
type CachedSource struct {
	inner  contracts.PriceSource
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedSource wraps inner; ttl <= 0 uses redis.TTLDaily.
// Windows still open at the end (zero or future `to`) are kept at most redis.TTLShort
// so newly collected bars show up.
func NewCachedSource(inner contracts.PriceSource, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedSource{inner: inner, cache: cache, ttl: ttl, logger: log}
}

// Bars implements contracts.PriceSource
func (s *CachedSource) Bars(ctx context.Context, symbol string, from, to time.Time) (contracts.PriceSeries, error) {
	key := redis.BarsKey(symbol, boundKey(from), boundKey(to))

	var cached contracts.PriceSeries
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Warn("Bar cache lookup failed")
	}
	if found {
		return cached, nil
	}

	bars, err := s.inner.Bars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	// 빈 결과는 캐시하지 않음
	if len(bars) > 0 {
		if err := s.cache.Set(ctx, key, bars, s.ttlFor(to)); err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to cache bars")
		}
	}
	return bars, nil
}

func (s *CachedSource) ttlFor(to time.Time) time.Duration {
	if (to.IsZero() || to.After(time.Now())) && s.ttl > redis.TTLShort {
		return redis.TTLShort
	}
	return s.ttl
}

func boundKey(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return contracts.DateKey(t)
}
