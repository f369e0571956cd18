package cache

import (
	"context"
	"fmt"

	"github.com/spendaudit/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// FactoryOption configures New
type FactoryOption func(*factory)

type factory struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// WithLogger sets the logger used to report the chosen backend
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// an in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowInMemoryFallback = allow
	}
}

// New returns a Redis cache when Redis is enabled and reachable, otherwise
// an in-memory cache
func New(ctx context.Context, cfg config.RedisConfig, opts ...FactoryOption) (Cache, error) {
	f := &factory{logger: zap.NewNop(), allowInMemoryFallback: true}
	for _, opt := range opts {
		opt(f)
	}

	if !cfg.Enabled {
		f.logger.Info("using in-memory reference cache")
		return NewInMemoryCache(0), nil
	}

	client, err := NewRedisClient(ctx, cfg)
	if err == nil {
		f.logger.Info("using Redis reference cache", zap.String("addr", cfg.Addr()))
		return NewRedisCache(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for reference cache but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory reference cache", zap.Error(err))
	return NewInMemoryCache(0), nil
}
