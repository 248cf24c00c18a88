package cache

import (
	"context"

	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore picks the webhook fast-path store for cfg. An empty
// host selects the in-memory store; an unreachable Redis falls back to it
// with a warning since the database dedupe stays authoritative.
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) shared.IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		logger.Info("Redis not configured, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore()
	}

	store, err := NewRedisIdempotencyStore(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
			zap.String("addr", cfg.Addr()),
			zap.Error(err))
		return NewInMemoryIdempotencyStore()
	}
	logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Addr()))
	return store
}
