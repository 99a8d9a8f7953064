package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/domain/entity"
	domainRepo "github.com/harborpay/reconciler/internal/domain/repository"
)

type statusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatusCache creates the redis-backed status view cache
func NewStatusCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) domainRepo.StatusCache {
	return &statusCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func statusKey(requestID int64) string {
	return fmt.Sprintf("reconciler:status:%d", requestID)
}

func (c *statusCache) Get(ctx context.Context, requestID int64) (*entity.StatusView, error) {
	data, err := c.client.Get(ctx, statusKey(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached status: %w", err)
	}

	var view entity.StatusView
	if err := json.Unmarshal(data, &view); err != nil {
		// A corrupt entry is treated as a miss and evicted.
		c.logger.Warn("Discarding corrupt cached status",
			zap.Int64("request_id", requestID),
			zap.Error(err))
		c.client.Del(ctx, statusKey(requestID))
		return nil, nil
	}
	return &view, nil
}

func (c *statusCache) Set(ctx context.Context, view *entity.StatusView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal status view: %w", err)
	}
	if err := c.client.Set(ctx, statusKey(view.RequestID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache status view: %w", err)
	}
	return nil
}

func (c *statusCache) Invalidate(ctx context.Context, requestID int64) error {
	if err := c.client.Del(ctx, statusKey(requestID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached status: %w", err)
	}
	return nil
}
