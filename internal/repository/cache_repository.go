package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/pubdesk-api/pkg/errors"
)

// changeChannel carries table-change events to dashboard subscribers.
const changeChannel = "pubdesk:changes"

// ChangeEvent tells dashboard watchers that a table was written and a
// re-fetch is in order.
type ChangeEvent struct {
	Table string `json:"table"`
	ID    string `json:"id,omitempty"`
}

// CacheRepository provides helpers around Redis for dashboard caching and
// the realtime change feed.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	return &CacheRepository{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// DeleteByPattern removes cached entries matching the provided pattern.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}

	return nil
}

// PublishChange broadcasts a table-change event on the change feed. Failures
// are logged and swallowed: the feed is an additive observer, never a
// participant in the write.
func (r *CacheRepository) PublishChange(ctx context.Context, event ChangeEvent) {
	if r.client == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, changeChannel, payload).Err(); err != nil && r.logger != nil {
		r.logger.Warn("failed to publish change event", zap.String("table", event.Table), zap.Error(err))
	}
}

// SubscribeChanges subscribes to the change feed and returns the delivery
// channel together with a close function.
func (r *CacheRepository) SubscribeChanges(ctx context.Context) (<-chan ChangeEvent, func(), error) {
	if r.client == nil {
		return nil, nil, fmt.Errorf("redis client not configured")
	}

	sub := r.client.Subscribe(ctx, changeChannel)
	events := make(chan ChangeEvent)

	go func() {
		defer close(events)
		for msg := range sub.Channel() {
			var event ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	closeFn := func() {
		_ = sub.Close()
	}
	return events, closeFn, nil
}
