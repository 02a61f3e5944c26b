package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

const keyPrefix = "inbox:"

// NotificationCache caches each recipient's inbox page and unread count in Redis.
type NotificationCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewNotificationCache returns a new NotificationCache.
func NewNotificationCache(rdb *redis.Client, ttl time.Duration) *NotificationCache {
	return &NotificationCache{rdb: rdb, ttl: ttl}
}

func listKey(recipient string) string   { return keyPrefix + normalize(recipient) + ":list" }
func unreadKey(recipient string) string { return keyPrefix + normalize(recipient) + ":unread" }
func genKey(recipient string) string    { return keyPrefix + normalize(recipient) + ":gen" }

// Generation returns the recipient's invalidation counter. Read it before
// loading from the store and pass it to SetList or SetUnread.
func (c *NotificationCache) Generation(ctx context.Context, recipient string) (int64, error) {
	n, err := c.rdb.Get(ctx, genKey(recipient)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// setIf writes key only while the generation is still gen. A concurrent
// Invalidate makes the write a no-op.
func (c *NotificationCache) setIf(ctx context.Context, recipient string, gen int64, key string, value interface{}) error {
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey(recipient)).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, c.ttl)
			return nil
		})
		return err
	}, genKey(recipient))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// GetList returns the cached inbox or nil on a miss.
func (c *NotificationCache) GetList(ctx context.Context, recipient string) ([]domain.Notification, error) {
	b, err := c.rdb.Get(ctx, listKey(recipient)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []domain.Notification
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetList stores the inbox in cache unless it was invalidated since gen.
func (c *NotificationCache) SetList(ctx context.Context, recipient string, gen int64, list []domain.Notification) error {
	if list == nil {
		list = []domain.Notification{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.setIf(ctx, recipient, gen, listKey(recipient), b)
}

// GetUnread returns the cached unread count. ok is false on a miss.
func (c *NotificationCache) GetUnread(ctx context.Context, recipient string) (n int, ok bool, err error) {
	s, err := c.rdb.Get(ctx, unreadKey(recipient)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err = strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (c *NotificationCache) SetUnread(ctx context.Context, recipient string, gen int64, n int) error {
	return c.setIf(ctx, recipient, gen, unreadKey(recipient), n)
}

// Invalidate drops everything cached for the recipient and bumps the
// generation so loads already in flight do not repopulate it.
func (c *NotificationCache) Invalidate(ctx context.Context, recipient string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(recipient))
		pipe.Del(ctx, listKey(recipient), unreadKey(recipient))
		return nil
	})
	return err
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}
