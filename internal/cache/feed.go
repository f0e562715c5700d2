package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/issue_logger/internal/models"
)

const (
	FeedKey        = "issue_logger:feed"
	FeedVersionKey = "issue_logger:feed:version"
)

// FeedCache holds the serialized issue feed. A nil *FeedCache is valid and
// behaves as an always-empty cache.
//
// Every Invalidate bumps a version counter. Set only stores a feed read under
// the version the caller saw before querying, so a feed that was read before
// a concurrent write is never cached.
type FeedCache struct {
	rdb        *redis.Client
	key        string
	versionKey string
	ttl        time.Duration
}

func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FeedCache{rdb: rdb, key: FeedKey, versionKey: FeedVersionKey, ttl: ttl}
}

func (c *FeedCache) Get(ctx context.Context) ([]models.Issue, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var issues []models.Issue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, false, err
	}
	return issues, true, nil
}

// Version returns the current invalidation counter. A missing counter is 0.
func (c *FeedCache) Version(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	v, err := c.rdb.Get(ctx, c.versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Set stores issues if the version counter still equals version. A stale
// write is skipped without error.
func (c *FeedCache) Set(ctx context.Context, issues []models.Issue, version int64) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(issues)
	if err != nil {
		return err
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, c.versionKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, data, c.ttl)
			return nil
		})
		return err
	}, c.versionKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *FeedCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	return err
}
