// Package cache 首页渲染结果的短期缓存
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry 一次已渲染的响应
type Entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// PageCache 只按 TTL 过期；Clear 清空整个前缀
type PageCache interface {
	// Get 未命中时返回 nil, nil
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, e *Entry) error
	Clear(ctx context.Context) error
}

// RedisPageCache 用 redis 字符串保存 JSON 编码的 Entry
type RedisPageCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisPageCache(client *redis.Client, prefix string, ttl time.Duration) *RedisPageCache {
	if prefix == "" {
		prefix = "index_page"
	}
	return &RedisPageCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisPageCache) key(k string) string { return c.prefix + ":" + k }

func (c *RedisPageCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// 损坏的条目当作未命中
		return nil, nil
	}
	return &e, nil
}

func (c *RedisPageCache) Set(ctx context.Context, key string, e *Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Clear 用 SCAN 找到前缀下的所有 key 再批量删除
func (c *RedisPageCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+":*", 200).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			pipe.Del(ctx, keys...)
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("cache clear: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
