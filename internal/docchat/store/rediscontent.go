package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	redisopts "github.com/kart-io/docchat/pkg/options/redis"
)

// contentKeyPrefix Redis 中内容键的前缀。
const contentKeyPrefix = "docchat:content:"

// RedisContent 实现基于 Redis 的内容存储。
type RedisContent struct {
	client *redis.Client
}

var _ ContentStore = (*RedisContent)(nil)

// NewRedisContent 创建 Redis 内容存储并检查连通性。
func NewRedisContent(ctx context.Context, opts *redisopts.Options) (*RedisContent, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolTimeout:  opts.PoolTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 redis 失败: %w", err)
	}

	return &RedisContent{client: client}, nil
}

// Put 保存一个元素的序列化原文，不设置过期时间。
func (s *RedisContent) Put(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return fmt.Errorf("元素 ID 不能为空")
	}
	if err := s.client.Set(ctx, contentKeyPrefix+id, data, 0).Err(); err != nil {
		return fmt.Errorf("写入 redis 失败: %w", err)
	}
	return nil
}

// MGet 批量读取，缺失的 ID 对应 nil。
func (s *RedisContent) MGet(ctx context.Context, ids []string) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = contentKeyPrefix + id
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("读取 redis 失败: %w", err)
	}

	result := make([][]byte, len(ids))
	for i, v := range values {
		if v == nil {
			continue
		}
		if str, ok := v.(string); ok {
			result[i] = []byte(str)
		}
	}
	return result, nil
}

// Close 关闭 Redis 连接。
func (s *RedisContent) Close(_ context.Context) error {
	return s.client.Close()
}
