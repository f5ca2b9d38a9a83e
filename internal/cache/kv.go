package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	// ErrCacheMiss 缓存中没有快照
	ErrCacheMiss = errors.New("cache miss")
	// ErrStorageQuota 本地缓存空间不足，唯一需要直接提示用户的缓存错误
	ErrStorageQuota = errors.New("local cache storage quota exceeded")
)

// KVStore 快照所在的字符串 KV；写入被容量拒绝时返回 ErrStorageQuota
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore Redis 上的 KVStore
type RedisKVStore struct {
	client *redis.Client
}

var _ KVStore = (*RedisKVStore)(nil)

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", ErrCacheMiss
	case err != nil:
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return quotaError(r.client.Set(ctx, key, value, ttl).Err())
}

// quotaError 把 maxmemory 拒绝写入（"OOM command not allowed ..."）归为 ErrStorageQuota
func quotaError(err error) error {
	if err == nil || errors.Is(err, ErrStorageQuota) {
		return err
	}
	if strings.HasPrefix(err.Error(), "OOM ") {
		return fmt.Errorf("%w: %v", ErrStorageQuota, err)
	}
	return err
}
