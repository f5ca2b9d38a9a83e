package cache_test

import (
	"context"
	"sync"
	"time"

	"vetorial-dashboard/internal/cache"
)

// fakeKVStore 仅用于单元测试（内存 KV，可注入写错误）
type fakeKVStore struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
}

func newFakeKVStore() *fakeKVStore {
	return &fakeKVStore{data: make(map[string]string)}
}

func (f *fakeKVStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}
