package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"

	"go.uber.org/zap"
)

// DefaultRecordsKey 最近一次成功加载的记录列表所在的 key
const DefaultRecordsKey = "vetorial:records:last-known-good"

// snapshot 缓存中保存的结构
type snapshot struct {
	SavedAt int64           `json:"savedAt"`
	Records []domain.Record `json:"records"`
}

// RecordCache 本地缓存中的单一记录列表槽位
type RecordCache struct {
	kv     KVStore
	key    string
	logger *zap.Logger
}

// NewRecordCache 创建记录缓存，key 为空时使用 DefaultRecordsKey
func NewRecordCache(kv KVStore, key string, logger *zap.Logger) *RecordCache {
	if key == "" {
		key = DefaultRecordsKey
	}
	return &RecordCache{kv: kv, key: key, logger: logger}
}

// Load 读取缓存的记录列表（已归一化，读出后仍经 normalizer.Canonical）
// 不存在时返回 ErrCacheMiss
func (c *RecordCache) Load(ctx context.Context) ([]domain.Record, error) {
	raw, err := c.kv.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached records: %w", err)
	}

	return normalizer.CanonicalizeAll(snap.Records), nil
}

// Save 覆盖写入记录列表（不设置 TTL）
func (c *RecordCache) Save(ctx context.Context, records []domain.Record) error {
	jsonData, err := json.Marshal(snapshot{
		SavedAt: time.Now().Unix(),
		Records: records,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	if err := c.kv.Set(ctx, c.key, string(jsonData), 0); err != nil {
		if errors.Is(err, ErrStorageQuota) {
			return err
		}
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Saved records snapshot",
		zap.String("key", c.key),
		zap.Int("record_count", len(records)),
	)
	return nil
}
