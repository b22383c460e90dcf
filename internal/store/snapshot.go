package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"

	"gorm.io/gorm"
)

// SnapshotStore 负责搜索结果快照表 (cached_search_results) 的读写。
//
// 快照是数据库中带过期时间的持久化副本，与 Redis 热缓存无共享状态。
// 过期仅在读取时生效，旧行不会被主动清理。
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore 创建快照存储。
func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Save 写入一条快照，ttl 之后过期。
func (s *SnapshotStore) Save(ctx context.Context, query string, results []model.ProductResult, ttl time.Duration) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	snapshot := model.CachedSearchResult{
		Query:     query,
		Results:   string(payload),
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Lookup 查询关键词的未过期快照（忽略大小写），多条命中时取最新创建的一条。
func (s *SnapshotStore) Lookup(ctx context.Context, query string) ([]model.ProductResult, bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	var snapshot model.CachedSearchResult
	err := s.db.WithContext(ctx).
		Where("LOWER(query) = ? AND expires_at > ?", normalized, time.Now()).
		Order("created_at DESC").
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup snapshot: %w", err)
	}

	var results []model.ProductResult
	if err := json.Unmarshal([]byte(snapshot.Results), &results); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return results, true, nil
}
