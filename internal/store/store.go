package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 请求的记录不存在。
var ErrNotFound = errors.New("record not found")

// ErrAlreadyFinished 搜索历史已处于终态，拒绝再次变更。
var ErrAlreadyFinished = errors.New("search history already finished")

// ProductStore 负责商品记录的读写。
type ProductStore struct {
	db *gorm.DB
}

// NewProductStore 创建商品存储。
func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// UpsertAll 在单个事务内按 ProductID 逐条 Upsert 抓取结果。
//
// 已存在的 ProductID 更新字段而不是新建记录。
func (s *ProductStore) UpsertAll(ctx context.Context, query string, results []model.ProductResult) error {
	if len(results) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range results {
			product := model.Product{
				ProductID:   r.ProductID,
				Name:        r.Name,
				Brand:       r.Brand,
				Price:       r.Price,
				Currency:    r.Currency,
				PriceText:   r.PriceText,
				Weight:      r.Weight,
				Store:       r.Store,
				Rating:      r.Rating,
				ReviewCount: r.ReviewCount,
				URL:         r.URL,
				ImageURL:    r.ImageURL,
				SearchQuery: query,
			}
			if product.Currency == "" {
				product.Currency = "USD"
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "product_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "brand", "price", "currency", "price_text",
					"weight", "store", "rating", "review_count",
					"url", "image_url", "search_query", "updated_at",
				}),
			}).Create(&product).Error
			if err != nil {
				return fmt.Errorf("upsert product %s: %w", r.ProductID, err)
			}
		}
		return nil
	})
}

// FindByQuery 按关键词查询已入库的商品（忽略大小写），最多返回 limit 条。
func (s *ProductStore) FindByQuery(ctx context.Context, query string, limit int) ([]model.Product, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	var products []model.Product
	err := s.db.WithContext(ctx).
		Where("LOWER(search_query) = ?", normalized).
		Order("search_timestamp DESC, price ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("find products by query: %w", err)
	}
	return products, nil
}

// FindByProductID 按源平台商品 ID 查询单个商品。
func (s *ProductStore) FindByProductID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &product, nil
}

// HistoryStore 负责搜索历史的生命周期管理。
type HistoryStore struct {
	db *gorm.DB
}

// NewHistoryStore 创建搜索历史存储。
func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Create 以 pending 状态创建一条搜索历史。
func (s *HistoryStore) Create(ctx context.Context, query string) (*model.SearchHistory, error) {
	entry := &model.SearchHistory{
		Query:  query,
		Status: model.StatusPending,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("create search history: %w", err)
	}
	return entry, nil
}

// MarkCompleted 将记录标记为 completed 并写入结果数量与耗时。
//
// 仅允许 pending -> completed 的转移，已终态的记录返回 ErrAlreadyFinished。
func (s *HistoryStore) MarkCompleted(ctx context.Context, entry *model.SearchHistory, resultsCount uint, elapsed time.Duration) error {
	now := time.Now()
	seconds := elapsed.Seconds()
	updates := map[string]interface{}{
		"status":        model.StatusCompleted,
		"results_count": resultsCount,
		"response_time": seconds,
		"completed_at":  now,
	}
	if err := s.finish(ctx, entry, updates); err != nil {
		return err
	}
	entry.Status = model.StatusCompleted
	entry.ResultsCount = resultsCount
	entry.ResponseTime = &seconds
	entry.CompletedAt = &now
	return nil
}

// MarkFailed 将记录标记为 failed 并保存截断后的错误信息。
//
// 仅允许 pending -> failed 的转移，已终态的记录返回 ErrAlreadyFinished。
func (s *HistoryStore) MarkFailed(ctx context.Context, entry *model.SearchHistory, errMsg string) error {
	now := time.Now()
	msg := model.TruncateError(errMsg)
	updates := map[string]interface{}{
		"status":        model.StatusFailed,
		"error_message": msg,
		"completed_at":  now,
	}
	if err := s.finish(ctx, entry, updates); err != nil {
		return err
	}
	entry.Status = model.StatusFailed
	entry.ErrorMessage = &msg
	entry.CompletedAt = &now
	return nil
}

// finish 以条件更新完成终态转移，条件不满足说明记录已非 pending。
func (s *HistoryStore) finish(ctx context.Context, entry *model.SearchHistory, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&model.SearchHistory{}).
		Where("id = ? AND status = ?", entry.ID, model.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("finish search history: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyFinished
	}
	return nil
}

// Recent 返回最近的搜索历史，按创建时间倒序。
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]model.SearchHistory, error) {
	var entries []model.SearchHistory
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	return entries, nil
}
