package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Product{}, &model.SearchHistory{}, &model.CachedSearchResult{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func fetchedResults(query string, n int) []model.ProductResult {
	price := 4.99
	results := make([]model.ProductResult, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, model.ProductResult{
			ProductID:   fmt.Sprintf("mock_7_%d", i),
			Name:        "Kirkland " + query,
			Price:       &price,
			Currency:    "USD",
			URL:         "https://example.com/product/7",
			SearchQuery: query,
		})
	}
	return results
}

func TestProductStore_UpsertUpdatesExisting(t *testing.T) {
	db := newTestDB(t)
	s := NewProductStore(db)
	ctx := context.Background()

	first := fetchedResults("coffee", 2)
	if err := s.UpsertAll(ctx, "coffee", first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// 相同 ProductID 再次入库必须更新字段而不是新建行
	second := fetchedResults("coffee", 2)
	second[0].Name = "Kirkland coffee updated"
	if err := s.UpsertAll(ctx, "coffee", second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var count int64
	if err := db.Model(&model.Product{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows after repeated upsert, got %d", count)
	}

	updated, err := s.FindByProductID(ctx, second[0].ProductID)
	if err != nil {
		t.Fatalf("find updated: %v", err)
	}
	if updated.Name != "Kirkland coffee updated" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}
}

func TestProductStore_FindByQueryCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	s := NewProductStore(db)
	ctx := context.Background()

	if err := s.UpsertAll(ctx, "Green Tea", fetchedResults("Green Tea", 3)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	found, err := s.FindByQuery(ctx, "  green tea ", 10)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 case-insensitive matches, got %d", len(found))
	}

	limited, err := s.FindByQuery(ctx, "green tea", 2)
	if err != nil {
		t.Fatalf("find limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestHistoryStore_StrictTerminalTransitions(t *testing.T) {
	db := newTestDB(t)
	s := NewHistoryStore(db)
	ctx := context.Background()

	entry, err := s.Create(ctx, "peanut butter")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", entry.Status)
	}

	if err := s.MarkCompleted(ctx, entry, 5, 120*time.Millisecond); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if entry.Status != model.StatusCompleted || entry.CompletedAt == nil || entry.ResponseTime == nil {
		t.Fatalf("terminal fields not set: %+v", entry)
	}

	// 已终态的记录拒绝二次转移
	if err := s.MarkFailed(ctx, entry, "boom"); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished, got %v", err)
	}
	if err := s.MarkCompleted(ctx, entry, 9, time.Second); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("expected ErrAlreadyFinished on repeat, got %v", err)
	}

	// 数据库中的行保持第一次的终态
	var stored model.SearchHistory
	if err := db.First(&stored, entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != model.StatusCompleted {
		t.Fatalf("stored status overwritten: %s", stored.Status)
	}
	if stored.ResultsCount != 5 {
		t.Fatalf("stored count overwritten: %d", stored.ResultsCount)
	}
	if stored.ErrorMessage != nil {
		t.Fatalf("failed fields leaked into completed row: %v", *stored.ErrorMessage)
	}
}

func TestHistoryStore_MarkFailedTruncatesMessage(t *testing.T) {
	db := newTestDB(t)
	s := NewHistoryStore(db)
	ctx := context.Background()

	entry, err := s.Create(ctx, "milk")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	long := strings.Repeat("x", model.ErrorMessageLimit+300)
	if err := s.MarkFailed(ctx, entry, long); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	var stored model.SearchHistory
	if err := db.First(&stored, entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != model.StatusFailed {
		t.Fatalf("expected failed, got %s", stored.Status)
	}
	if stored.ErrorMessage == nil || len(*stored.ErrorMessage) != model.ErrorMessageLimit {
		t.Fatalf("expected truncated message of %d chars", model.ErrorMessageLimit)
	}
}
