package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"

	"gorm.io/gorm"
)

func snapshotRow(t *testing.T, db *gorm.DB, query, productID string, createdAt time.Time, expiresAt time.Time) {
	t.Helper()
	payload, err := json.Marshal([]model.ProductResult{{
		ProductID:   productID,
		Name:        "Kirkland " + query,
		Currency:    "USD",
		URL:         "https://example.com/product/1",
		SearchQuery: query,
	}})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	row := model.CachedSearchResult{
		CreatedAt: createdAt,
		Query:     query,
		Results:   string(payload),
		ExpiresAt: expiresAt,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}
}

func TestSnapshotStore_LookupSkipsExpiredRows(t *testing.T) {
	db := newTestDB(t)
	s := NewSnapshotStore(db)
	ctx := context.Background()
	now := time.Now()

	// 只有一条过期行时视为未命中
	snapshotRow(t, db, "milk", "mock_expired", now.Add(-2*time.Hour), now.Add(-time.Minute))

	_, hit, err := s.Lookup(ctx, "milk")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if hit {
		t.Fatalf("expected expired snapshot to be ignored")
	}

	// 出现未过期行之后命中
	snapshotRow(t, db, "milk", "mock_fresh", now, now.Add(time.Hour))

	results, hit, err := s.Lookup(ctx, "milk")
	if err != nil {
		t.Fatalf("lookup fresh: %v", err)
	}
	if !hit {
		t.Fatalf("expected fresh snapshot to hit")
	}
	if len(results) != 1 || results[0].ProductID != "mock_fresh" {
		t.Fatalf("unexpected payload: %+v", results)
	}
}

func TestSnapshotStore_LookupNewestWinsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	s := NewSnapshotStore(db)
	ctx := context.Background()
	now := time.Now()

	snapshotRow(t, db, "Peanut Butter", "mock_old", now.Add(-3*time.Hour), now.Add(time.Hour))
	snapshotRow(t, db, "PEANUT BUTTER", "mock_new", now.Add(-time.Minute), now.Add(time.Hour))

	// 大小写与空白不同的同一关键词命中，且取 created_at 最新的一条
	results, hit, err := s.Lookup(ctx, "  peanut butter ")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !hit {
		t.Fatalf("expected case-insensitive hit")
	}
	if len(results) != 1 || results[0].ProductID != "mock_new" {
		t.Fatalf("expected newest snapshot, got %+v", results)
	}
}

func TestSnapshotStore_SaveRoundTrip(t *testing.T) {
	db := newTestDB(t)
	s := NewSnapshotStore(db)
	ctx := context.Background()

	price := 7.49
	want := []model.ProductResult{{
		ProductID:   "mock_42_0",
		Name:        "Kirkland tea",
		Price:       &price,
		Currency:    "USD",
		URL:         "https://example.com/product/42_0",
		SearchQuery: "tea",
	}}
	if err := s.Save(ctx, "tea", want, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, hit, err := s.Lookup(ctx, "tea")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !hit {
		t.Fatalf("expected saved snapshot to hit")
	}
	if len(got) != 1 || got[0].ProductID != "mock_42_0" || got[0].Price == nil || *got[0].Price != price {
		t.Fatalf("unexpected payload: %+v", got)
	}
}
