package fetch

import (
	"context"
	"strings"
	"testing"
)

func TestMockFetcher_RespectsMaxResults(t *testing.T) {
	f := NewMockFetcherWithSeed(10, 1)
	ctx := context.Background()

	results, err := f.Fetch(ctx, "organic peanut butter", 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
}

func TestMockFetcher_CappedAtFetchCap(t *testing.T) {
	f := NewMockFetcherWithSeed(10, 1)

	results, err := f.Fetch(context.Background(), "milk", 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected cap of 10, got %d", len(results))
	}
}

func TestMockFetcher_StableProductIDs(t *testing.T) {
	f := NewMockFetcherWithSeed(10, 1)
	ctx := context.Background()

	first, err := f.Fetch(ctx, "coffee", 3)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := f.Fetch(ctx, "coffee", 3)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	// 同一关键词的 ProductID 在多次抓取之间必须稳定，否则 Upsert 无法去重
	for i := range first {
		if first[i].ProductID != second[i].ProductID {
			t.Fatalf("product id changed between fetches: %s vs %s", first[i].ProductID, second[i].ProductID)
		}
	}
}

func TestMockFetcher_FieldRanges(t *testing.T) {
	f := NewMockFetcherWithSeed(10, 42)

	results, err := f.Fetch(context.Background(), "organic peanut butter", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	for _, r := range results {
		if !strings.Contains(r.Name, "organic peanut butter") {
			t.Fatalf("name %q does not contain query", r.Name)
		}
		if r.Price == nil || *r.Price < 2.99 || *r.Price > 19.99 {
			t.Fatalf("price out of range: %+v", r.Price)
		}
		if r.Rating == nil || *r.Rating < 3.0 || *r.Rating > 5.0 {
			t.Fatalf("rating out of range: %+v", r.Rating)
		}
		if r.ReviewCount < 10 || r.ReviewCount > 1000 {
			t.Fatalf("review count out of range: %d", r.ReviewCount)
		}
		if r.Currency != "USD" {
			t.Fatalf("unexpected currency: %s", r.Currency)
		}
		if !strings.HasPrefix(r.ProductID, "mock_") {
			t.Fatalf("unexpected product id: %s", r.ProductID)
		}
		if r.SearchQuery != "organic peanut butter" {
			t.Fatalf("unexpected search query: %s", r.SearchQuery)
		}
	}
}

func TestMockFetcher_CancelledContext(t *testing.T) {
	f := NewMockFetcherWithSeed(10, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Fetch(ctx, "tea", 5); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
