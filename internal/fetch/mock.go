package fetch

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"
)

// DefaultFetchCap 单次抓取返回的最大结果数。
const DefaultFetchCap = 10

// 模拟数据使用的固定词表与取值区间。
var (
	mockBrands = []string{"365 Whole Foods", "Kirkland", "Great Value", "365 by Whole Foods Market", "Organic"}
	mockStores = []string{"Walmart", "Amazon", "Target", "Whole Foods", "Costco"}
	mockOunces = []int{8, 12, 16, 24, 32}
)

// MockFetcher 生成模拟商品数据，是真实外部数据源的占位实现。
//
// 它不做重试也不做限速；生成的 ProductID 由关键词哈希与序号派生，
// 因此同一关键词多次抓取得到相同的 ID 集合（Upsert 幂等的前提）。
type MockFetcher struct {
	cap int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockFetcher 创建模拟抓取器。cap 不合法时使用 DefaultFetchCap。
func NewMockFetcher(cap int) *MockFetcher {
	if cap <= 0 {
		cap = DefaultFetchCap
	}
	return &MockFetcher{
		cap: cap,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewMockFetcherWithSeed 创建使用固定随机种子的抓取器，用于测试。
func NewMockFetcherWithSeed(cap int, seed int64) *MockFetcher {
	f := NewMockFetcher(cap)
	f.rng = rand.New(rand.NewSource(seed))
	return f
}

// Fetch 为关键词生成最多 min(maxResults, cap) 条模拟商品。
func (f *MockFetcher) Fetch(ctx context.Context, query string, maxResults int) ([]model.ProductResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	count := maxResults
	if count > f.cap {
		count = f.cap
	}
	if count < 0 {
		count = 0
	}

	queryHash := hashQuery(query) % 1000000
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	results := make([]model.ProductResult, 0, count)
	for i := 0; i < count; i++ {
		brand := mockBrands[f.rng.Intn(len(mockBrands))]
		store := mockStores[f.rng.Intn(len(mockStores))]
		price := round2(2.99 + f.rng.Float64()*(19.99-2.99))
		priceText := fmt.Sprintf("$%.2f", price)
		weight := fmt.Sprintf("%d oz", mockOunces[f.rng.Intn(len(mockOunces))])
		rating := round1(3.0 + f.rng.Float64()*2.0)
		reviewCount := uint(10 + f.rng.Intn(991))
		imageURL := fmt.Sprintf("https://via.placeholder.com/150?text=%s", strings.ReplaceAll(query, " ", "+"))

		results = append(results, model.ProductResult{
			ProductID:   fmt.Sprintf("mock_%d_%d", queryHash, i),
			Name:        brand + " " + query,
			Brand:       &brand,
			Price:       &price,
			Currency:    "USD",
			PriceText:   &priceText,
			Weight:      &weight,
			Store:       &store,
			Rating:      &rating,
			ReviewCount: reviewCount,
			URL:         fmt.Sprintf("https://example.com/product/%d_%d", queryHash, i),
			ImageURL:    &imageURL,
			SearchQuery: query,
			SearchedAt:  now,
		})
	}

	return results, nil
}

func hashQuery(query string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(query))
	return h.Sum64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
