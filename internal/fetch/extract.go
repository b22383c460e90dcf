package fetch

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"

	"github.com/gocolly/colly/v2"
)

var priceRe = regexp.MustCompile(`\$?\s*([\d][\d,]*\.?\d*)`)

// Extractor 从静态商品列表页面提取商品信息。
//
// 搜索主链路使用 MockFetcher；Extractor 演示接入真实数据源时的解析逻辑，
// 页面元素缺失时对应字段留空而不是报错。
type Extractor struct {
	userAgent string
}

// NewExtractor 创建页面解析器。
func NewExtractor() *Extractor {
	return &Extractor{
		userAgent: "Mozilla/5.0 (compatible; smart-shopping-api/1.0)",
	}
}

// Extract 抓取 pageURL 并解析其中的商品卡片（选择器 div.product）。
func (e *Extractor) Extract(ctx context.Context, pageURL, query string, maxResults int) ([]model.ProductResult, error) {
	c := colly.NewCollector(
		colly.UserAgent(e.userAgent),
		colly.MaxDepth(1),
	)
	c.Context = ctx

	now := time.Now()
	var results []model.ProductResult
	c.OnHTML("div.product", func(el *colly.HTMLElement) {
		if maxResults > 0 && len(results) >= maxResults {
			return
		}
		if r := extractTile(el, query, now); r != nil {
			results = append(results, *r)
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	c.Wait()

	return results, nil
}

// extractTile 解析单个商品卡片，名称为空的卡片视为无效。
func extractTile(el *colly.HTMLElement, query string, now time.Time) *model.ProductResult {
	name := strings.TrimSpace(el.ChildText("h3"))
	if name == "" {
		return nil
	}

	result := &model.ProductResult{
		Name:        name,
		Currency:    "USD",
		SearchQuery: query,
		SearchedAt:  now,
	}

	if priceText := strings.TrimSpace(el.ChildText("span.price")); priceText != "" {
		result.PriceText = &priceText
		if price, ok := parsePrice(priceText); ok {
			result.Price = &price
		}
	}

	if store := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(el.ChildText("div.store")), "by")); store != "" {
		result.Store = &store
	}

	if href := el.ChildAttr("a", "href"); href != "" {
		result.URL = el.Request.AbsoluteURL(href)
	}

	if src := el.ChildAttr("img", "src"); src != "" {
		abs := el.Request.AbsoluteURL(src)
		result.ImageURL = &abs
	}

	// 页面上没有稳定 ID，用名称+价格+商店派生一个
	var store string
	if result.Store != nil {
		store = *result.Store
	}
	var price float64
	if result.Price != nil {
		price = *result.Price
	}
	result.ProductID = fmt.Sprintf("page_%d", hashQuery(fmt.Sprintf("%s|%.2f|%s", name, price, store))%0xffffffff)

	return result
}

// parsePrice 从价格文本中提取数值部分。
func parsePrice(text string) (float64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
