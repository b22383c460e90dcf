package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "smartshopper:search:"

// ResultCache 是按 (规范化关键词, 结果数上限) 存取搜索结果的进程级缓存。
//
// 它与 CachedSearchResult 快照表相互独立：这里是 Redis 中带 TTL 的热缓存，
// 快照表是数据库中的持久化副本。
type ResultCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResultCache 创建结果缓存。ttl 不合法时回退为 1 小时。
func NewResultCache(rdb *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultCache{
		rdb: rdb,
		ttl: ttl,
	}
}

// Get 查询缓存。命中时返回结果与 true，未命中返回 false。
func (c *ResultCache) Get(ctx context.Context, query string, maxResults int) ([]model.ProductResult, bool, error) {
	if c == nil || c.rdb == nil {
		return nil, false, nil
	}
	raw, err := c.rdb.Get(ctx, cacheKey(query, maxResults)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var results []model.ProductResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return results, true, nil
}

// Set 写入缓存，使用构造时配置的 TTL。
func (c *ResultCache) Set(ctx context.Context, query string, maxResults int, results []model.ProductResult) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, cacheKey(query, maxResults), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// NormalizeQuery 对用户输入的搜索词做规范化（去首尾空白并转小写）。
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func cacheKey(query string, maxResults int) string {
	return keyPrefix + NormalizeQuery(query) + ":" + strconv.Itoa(maxResults)
}
