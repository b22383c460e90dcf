package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// 搜索请求字段约束。
const (
	maxQueryLength = 255
	minMaxResults  = 1
	maxMaxResults  = 50
)

// searchRequest 搜索接口的请求体。
//
// MaxResults 使用指针以区分「未提供」与显式传 0。
type searchRequest struct {
	Query      string `json:"query"`
	MaxResults *int   `json:"max_results"`
}

// searchResponse 搜索接口的成功响应。
type searchResponse struct {
	Status    string                `json:"status"`
	Cached    bool                  `json:"cached"`
	Query     string                `json:"query"`
	Results   []model.ProductResult `json:"results"`
	Timestamp string                `json:"timestamp"`
}

// validate 校验请求并返回 (trimmed query, max_results, 字段错误表)。
//
// 任何校验失败都发生在副作用之前。
func (r *searchRequest) validate(defaultMax int) (string, int, map[string]string) {
	errs := map[string]string{}

	query := strings.TrimSpace(r.Query)
	if query == "" {
		errs["query"] = "This field is required."
	} else if utf8.RuneCountInString(query) > maxQueryLength {
		// 按字符数而不是字节数限制，多字节查询不受影响
		errs["query"] = "Ensure this field has no more than 255 characters."
	}

	maxResults := defaultMax
	if r.MaxResults != nil {
		maxResults = *r.MaxResults
	}
	if maxResults < minMaxResults {
		errs["max_results"] = "Ensure this value is greater than or equal to 1."
	} else if maxResults > maxMaxResults {
		errs["max_results"] = "Ensure this value is less than or equal to 50."
	}

	if len(errs) > 0 {
		return "", 0, errs
	}
	return query, maxResults, nil
}

// handleSearch 处理商品搜索请求。
//
// POST /api/search/
//
// 查找顺序: Redis 缓存 -> 商品表 -> 模拟抓取，任一层命中即返回。
// 到达抓取层的每次调用都会产生恰好一条搜索历史记录。
func (s *Server) handleSearch(c *gin.Context) {
	start := time.Now()

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"errors": gin.H{"body": "Invalid JSON body."},
		})
		return
	}

	query, maxResults, fieldErrs := req.validate(s.cfg.App.DefaultMaxResults)
	if fieldErrs != nil {
		metrics.SearchRequestsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"errors": fieldErrs,
		})
		return
	}

	ctx := c.Request.Context()

	// 1. 查 Redis 缓存。缓存故障按未命中处理，不影响搜索链路；
	//    Redis 不可用时退化为读持久化快照。
	cached, hit, err := s.resultCache.Get(ctx, query, maxResults)
	if err != nil {
		s.logger.Warn("result cache get failed", slog.String("query", query), slog.String("error", err.Error()))
		metrics.CacheErrorsTotal.WithLabelValues("redis").Inc()
		cached, hit = s.lookupSnapshot(c, query, maxResults)
	}
	if hit {
		metrics.SearchRequestsTotal.WithLabelValues("cache_hit").Inc()
		metrics.SearchDurationSeconds.Observe(time.Since(start).Seconds())
		s.respondSearch(c, true, query, cached)
		return
	}

	// 2. 查商品表中已有的结果。
	products, err := s.products.FindByQuery(ctx, query, maxResults)
	if err != nil {
		s.logger.Error("find products failed", slog.String("query", query), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Internal server error",
		})
		return
	}
	if len(products) > 0 {
		results := toResults(products)
		s.populateCache(c, query, maxResults, results)
		metrics.SearchRequestsTotal.WithLabelValues("db_hit").Inc()
		metrics.SearchDurationSeconds.Observe(time.Since(start).Seconds())
		s.respondSearch(c, false, query, results)
		return
	}

	// 3. 没有任何已知结果，记录搜索历史并调用抓取器。
	entry, err := s.history.Create(ctx, query)
	if err != nil {
		s.logger.Error("create search history failed", slog.String("query", query), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Internal server error",
		})
		return
	}

	// response_time 只统计抓取本身，入库耗时不计入
	fetchStart := time.Now()
	fetched, err := s.fetcher.Fetch(ctx, query, maxResults)
	fetchElapsed := time.Since(fetchStart)
	if err != nil {
		s.failSearch(c, entry, query, err)
		return
	}

	if err := s.products.UpsertAll(ctx, query, fetched); err != nil {
		s.failSearch(c, entry, query, err)
		return
	}

	if err := s.history.MarkCompleted(ctx, entry, uint(len(fetched)), fetchElapsed); err != nil {
		// 终态转移失败不影响已经入库的结果，只记录
		s.logger.Warn("mark search completed failed",
			slog.Uint64("history_id", uint64(entry.ID)),
			slog.String("error", err.Error()))
	}

	// 持久化快照，失败只记录，不影响响应
	if err := s.snapshots.Save(ctx, query, fetched, s.cfg.App.SnapshotTTL); err != nil {
		s.logger.Warn("save result snapshot failed", slog.String("query", query), slog.String("error", err.Error()))
		metrics.CacheErrorsTotal.WithLabelValues("snapshot").Inc()
	}

	// 重新查询商品表，保证响应与入库后的数据一致
	products, err = s.products.FindByQuery(ctx, query, maxResults)
	if err != nil {
		s.logger.Error("reload products failed", slog.String("query", query), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Internal server error",
		})
		return
	}
	results := toResults(products)
	s.populateCache(c, query, maxResults, results)

	metrics.SearchRequestsTotal.WithLabelValues("fetched").Inc()
	metrics.SearchDurationSeconds.Observe(time.Since(start).Seconds())
	s.respondSearch(c, false, query, results)
}

// failSearch 将历史记录标记为 failed 并返回通用的内部错误响应。
//
// 原始错误只进日志与历史记录，不返回给调用方。
func (s *Server) failSearch(c *gin.Context, entry *model.SearchHistory, query string, cause error) {
	s.logger.Error("fetch and persist failed", slog.String("query", query), slog.String("error", cause.Error()))
	metrics.FetchFailuresTotal.Inc()
	metrics.SearchRequestsTotal.WithLabelValues("failed").Inc()

	if err := s.history.MarkFailed(c.Request.Context(), entry, cause.Error()); err != nil {
		s.logger.Warn("mark search failed failed",
			slog.Uint64("history_id", uint64(entry.ID)),
			slog.String("error", err.Error()))
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"status":  "error",
		"message": "Failed to fetch product data",
	})
}

// lookupSnapshot 在 Redis 故障时读取持久化快照，结果截断到 maxResults。
//
// 快照故障同样按未命中处理。
func (s *Server) lookupSnapshot(c *gin.Context, query string, maxResults int) ([]model.ProductResult, bool) {
	results, hit, err := s.snapshots.Lookup(c.Request.Context(), query)
	if err != nil {
		s.logger.Warn("snapshot lookup failed", slog.String("query", query), slog.String("error", err.Error()))
		metrics.CacheErrorsTotal.WithLabelValues("snapshot").Inc()
		return nil, false
	}
	if !hit {
		return nil, false
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, true
}

// populateCache 回填 Redis 缓存，失败只记录。
func (s *Server) populateCache(c *gin.Context, query string, maxResults int, results []model.ProductResult) {
	if err := s.resultCache.Set(c.Request.Context(), query, maxResults, results); err != nil {
		s.logger.Warn("result cache set failed", slog.String("query", query), slog.String("error", err.Error()))
		metrics.CacheErrorsTotal.WithLabelValues("redis").Inc()
	}
}

func (s *Server) respondSearch(c *gin.Context, cached bool, query string, results []model.ProductResult) {
	if results == nil {
		results = []model.ProductResult{}
	}
	c.JSON(http.StatusOK, searchResponse{
		Status:    "success",
		Cached:    cached,
		Query:     query,
		Results:   results,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func toResults(products []model.Product) []model.ProductResult {
	results := make([]model.ProductResult, 0, len(products))
	for i := range products {
		results = append(results, products[i].ToResult())
	}
	return results
}
