package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/store"

	"github.com/gin-gonic/gin"
)

// historyEntry 搜索历史接口的响应条目。
type historyEntry struct {
	ID           uint       `json:"id"`
	Query        string     `json:"query"`
	Status       string     `json:"status"`
	ResultsCount uint       `json:"results_count"`
	ErrorMessage *string    `json:"error_message"`
	ResponseTime *float64   `json:"response_time"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// handleProductDetail 按源平台商品 ID 返回商品详情。
//
// GET /api/products/:product_id/
func (s *Server) handleProductDetail(c *gin.Context) {
	productID := c.Param("product_id")

	product, err := s.products.FindByProductID(c.Request.Context(), productID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Product not found",
		})
		return
	}
	if err != nil {
		s.logger.Error("load product failed", slog.String("product_id", productID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"product": product.ToResult(),
	})
}

// handleSearchHistory 返回最近的搜索历史，最新的在前。
//
// GET /api/search/history/
func (s *Server) handleSearchHistory(c *gin.Context) {
	entries, err := s.history.Recent(c.Request.Context(), s.cfg.App.HistoryPageSize)
	if err != nil {
		s.logger.Error("list search history failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Internal server error",
		})
		return
	}

	results := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		results = append(results, historyEntry{
			ID:           e.ID,
			Query:        e.Query,
			Status:       e.Status,
			ResultsCount: e.ResultsCount,
			ErrorMessage: e.ErrorMessage,
			ResponseTime: e.ResponseTime,
			CreatedAt:    e.CreatedAt,
			CompletedAt:  e.CompletedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"count":   len(results),
		"results": results,
	})
}
