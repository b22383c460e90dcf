package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/khushipy/the-smart-shoppers-dilemma/internal/api/middleware"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/cache"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/config"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/fetch"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/model"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/pkg/metrics"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/pkg/ratelimit"
	"github.com/khushipy/the-smart-shoppers-dilemma/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// ResultCache 搜索结果的进程级缓存。
type ResultCache interface {
	Get(ctx context.Context, query string, maxResults int) ([]model.ProductResult, bool, error)
	Set(ctx context.Context, query string, maxResults int, results []model.ProductResult) error
}

// ProductStore 商品记录的读写。
type ProductStore interface {
	UpsertAll(ctx context.Context, query string, results []model.ProductResult) error
	FindByQuery(ctx context.Context, query string, limit int) ([]model.Product, error)
	FindByProductID(ctx context.Context, productID string) (*model.Product, error)
}

// HistoryStore 搜索历史的生命周期管理。
type HistoryStore interface {
	Create(ctx context.Context, query string) (*model.SearchHistory, error)
	MarkCompleted(ctx context.Context, entry *model.SearchHistory, resultsCount uint, elapsed time.Duration) error
	MarkFailed(ctx context.Context, entry *model.SearchHistory, errMsg string) error
	Recent(ctx context.Context, limit int) ([]model.SearchHistory, error)
}

// SnapshotStore 搜索结果快照的持久化。
type SnapshotStore interface {
	Save(ctx context.Context, query string, results []model.ProductResult, ttl time.Duration) error
	Lookup(ctx context.Context, query string) ([]model.ProductResult, bool, error)
}

// Fetcher 外部商品数据源。
type Fetcher interface {
	Fetch(ctx context.Context, query string, maxResults int) ([]model.ProductResult, error)
}

// Server 封装了 API 服务所需的依赖和路由处理。
type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *gorm.DB
	rdb         *redis.Client
	router      *gin.Engine
	resultCache ResultCache
	products    ProductStore
	history     HistoryStore
	snapshots   SnapshotStore
	fetcher     Fetcher
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化缓存、存储、抓取器与 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Product{}, &model.SearchHistory{}, &model.CachedSearchResult{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		rdb:         rdb,
		router:      r,
		resultCache: cache.NewResultCache(rdb, cfg.App.CacheTTL),
		products:    store.NewProductStore(db),
		history:     store.NewHistoryStore(db),
		snapshots:   store.NewSnapshotStore(db),
		fetcher:     fetch.NewMockFetcher(cfg.App.FetchCap),
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleAPIRoot)
	s.router.GET("/health/", s.handleHealth)

	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := ratelimit.NewRedisRateLimiter(s.rdb, "smartshopper:ratelimit:search", s.cfg.App.RateLimit, s.cfg.App.RateBurst)

	api := s.router.Group("/api")
	api.POST("/search/", middleware.RateLimit(limiter, s.logger), s.handleSearch)
	api.GET("/search/history/", s.handleSearchHistory)
	api.GET("/products/:product_id/", s.handleProductDetail)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   s.cfg.App.ServiceName,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleAPIRoot 返回可用接口的静态描述。
func (s *Server) handleAPIRoot(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	baseURL := scheme + "://" + c.Request.Host

	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to Smart Shopping API",
		"endpoints": gin.H{
			"search": gin.H{
				"url":         baseURL + "/api/search/",
				"method":      http.MethodPost,
				"description": "Search for products",
				"example_request": gin.H{
					"query":       "organic peanut butter",
					"max_results": 5,
				},
			},
			"product_detail": gin.H{
				"url":         baseURL + "/api/products/{product_id}/",
				"method":      http.MethodGet,
				"description": "Get product details by ID",
			},
			"search_history": gin.H{
				"url":         baseURL + "/api/search/history/",
				"method":      http.MethodGet,
				"description": "View search history",
			},
			"health_check": gin.H{
				"url":         baseURL + "/health/",
				"method":      http.MethodGet,
				"description": "Check API health status",
			},
		},
		"documentation": "For more details, please refer to the API documentation.",
	})
}
