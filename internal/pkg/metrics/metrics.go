package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 搜索链路的 Prometheus 指标。
//
// 指标在包加载时创建，任何调用顺序下 Inc/Observe 都可用；
// InitMetrics 只负责注册到默认 Registry。
var (
	// SearchRequestsTotal 按结果分类的搜索请求计数。
	// outcome: cache_hit / db_hit / fetched / failed / invalid
	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartshopper_search_requests_total",
		Help: "Total search requests by outcome.",
	}, []string{"outcome"})

	// CacheErrorsTotal 缓存子系统故障计数（按 layer: redis / snapshot）。
	CacheErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smartshopper_cache_errors_total",
		Help: "Cache subsystem failures swallowed as cache misses.",
	}, []string{"layer"})

	// FetchFailuresTotal 抓取或入库失败计数。
	FetchFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartshopper_fetch_failures_total",
		Help: "Failed fetch-and-persist attempts.",
	})

	// RateLimitRejectedTotal 被限流拒绝的请求计数。
	RateLimitRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartshopper_ratelimit_rejected_total",
		Help: "Search requests rejected by the rate limiter.",
	})

	// SearchDurationSeconds 搜索请求端到端耗时。
	SearchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartshopper_search_duration_seconds",
		Help:    "End-to-end latency of search requests.",
		Buckets: prometheus.DefBuckets,
	})
)

var registerOnce sync.Once

// InitMetrics 将所有指标注册到默认 Registry。重复调用是安全的（只注册一次）。
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			CacheErrorsTotal,
			FetchFailuresTotal,
			RateLimitRejectedTotal,
			SearchDurationSeconds,
		)
	})
}
