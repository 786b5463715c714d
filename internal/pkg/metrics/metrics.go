package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	TodoOpsTotal        *prometheus.CounterVec
	ListCacheHitsTotal  prometheus.Counter
	ListCacheMissTotal  prometheus.Counter

	initOnce sync.Once
)

// Init registers all collectors on the default registry. Safe to call more
// than once (tests construct multiple servers).
func Init() {
	initOnce.Do(func() {
		HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapp_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"})

		HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todoapp_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		TodoOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "todoapp_todo_operations_total",
			Help: "Completed todo repository operations by kind.",
		}, []string{"op"})

		ListCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "todoapp_list_cache_hits_total",
			Help: "Todo list responses served from the redis cache.",
		})
		ListCacheMissTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "todoapp_list_cache_misses_total",
			Help: "Todo list requests that fell through to the database.",
		})
	})
}
