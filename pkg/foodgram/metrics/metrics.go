// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foodgram_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foodgram_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	RecipesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_recipes_written_total",
			Help: "Recipe writes by operation (create, replace, delete)",
		},
		[]string{"op"},
	)

	RelationChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_relation_changes_total",
			Help: "Favorite, shopping cart and subscription changes",
		},
		[]string{"kind", "op"},
	)

	ShoppingListDownloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodgram_shopping_list_downloads_total",
			Help: "Shopping list downloads",
		},
	)

	IngredientsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodgram_ingredients_imported_total",
			Help: "Ingredients created by catalog imports",
		},
	)
)

// RecordRelation counts a relation change; kind is favorite, shopping_cart or subscription.
func RecordRelation(kind, op string) {
	RelationChanges.WithLabelValues(kind, op).Inc()
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		HTTPInFlight.Inc()
		defer HTTPInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
