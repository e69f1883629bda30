package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealhub_http_requests_total",
		Help: "HTTP requests served, by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealhub_http_request_duration_seconds",
		Help:    "Latency of HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// LoginAttempts counts login attempts by outcome (success, invalid, error).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealhub_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	// DealEvents counts deal lifecycle operations (created, updated, deleted).
	DealEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealhub_deal_operations_total",
		Help: "Deal create, update and delete operations.",
	}, []string{"operation"})

	// ImagesStored counts images handed to the image store, by strategy.
	ImagesStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealhub_images_stored_total",
		Help: "Images written to the image store.",
	}, []string{"strategy"})
)

// Middleware records request count and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		// Fiber reuses the request buffers, and the registry keeps label values.
		method := utils.CopyString(c.Method())
		route := utils.CopyString(c.Route().Path)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}
