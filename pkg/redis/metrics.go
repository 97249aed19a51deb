package redis

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors by method. Missing keys are not errors.",
		},
		[]string{"method"},
	)
	redisRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// MetricsClient decorates a KV with Prometheus metrics.
type MetricsClient struct {
	next KV
}

var _ KV = (*MetricsClient)(nil)

// NewMetricsClient creates an instrumented KV.
func NewMetricsClient(next KV) *MetricsClient {
	return &MetricsClient{next: next}
}

// Get instruments KV.Get.
func (m *MetricsClient) Get(ctx context.Context, key string) (string, error) {
	var result string
	err := observe("get", func() error {
		var err error
		result, err = m.next.Get(ctx, key)
		return err
	})
	return result, err
}

// Set instruments KV.Set.
func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return observe("set", func() error {
		return m.next.Set(ctx, key, value, ttl)
	})
}

// Delete instruments KV.Delete.
func (m *MetricsClient) Delete(ctx context.Context, key string) error {
	return observe("delete", func() error {
		return m.next.Delete(ctx, key)
	})
}

func observe(method string, fn func() error) error {
	timer := prometheus.NewTimer(redisRequestDuration.WithLabelValues(method))
	err := fn()
	timer.ObserveDuration()

	redisRequestsTotal.WithLabelValues(method).Inc()
	if err != nil && !errors.Is(err, ErrNotFound) {
		redisErrorsTotal.WithLabelValues(method).Inc()
	}
	return err
}
