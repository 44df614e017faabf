package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crowdedcot",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of positioning endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crowdedcot",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by positioning endpoint",
		},
		[]string{"endpoint"},
	)

	APIThrottled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crowdedcot",
			Subsystem: "api",
			Name:      "throttled_total",
			Help:      "Requests rejected by the per-client rate limiter",
		},
		[]string{"endpoint"},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, APIThrottled)
	})
}

// Observe records one request to endpoint that started at start.
func Observe(endpoint string, start time.Time, err error) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		APIErrors.WithLabelValues(endpoint).Inc()
	}
}
