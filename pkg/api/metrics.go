package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vjranagit/groundmotion/pkg/storage"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer, store storage.Store) *metrics {
	factory := promauto.With(reg)

	m := &metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "groundmotion_api_requests_total",
			Help: "API requests by route and status code",
		}, []string{"route", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groundmotion_api_request_duration_seconds",
			Help:    "API request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	if cached, ok := store.(*storage.CachedStore); ok {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "groundmotion_record_cache_hits_total",
			Help: "Record loads served from the cache",
		}, func() float64 { return float64(cached.Stats().Hits) })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "groundmotion_record_cache_misses_total",
			Help: "Record loads restored from storage",
		}, func() float64 { return float64(cached.Stats().Misses) })
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "groundmotion_record_cache_hit_ratio",
			Help: "Fraction of record loads served from the cache",
		}, func() float64 { return cached.Stats().HitRate() })
	}

	return m
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrument records request count and latency for a route
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
