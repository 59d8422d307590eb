package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Playback ingestion outcomes.
const (
	PlaybackStored    = "stored"
	PlaybackDuplicate = "duplicate"
)

var (
	registerOnce sync.Once

	PlaybackIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_playback_ingested_total",
		Help: "Playback reports processed, by outcome.",
	}, []string{"result"})

	LiveMonitorTVs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "signage_live_monitor_tvs",
		Help: "Monitored TVs in the last live-monitor snapshot, by state.",
	}, []string{"state"})

	ReportBuildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signage_report_build_seconds",
		Help:    "Time spent building analytics reports.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})

	QueueJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signage_queue_jobs_total",
		Help: "Playback batch jobs handled by the ingestor, by outcome.",
	}, []string{"result"})

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})

	CircuitBreakerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_requests_total",
		Help: "Calls through a circuit breaker, by result.",
	}, []string{"name", "result"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of calls to external systems.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Calls to external systems.",
	}, []string{"component", "operation", "target", "status"})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served by the API.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of HTTP requests served by the API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "HTTP requests currently being served.",
	})
)

// MustRegister registers the package collectors once.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			PlaybackIngested,
			LiveMonitorTVs,
			ReportBuildSeconds,
			QueueJobs,
			CircuitBreakerState,
			CircuitBreakerRequests,
			NetworkRequestDuration,
			NetworkRequestTotal,
			httpRequestsTotal,
			httpRequestDuration,
			httpRequestsInFlight,
		)
	})
}

// StartServer serves /metrics on addr until ctx is done.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest records duration and status of a call to an external system.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObservePlayback counts one processed playback report.
func ObservePlayback(result string) {
	PlaybackIngested.WithLabelValues(result).Inc()
}

// ObserveReport records how long building a report took.
func ObserveReport(report string, start time.Time) {
	ReportBuildSeconds.WithLabelValues(report).Observe(time.Since(start).Seconds())
}

// SetLiveMonitor publishes the latest live-monitor counts.
func SetLiveMonitor(playing, idle int) {
	LiveMonitorTVs.WithLabelValues("playing").Set(float64(playing))
	LiveMonitorTVs.WithLabelValues("idle").Set(float64(idle))
}

// Middleware instruments chi routes. The route pattern is used as label to keep
// cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}
