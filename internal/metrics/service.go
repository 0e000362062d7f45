package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/elijahthis/pitscrapy/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Fetcher
	PagesFetched  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec
	RobotsBlocked *prometheus.CounterVec

	// Extractor / Persister
	EntriesExtracted *prometheus.CounterVec
	ParseDuration    *prometheus.HistogramVec
	StorageErrors    *prometheus.CounterVec
}

func NewMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		PagesFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitscrapy_pages_fetched_total",
				Help: "Total number of pages fetched successfully",
			},
			[]string{"status_code"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pitscrapy_fetch_duration_seconds",
				Help: "Time taken to download a page",
			},
			[]string{},
		),
		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitscrapy_fetch_errors_total",
				Help: "Total number of fetch errors found",
			},
			[]string{"status_code", "type"},
		),
		RobotsBlocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitscrapy_robots_blocked_total",
				Help: "Number of requests blocked by robots.txt",
			},
			[]string{},
		),

		EntriesExtracted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitscrapy_entries_extracted_total",
				Help: "Total entries extracted per category",
			}, []string{"category"},
		),
		ParseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pitscrapy_parse_duration_seconds",
				Help: "Time taken to parse HTML",
			}, []string{},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pitscrapy_storage_errors_total",
				Help: "Total number of failed artifact writes",
			}, []string{"artifact"}, // category name or "source_code"
		),
	}
}

func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveFetch records the outcome of one fetch.
func (m *PrometheusMetrics) ObserveFetch(started time.Time, res shared.FetchResult, err error) {
	m.FetchDuration.WithLabelValues().Observe(time.Since(started).Seconds())

	if err == nil {
		m.PagesFetched.WithLabelValues(strconv.Itoa(res.StatusCode)).Inc()
		return
	}

	status, kind := "", "network"
	var fe *shared.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Timeout:
			kind = "timeout"
		case fe.StatusCode != 0:
			status, kind = strconv.Itoa(fe.StatusCode), "status"
		}
	}
	m.FetchErrors.WithLabelValues(status, kind).Inc()
}

func (m *PrometheusMetrics) ObserveResults(res shared.Results) {
	for _, c := range shared.AllCategories() {
		m.EntriesExtracted.WithLabelValues(c.Name()).Add(float64(len(res.Get(c))))
	}
}

// StartNewMetricsServer serves /metrics until ctx is done.
func (m *PrometheusMetrics) StartNewMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Msgf("Metrics server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
