package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	healthStatusOK = "ok"

	metricsReadTimeout = 10 * time.Second
)

// PrometheusHandler creates a Prometheus metrics exporter backed by an OTel
// MeterProvider and returns an [http.Handler] that serves the /metrics
// scrape endpoint. Each call creates an independent Prometheus registry to
// avoid collector conflicts when called multiple times.
func PrometheusHandler() (http.Handler, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(
		promexporter.WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	// Attach the exporter as a reader to a MeterProvider so OTel instruments
	// are collected. Without this the exporter has no metrics source.
	_ = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// HealthHandler returns an [http.Handler] for liveness checks at /healthz.
// It always returns HTTP 200 with {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)

		data, err := json.Marshal(map[string]string{"status": healthStatusOK})
		if err != nil {
			return
		}

		_, _ = rw.Write(data)
	})
}

// ServeMetrics starts an HTTP server on addr exposing /metrics and /healthz
// and returns a shutdown function. A long-running corpus build can then be
// scraped while it works.
func ServeMetrics(addr string, logger *slog.Logger) (func(ctx context.Context) error, error) {
	promHandler, err := PrometheusHandler()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promHandler)
	mux.Handle("/healthz", HealthHandler())

	server := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: metricsReadTimeout,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			// The pipeline keeps running without a scrape endpoint.
			logger.Warn("metrics server stopped", "error", serveErr)
		}
	}()

	return server.Shutdown, nil
}
