package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for a crawl.
type Metrics struct {
	// Listing metrics
	ListingPages     atomic.Int64
	RoutesDiscovered atomic.Int64
	RoutesDuplicate  atomic.Int64
	RoutesResumed    atomic.Int64

	// Route metrics
	RoutesScraped atomic.Int64
	RoutesEmpty   atomic.Int64

	// Item metrics
	TripsExtracted atomic.Int64
	ItemsSkipped   atomic.Int64

	// Sink metrics
	BatchesPersisted atomic.Int64
	BatchesFailed    atomic.Int64

	// Worker metrics
	ActiveWorkers atomic.Int32

	startTime time.Time
	logger    *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		startTime: time.Now(),
		logger:    logger.With("component", "metrics"),
	}
}

type metric struct {
	name  string
	help  string
	kind  string
	value int64
}

func (m *Metrics) collect() []metric {
	return []metric{
		{"redbus_listing_pages_total", "Listing pages scraped", "counter", m.ListingPages.Load()},
		{"redbus_routes_discovered_total", "Route links harvested from listings", "counter", m.RoutesDiscovered.Load()},
		{"redbus_routes_duplicate_total", "Route links dropped as duplicates", "counter", m.RoutesDuplicate.Load()},
		{"redbus_routes_resumed_total", "Route links skipped because a checkpoint marks them done", "counter", m.RoutesResumed.Load()},
		{"redbus_routes_scraped_total", "Route pages scraped", "counter", m.RoutesScraped.Load()},
		{"redbus_routes_empty_total", "Route pages that yielded no trips", "counter", m.RoutesEmpty.Load()},
		{"redbus_trips_extracted_total", "Trip records extracted", "counter", m.TripsExtracted.Load()},
		{"redbus_items_skipped_total", "Trip items skipped for a missing required field", "counter", m.ItemsSkipped.Load()},
		{"redbus_batches_persisted_total", "Route batches persisted", "counter", m.BatchesPersisted.Load()},
		{"redbus_batches_failed_total", "Route batches rejected by the sink", "counter", m.BatchesFailed.Load()},
		{"redbus_active_workers", "Route workers currently scraping", "gauge", int64(m.ActiveWorkers.Load())},
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	for _, metric := range m.collect() {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Handler returns the metrics and health routes.
func (m *Metrics) Handler(path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return mux
}

// StartServer serves the metrics endpoint until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(path),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// Snapshot returns all metrics as a map keyed by short name.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"listing_pages":     m.ListingPages.Load(),
		"routes_discovered": m.RoutesDiscovered.Load(),
		"routes_duplicate":  m.RoutesDuplicate.Load(),
		"routes_resumed":    m.RoutesResumed.Load(),
		"routes_scraped":    m.RoutesScraped.Load(),
		"routes_empty":      m.RoutesEmpty.Load(),
		"trips_extracted":   m.TripsExtracted.Load(),
		"items_skipped":     m.ItemsSkipped.Load(),
		"batches_persisted": m.BatchesPersisted.Load(),
		"batches_failed":    m.BatchesFailed.Load(),
	}
}

// LogSummary writes the snapshot as one structured log line.
func (m *Metrics) LogSummary() {
	snap := m.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys)*2+2)
	for _, k := range keys {
		args = append(args, k, snap[k])
	}
	args = append(args, "elapsed", time.Since(m.startTime).Round(time.Millisecond))
	m.logger.Info("crawl metrics", args...)
}
