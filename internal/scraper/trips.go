package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/automation"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/observability"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// TripScraperOptions bounds the wait for trip items to render.
type TripScraperOptions struct {
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// TripScraper extracts every trip offered on a route page.
type TripScraper struct {
	schema   Schema
	revealer *automation.Revealer
	opts     TripScraperOptions
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTripScraper creates a TripScraper.
func NewTripScraper(schema Schema, revealer *automation.Revealer, opts TripScraperOptions, metrics *observability.Metrics, logger *slog.Logger) *TripScraper {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &TripScraper{
		schema:   schema,
		revealer: revealer,
		opts:     opts,
		metrics:  metrics,
		logger:   logger.With("component", "trip_scraper"),
	}
}

// Scrape opens the route page, reveals every trip and extracts one record
// per trip item in document order. Items missing a required field are
// skipped. Navigation failure or a page without items yields no records.
func (t *TripScraper) Scrape(ctx context.Context, s browser.Session, route types.RouteLink) []types.TripRecord {
	logger := t.logger.With("route", route.Name)

	if err := s.Navigate(ctx, route.URL); err != nil {
		logger.Warn("route page failed to load", "error", err)
		return nil
	}

	scrolls := t.revealer.Reveal(ctx, s)

	found := browser.WaitUntil(ctx, t.opts.WaitTimeout, t.opts.PollInterval, func(wctx context.Context) bool {
		return len(s.FindAll(wctx, t.schema.Item)) > 0
	})
	if !found {
		logger.Warn("no trip items rendered", "error", types.ErrNoItems, "timeout", t.opts.WaitTimeout)
		return nil
	}

	// Nodes are read after the wait, so they must come from ctx rather than
	// the wait's own context.
	items := s.FindAll(ctx, t.schema.Item)

	trips := make([]types.TripRecord, 0, len(items))
	for i, item := range items {
		trip, err := t.schema.Trip(item)
		if err != nil {
			t.metrics.ItemsSkipped.Add(1)
			logger.Warn("trip item skipped", "index", i, "error", err)
			continue
		}
		trips = append(trips, trip)
	}

	t.metrics.TripsExtracted.Add(int64(len(trips)))
	logger.Debug("route scraped", "items", len(items), "trips", len(trips), "scrolls", scrolls)
	return trips
}
