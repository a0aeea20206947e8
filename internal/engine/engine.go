// Package engine sequences a crawl of one target: walk the listing pages for
// route links, scrape every route's trips and hand each batch to the sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/automation"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/config"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/observability"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/scraper"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/storage"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle    State = 0
	StateRunning State = 1
	StateStopped State = 2
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Summary reports what one Run did.
type Summary struct {
	Target     string
	Discovered int
	Duplicates int
	Resumed    int
	Scraped    int
	Empty      int
	Persisted  int
	Failed     int
	Trips      int
	Elapsed    time.Duration
}

type runCounters struct {
	scraped, empty, persisted, failed, trips atomic.Int64
}

// Engine is the crawl orchestrator for a single target.
type Engine struct {
	target  config.TargetConfig
	crawl   config.CrawlConfig
	factory browser.Factory
	sink    storage.Sink
	metrics *observability.Metrics
	logger  *slog.Logger

	paginator  *automation.Paginator
	routes     *scraper.RouteScraper
	trips      *scraper.TripScraper
	checkpoint *CheckpointManager
	limiter    *rate.Limiter

	state atomic.Int32
}

// New compiles a target into an engine. Malformed locators or cleaners are
// reported here, before any browser work.
func New(target config.TargetConfig, crawl config.CrawlConfig, factory browser.Factory, sink storage.Sink, metrics *observability.Metrics, logger *slog.Logger) (*Engine, error) {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	logger = logger.With("component", "engine", "target", target.Name)

	locators := map[string]string{
		"listing.route_container": target.Listing.RouteContainer,
		"listing.route_link":      target.Listing.RouteLink,
		"listing.page_tab":        target.Listing.PageTab,
		"listing.active_page":     target.Listing.ActivePage,
		"reveal.toggle":           target.Reveal.Toggle,
	}
	parsed := make(map[string]browser.Locator, len(locators))
	for key, raw := range locators {
		loc, err := browser.ParseLocator(raw)
		if err != nil {
			return nil, fmt.Errorf("target %s: %s: %w", target.Name, key, err)
		}
		parsed[key] = loc
	}

	schema, err := scraper.CompileSchema(target)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target.Name, err)
	}

	e := &Engine{
		target:  target,
		crawl:   crawl,
		factory: factory,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	if crawl.Politeness > 0 {
		e.limiter = rate.NewLimiter(rate.Every(crawl.Politeness), 1)
	}

	e.paginator = automation.NewPaginator(automation.PaginationOptions{
		PageTab:      parsed["listing.page_tab"],
		ActivePage:   parsed["listing.active_page"],
		WaitTimeout:  crawl.WaitTimeout,
		PollInterval: crawl.PollInterval,
		SettleDelay:  crawl.SettleDelay,
	}, logger)

	e.routes = scraper.NewRouteScraper(scraper.RouteScraperOptions{
		Container:    parsed["listing.route_container"],
		Link:         parsed["listing.route_link"],
		BaseURL:      target.ListingURL,
		RegionTag:    target.RegionTag,
		WaitTimeout:  crawl.WaitTimeout,
		PollInterval: crawl.PollInterval,
	}, logger)

	revealer := automation.NewRevealer(automation.RevealOptions{
		Toggle:      parsed["reveal.toggle"],
		Order:       target.Reveal.Order,
		SettleDelay: crawl.SettleDelay,
		ScrollDelay: crawl.ScrollDelay,
		MaxScrolls:  crawl.MaxScrolls,
	}, logger)

	e.trips = scraper.NewTripScraper(schema, revealer, scraper.TripScraperOptions{
		WaitTimeout:  crawl.WaitTimeout,
		PollInterval: crawl.PollInterval,
	}, metrics, logger)

	if crawl.CheckpointDir != "" {
		e.checkpoint = NewCheckpointManager(crawl.CheckpointDir, target.Name)
	}
	return e, nil
}

// GetState returns the current engine state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// Run crawls the target once. Only setup failures are returned: the first
// session cannot be created, the listing cannot be opened, or the
// checkpoint cannot be cleared or read. Route-level failures are logged and counted.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return Summary{}, fmt.Errorf("engine is in state %s, cannot run", e.GetState())
	}
	defer e.state.Store(int32(StateStopped))

	start := time.Now()
	summary := Summary{Target: e.target.Name}

	if e.crawl.Fresh && e.checkpoint != nil {
		if err := e.checkpoint.Clean(); err != nil {
			return summary, fmt.Errorf("clean checkpoint %s: %w", e.target.Name, err)
		}
		e.logger.Info("checkpoint cleared", "path", e.checkpoint.Path())
	}

	if e.crawl.Resume && e.checkpoint != nil {
		if err := e.checkpoint.Load(); err != nil {
			return summary, fmt.Errorf("resume %s: %w", e.target.Name, err)
		}
		e.logger.Info("checkpoint loaded", "path", e.checkpoint.Path(), "completed", e.checkpoint.Len())
	}

	session, err := e.factory.NewSession(ctx)
	if err != nil {
		return summary, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	e.logger.Info("crawl starting",
		"listing", e.target.ListingURL,
		"region", e.target.RegionTag,
		"max_pages", e.target.MaxPages,
		"concurrency", e.crawl.Concurrency,
	)

	if err := session.Navigate(ctx, e.target.ListingURL); err != nil {
		return summary, fmt.Errorf("open listing: %w", err)
	}

	links := e.paginator.Walk(ctx, session, e.target.StartPage, e.target.MaxPages,
		func(ctx context.Context, _ int) []types.RouteLink {
			got := e.routes.Scrape(ctx, session)
			e.metrics.ListingPages.Add(1)
			return got
		})
	summary.Discovered = len(links)
	e.metrics.RoutesDiscovered.Add(int64(len(links)))

	links, summary.Duplicates, summary.Resumed = e.filter(links)

	var counters runCounters
	e.scrapeRoutes(ctx, session, links, &counters)

	summary.Scraped = int(counters.scraped.Load())
	summary.Empty = int(counters.empty.Load())
	summary.Persisted = int(counters.persisted.Load())
	summary.Failed = int(counters.failed.Load())
	summary.Trips = int(counters.trips.Load())
	summary.Elapsed = time.Since(start)

	e.logger.Info("crawl finished",
		"discovered", summary.Discovered,
		"duplicates", summary.Duplicates,
		"resumed", summary.Resumed,
		"scraped", summary.Scraped,
		"empty", summary.Empty,
		"persisted", summary.Persisted,
		"failed", summary.Failed,
		"trips", summary.Trips,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
	)
	return summary, nil
}

// filter drops duplicate routes and routes completed by an earlier run,
// keeping first-seen order.
func (e *Engine) filter(links []types.RouteLink) (kept []types.RouteLink, duplicates, resumed int) {
	var dedup *Deduplicator
	if e.crawl.DedupRoutes {
		dedup = NewDeduplicator(len(links))
	}
	skipDone := e.crawl.Resume && e.checkpoint != nil

	kept = make([]types.RouteLink, 0, len(links))
	for _, link := range links {
		if dedup != nil && !dedup.FirstSeen(link.URL) {
			duplicates++
			continue
		}
		if skipDone && e.checkpoint.IsDone(link.URL) {
			resumed++
			continue
		}
		kept = append(kept, link)
	}

	e.metrics.RoutesDuplicate.Add(int64(duplicates))
	e.metrics.RoutesResumed.Add(int64(resumed))
	if duplicates > 0 || resumed > 0 {
		unique := len(links)
		if dedup != nil {
			unique = dedup.Count()
		}
		e.logger.Info("routes filtered", "unique", unique, "duplicates", duplicates, "resumed", resumed, "remaining", len(kept))
	}
	return kept, duplicates, resumed
}

// scrapeRoutes fans routes out to the workers. Worker 0 reuses the listing
// session; every other worker owns a session of its own.
func (e *Engine) scrapeRoutes(ctx context.Context, first browser.Session, links []types.RouteLink, counters *runCounters) {
	if len(links) == 0 {
		return
	}

	workers := e.crawl.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(links) {
		workers = len(links)
	}

	jobs := make(chan types.RouteLink)
	var g errgroup.Group

	for i := 0; i < workers; i++ {
		i := i // per-iteration copy; go1.21 loop vars are shared across iterations
		g.Go(func() error {
			logger := e.logger.With("worker_id", i)
			session := first
			if i > 0 {
				s, err := e.factory.NewSession(ctx)
				if err != nil {
					logger.Warn("worker session unavailable", "error", err)
					return nil
				}
				defer s.Close()
				session = s
			}
			for link := range jobs {
				e.scrapeRoute(ctx, session, link, counters)
			}
			return nil
		})
	}

feed:
	for _, link := range links {
		select {
		case <-ctx.Done():
			e.logger.Warn("crawl cancelled", "error", ctx.Err())
			break feed
		case jobs <- link:
		}
	}
	close(jobs)
	_ = g.Wait()
}

func (e *Engine) scrapeRoute(ctx context.Context, session browser.Session, link types.RouteLink, counters *runCounters) {
	logger := e.logger.With("route", link.Name)

	if err := e.limiter.Wait(ctx); err != nil {
		logger.Debug("route skipped", "error", err)
		return
	}

	e.metrics.ActiveWorkers.Add(1)
	trips := e.trips.Scrape(ctx, session, link)
	e.metrics.ActiveWorkers.Add(-1)

	counters.scraped.Add(1)
	e.metrics.RoutesScraped.Add(1)

	if len(trips) == 0 {
		counters.empty.Add(1)
		e.metrics.RoutesEmpty.Add(1)
		logger.Info("no trips for route", "url", link.URL)
		return
	}

	batch := types.NewRouteBatch(link, trips)
	if err := e.sink.Persist(ctx, batch); err != nil {
		counters.failed.Add(1)
		e.metrics.BatchesFailed.Add(1)
		var perr *types.PersistError
		if errors.As(err, &perr) {
			logger.Error("batch rejected", "backend", perr.Backend, "trips", batch.Len(), "error", perr.Err)
		} else {
			logger.Error("batch rejected", "trips", batch.Len(), "error", err)
		}
		return
	}

	counters.persisted.Add(1)
	counters.trips.Add(int64(batch.Len()))
	e.metrics.BatchesPersisted.Add(1)
	logger.Info("route persisted", "trips", batch.Len())

	if e.checkpoint != nil {
		if err := e.checkpoint.MarkDone(link.URL); err != nil {
			logger.Warn("checkpoint save failed", "error", err)
		}
	}
}
