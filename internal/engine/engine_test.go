package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/config"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/observability"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	host        = "https://example.test"
	listingBase = host + "/listing"
)

// recordingSink keeps every batch it accepts and rejects routes in failFor.
type recordingSink struct {
	mu       sync.Mutex
	batches  []types.RouteBatch
	attempts []string
	failFor  map[string]bool
}

func (s *recordingSink) Persist(_ context.Context, b types.RouteBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, b.Route.Name)
	if s.failFor[b.Route.Name] {
		return &types.PersistError{Backend: "test", Route: b.Route.Name, Err: errors.New("deadlock")}
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *recordingSink) Close() error { return nil }
func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) routes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.batches))
	for i, b := range s.batches {
		names[i] = b.Route.Name
	}
	return names
}

func pageURL(page int) string {
	if page == 1 {
		return listingBase
	}
	return fmt.Sprintf("%s?page=%d", listingBase, page)
}

// listingPage renders a listing page with the given route slugs and tabs
// for pages 1..tabs.
func listingPage(page, tabs int, slugs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, slug := range slugs {
		fmt.Fprintf(&b, `<div class="route_details"><a class="route" href="/route/%s">Route %s</a></div>`, slug, slug)
	}
	b.WriteString(`<div class="DC_117_paginationTable">`)
	for i := 1; i <= tabs; i++ {
		class := "DC_117_pageTabs"
		if i == page {
			class += " DC_117_pageActive"
		}
		fmt.Fprintf(&b, `<div class="%s" data-href="%s">%d</div>`, class, pageURL(i), i)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func tripPage(carrier string, items int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="button">View Buses</div>`)
	for i := 0; i < items; i++ {
		fmt.Fprintf(&b, `<div class="bus-item"><div class="travels">%s %d</div><div class="bus-type">Seater</div>`+
			`<div class="dp-time">06:00</div><div class="dur">04h</div><div class="bp-time">10:00</div>`+
			`<div class="fare">INR %d</div><div class="seat-left">%d Seats</div></div>`, carrier, i, 100+i, 20+i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// sitePages builds two listing pages with three routes each plus a route
// page per route.
func sitePages() map[string]string {
	pages := map[string]string{
		pageURL(1): listingPage(1, 2, "1-1", "1-2", "1-3"),
		pageURL(2): listingPage(2, 2, "2-1", "2-2", "2-3"),
	}
	for _, slug := range []string{"1-1", "1-2", "1-3", "2-1", "2-2", "2-3"} {
		pages[host+"/route/"+slug] = tripPage("Carrier "+slug, 2)
	}
	return pages
}

func testTarget() config.TargetConfig {
	t := config.RedbusTarget("test", listingBase, "TEST")
	t.MaxPages = 2
	return t
}

func testCrawl() config.CrawlConfig {
	return config.CrawlConfig{
		Concurrency:  1,
		MaxScrolls:   3,
		WaitTimeout:  100 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		DedupRoutes:  true,
	}
}

func newTestEngine(t *testing.T, pages map[string]string, crawl config.CrawlConfig, sink *recordingSink) *Engine {
	t.Helper()
	e, err := New(testTarget(), crawl, &browser.StaticFactory{Pages: pages}, sink, observability.NewMetrics(testLogger), testLogger)
	require.NoError(t, err)
	return e
}

// --- Run Tests ---

func TestRunPersistsEveryRoute(t *testing.T) {
	sink := &recordingSink{}
	e := newTestEngine(t, sitePages(), testCrawl(), sink)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Discovered)
	assert.Equal(t, 6, summary.Scraped)
	assert.Equal(t, 6, summary.Persisted)
	assert.Equal(t, 12, summary.Trips)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"Route 1-1", "Route 1-2", "Route 1-3", "Route 2-1", "Route 2-2", "Route 2-3"}, sink.routes())

	b := sink.batches[0]
	assert.Equal(t, host+"/route/1-1", b.Route.URL)
	assert.Equal(t, "TEST", b.Route.RegionTag)
	require.Len(t, b.Trips, 2)
	assert.Equal(t, "Carrier 1-1 0", b.Trips[0].CarrierName)
	require.NotNil(t, b.Trips[1].Price)
	assert.InDelta(t, 101, *b.Trips[1].Price, 1e-9)
	assert.Nil(t, b.Trips[0].StarRating)
	assert.Equal(t, StateStopped, e.GetState())
}

func TestRunSinkFailureDoesNotStopCrawl(t *testing.T) {
	sink := &recordingSink{failFor: map[string]bool{"Route 1-1": true}}
	e := newTestEngine(t, sitePages(), testCrawl(), sink)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 5, summary.Persisted)
	assert.Equal(t, "Route 1-1", sink.attempts[0])
	assert.Contains(t, sink.routes(), "Route 1-2")
	assert.Len(t, sink.attempts, 6)
}

func TestRunEmptyRouteIsNotPersisted(t *testing.T) {
	pages := sitePages()
	pages[host+"/route/1-2"] = `<html><body><p>No buses</p></body></html>`
	delete(pages, host+"/route/2-3")

	sink := &recordingSink{}
	e := newTestEngine(t, pages, testCrawl(), sink)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Scraped)
	assert.Equal(t, 2, summary.Empty)
	assert.Equal(t, 4, summary.Persisted)
	assert.NotContains(t, sink.routes(), "Route 1-2")
	assert.NotContains(t, sink.routes(), "Route 2-3")
}

func TestRunDeduplicatesRoutes(t *testing.T) {
	pages := sitePages()
	pages[pageURL(2)] = listingPage(2, 2, "1-1", "2-1", "1-3")

	sink := &recordingSink{}
	e := newTestEngine(t, pages, testCrawl(), sink)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Discovered)
	assert.Equal(t, 2, summary.Duplicates)
	assert.Equal(t, 4, summary.Persisted)
}

func TestRunWithoutDedupKeepsDuplicates(t *testing.T) {
	pages := sitePages()
	pages[pageURL(2)] = listingPage(2, 2, "1-1", "2-1", "1-3")

	crawl := testCrawl()
	crawl.DedupRoutes = false
	sink := &recordingSink{}
	e := newTestEngine(t, pages, crawl, sink)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Duplicates)
	assert.Equal(t, 6, summary.Persisted)
}

func TestRunConcurrentWorkers(t *testing.T) {
	crawl := testCrawl()
	crawl.Concurrency = 3
	sink := &recordingSink{}
	e := newTestEngine(t, sitePages(), crawl, sink)

	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Persisted)
	assert.ElementsMatch(t, []string{"Route 1-1", "Route 1-2", "Route 1-3", "Route 2-1", "Route 2-2", "Route 2-3"}, sink.routes())
}

func TestRunResumeSkipsCompletedRoutes(t *testing.T) {
	crawl := testCrawl()
	crawl.CheckpointDir = t.TempDir()

	first := &recordingSink{failFor: map[string]bool{"Route 2-2": true}}
	_, err := newTestEngine(t, sitePages(), crawl, first).Run(context.Background())
	require.NoError(t, err)

	crawl.Resume = true
	second := &recordingSink{}
	summary, err := newTestEngine(t, sitePages(), crawl, second).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Resumed)
	assert.Equal(t, []string{"Route 2-2"}, second.routes())
}

func TestRunFreshClearsCheckpoint(t *testing.T) {
	crawl := testCrawl()
	crawl.CheckpointDir = t.TempDir()
	checkpoint := NewCheckpointManager(crawl.CheckpointDir, "test").Path()

	_, err := newTestEngine(t, sitePages(), crawl, &recordingSink{}).Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, checkpoint)

	// every route fails, so nothing is checkpointed again
	failAll := map[string]bool{}
	for _, slug := range []string{"1-1", "1-2", "1-3", "2-1", "2-2", "2-3"} {
		failAll["Route "+slug] = true
	}
	crawl.Fresh = true
	_, err = newTestEngine(t, sitePages(), crawl, &recordingSink{failFor: failAll}).Run(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, checkpoint)

	crawl.Fresh = false
	crawl.Resume = true
	summary, err := newTestEngine(t, sitePages(), crawl, &recordingSink{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Resumed)
	assert.Equal(t, 6, summary.Persisted)
}

func TestRunLogsEachListingPageOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	e, err := New(testTarget(), testCrawl(), &browser.StaticFactory{Pages: sitePages()}, &recordingSink{}, observability.NewMetrics(testLogger), logger)
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(buf.String(), "listing page scraped"))
}

func TestRunListingFailureIsSetupError(t *testing.T) {
	pages := sitePages()
	delete(pages, listingBase)

	sink := &recordingSink{}
	e := newTestEngine(t, pages, testCrawl(), sink)

	_, err := e.Run(context.Background())
	var navErr *types.NavigationError
	assert.True(t, errors.As(err, &navErr))
	assert.Empty(t, sink.attempts)
}

func TestRunTwiceFails(t *testing.T) {
	e := newTestEngine(t, sitePages(), testCrawl(), &recordingSink{})
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.Error(t, err)
}

func TestNewRejectsBadLocator(t *testing.T) {
	target := testTarget()
	target.Listing.PageTab = "xpath:"

	_, err := New(target, testCrawl(), &browser.StaticFactory{}, &recordingSink{}, nil, testLogger)
	assert.ErrorContains(t, err, "listing.page_tab")
}

// --- Deduplicator Tests ---

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(10)

	assert.True(t, d.FirstSeen("https://example.com"))
	assert.False(t, d.FirstSeen("https://example.com"))
	assert.Equal(t, 1, d.Count())
}

func TestDeduplicatorURLVariants(t *testing.T) {
	d := NewDeduplicator(10)

	d.FirstSeen("https://Example.COM/Path/?b=2&a=1#top")

	assert.False(t, d.FirstSeen("https://example.com/Path?a=1&b=2"), "host case, query order, fragment and trailing slash ignored")
	assert.False(t, d.FirstSeen("https://example.com:443/Path?b=2&a=1"), "default port ignored")
	assert.True(t, d.FirstSeen("https://example.com/path?a=1&b=2"), "path is case-sensitive")
}

func TestCanonicalizeURL(t *testing.T) {
	assert.Equal(t, "https://www.redbus.in/", CanonicalizeURL("HTTPS://WWW.REDBUS.IN"))
	assert.Equal(t, "https://www.redbus.in/bus-tickets/a-to-b", CanonicalizeURL(" https://www.redbus.in/bus-tickets/a-to-b/ "))
}

// --- Benchmarks ---

func BenchmarkDeduplicator(b *testing.B) {
	d := NewDeduplicator(1_000_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.FirstSeen(fmt.Sprintf("https://www.redbus.in/bus-tickets/route-%d", i%512))
	}
}
