package scraper

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// RouteScraperOptions configures a RouteScraper.
type RouteScraperOptions struct {
	Container browser.Locator
	Link      browser.Locator

	// BaseURL resolves relative hrefs.
	BaseURL   string
	RegionTag string

	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// RouteScraper harvests route links from the listing page currently
// rendered in a session.
type RouteScraper struct {
	opts   RouteScraperOptions
	base   *url.URL
	logger *slog.Logger
}

// NewRouteScraper creates a RouteScraper.
func NewRouteScraper(opts RouteScraperOptions, logger *slog.Logger) *RouteScraper {
	base, _ := url.Parse(opts.BaseURL)
	return &RouteScraper{
		opts:   opts,
		base:   base,
		logger: logger.With("component", "route_scraper", "region", opts.RegionTag),
	}
}

// Scrape returns the route links on the current page in document order.
// Containers without a usable link are skipped. An empty result means the
// page never rendered any containers.
func (r *RouteScraper) Scrape(ctx context.Context, s browser.Session) []types.RouteLink {
	found := browser.WaitUntil(ctx, r.opts.WaitTimeout, r.opts.PollInterval, func(wctx context.Context) bool {
		return len(s.FindAll(wctx, r.opts.Container)) > 0
	})
	if !found {
		r.logger.Warn("no route containers rendered", "locator", r.opts.Container.String())
		return nil
	}

	containers := s.FindAll(ctx, r.opts.Container)

	links := make([]types.RouteLink, 0, len(containers))
	for i, c := range containers {
		el, ok := c.Find(r.opts.Link)
		if !ok {
			r.logger.Debug("route container without link", "index", i)
			continue
		}
		href, ok := el.Attribute("href")
		if !ok || strings.TrimSpace(href) == "" {
			r.logger.Debug("route link without href", "index", i)
			continue
		}
		name, err := el.Text()
		if err != nil {
			r.logger.Debug("route name unreadable", "index", i, "error", err)
			continue
		}
		links = append(links, types.RouteLink{
			Name:      strings.TrimSpace(name),
			URL:       r.resolve(href),
			RegionTag: r.opts.RegionTag,
		})
	}
	return links
}

func (r *RouteScraper) resolve(href string) string {
	href = strings.TrimSpace(href)
	if r.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return r.base.ResolveReference(ref).String()
}
