package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// PaginationOptions configures the Paginator.
type PaginationOptions struct {
	// PageTab locates the control for a page; its {label} placeholder is
	// replaced with the page number.
	PageTab browser.Locator

	// ActivePage locates the control currently marked active.
	ActivePage browser.Locator

	WaitTimeout  time.Duration
	PollInterval time.Duration
	SettleDelay  time.Duration
}

// ScrapeFunc harvests routes from the listing page currently rendered.
type ScrapeFunc func(ctx context.Context, page int) []types.RouteLink

// Paginator walks a listing through its numbered pages.
type Paginator struct {
	opts   PaginationOptions
	logger *slog.Logger
}

// NewPaginator creates a Paginator.
func NewPaginator(opts PaginationOptions, logger *slog.Logger) *Paginator {
	return &Paginator{
		opts:   opts,
		logger: logger.With("component", "paginator"),
	}
}

// Walk scrapes startPage, then clicks through to each following page until
// maxPages is scraped, the next page control is missing, or a transition
// fails. Routes collected before a halt are always returned. Duplicates
// across pages are kept.
func (p *Paginator) Walk(ctx context.Context, s browser.Session, startPage, maxPages int, scrape ScrapeFunc) []types.RouteLink {
	var links []types.RouteLink

	for current := startPage; current <= maxPages; {
		if ctx.Err() != nil {
			p.logger.Warn("pagination cancelled", "page", current, "routes", len(links))
			break
		}

		got := scrape(ctx, current)
		links = append(links, got...)
		p.logger.Info("listing page scraped", "page", current, "routes", len(got), "total", len(links))

		if current >= maxPages {
			break
		}

		next := current + 1
		if err := p.advance(ctx, s, next); err != nil {
			if errors.Is(err, types.ErrNotFound) {
				p.logger.Info("no more pages", "last_page", current)
			} else {
				p.logger.Warn("pagination halted", "page", current, "next", next, "error", err)
			}
			break
		}
		current = next
	}

	return links
}

// advance clicks the control for page next and waits until it is active.
func (p *Paginator) advance(ctx context.Context, s browser.Session, next int) error {
	label := strconv.Itoa(next)

	tab, ok := s.Find(ctx, p.opts.PageTab.WithLabel(label))
	if !ok {
		return fmt.Errorf("page %s control: %w", label, types.ErrNotFound)
	}
	if err := s.ScrollIntoView(ctx, tab); err != nil {
		return fmt.Errorf("scroll to page %s: %w", label, err)
	}
	if err := s.Click(ctx, tab); err != nil {
		return fmt.Errorf("click page %s: %w", label, err)
	}

	active := browser.WaitUntil(ctx, p.opts.WaitTimeout, p.opts.PollInterval, func(ctx context.Context) bool {
		n, ok := s.Find(ctx, p.opts.ActivePage)
		if !ok {
			return false
		}
		text, err := n.Text()
		return err == nil && strings.TrimSpace(text) == label
	})
	if !active {
		return fmt.Errorf("page %s never became active: %w", label, types.ErrTimeout)
	}

	return browser.Sleep(ctx, p.opts.SettleDelay)
}
