package automation

import (
	"context"
	"log/slog"
	"time"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
)

// RevealOptions configures the Revealer.
type RevealOptions struct {
	// Toggle locates the disclosure controls.
	Toggle browser.Locator

	// Order lists zero-based toggle indexes in click order. Clicking the
	// second control before the first is what exposes every group on
	// redbus route pages.
	Order []int

	SettleDelay time.Duration
	ScrollDelay time.Duration
	MaxScrolls  int
}

// Revealer forces lazily rendered items into the DOM before scraping.
type Revealer struct {
	opts   RevealOptions
	logger *slog.Logger
}

// NewRevealer creates a Revealer.
func NewRevealer(opts RevealOptions, logger *slog.Logger) *Revealer {
	if opts.MaxScrolls < 1 {
		opts.MaxScrolls = 1
	}
	return &Revealer{
		opts:   opts,
		logger: logger.With("component", "revealer"),
	}
}

// Reveal clicks the disclosure controls and then scrolls until the page
// height stops growing. It is best-effort: missing controls and short
// pages are not errors. It returns the number of scrolls performed.
func (r *Revealer) Reveal(ctx context.Context, s browser.Session) int {
	r.Disclose(ctx, s)
	return r.InfiniteScroll(ctx, s)
}

// Disclose clicks the toggles in configured order and returns how many
// clicks succeeded.
func (r *Revealer) Disclose(ctx context.Context, s browser.Session) int {
	if r.opts.Toggle.IsZero() {
		return 0
	}

	toggles := s.FindAll(ctx, r.opts.Toggle)
	clicked := 0
	for _, idx := range r.opts.Order {
		if idx < 0 || idx >= len(toggles) {
			continue
		}
		if err := s.Click(ctx, toggles[idx]); err != nil {
			r.logger.Warn("toggle click failed", "index", idx, "error", err)
			continue
		}
		clicked++
		if err := browser.Sleep(ctx, r.opts.SettleDelay); err != nil {
			return clicked
		}
	}

	r.logger.Debug("disclosure done", "toggles", len(toggles), "clicked", clicked)
	return clicked
}

// InfiniteScroll scrolls to the bottom until two consecutive height reads
// are equal or MaxScrolls is reached.
func (r *Revealer) InfiniteScroll(ctx context.Context, s browser.Session) int {
	lastHeight, err := s.PageHeight(ctx)
	if err != nil {
		r.logger.Debug("page height unavailable", "error", err)
		return 0
	}

	scrolls := 0
	settled := false
	for scrolls < r.opts.MaxScrolls {
		if err := s.ScrollToBottom(ctx); err != nil {
			r.logger.Debug("scroll failed", "error", err)
			settled = true
			break
		}
		scrolls++

		// Wait for content to load
		if err := browser.Sleep(ctx, r.opts.ScrollDelay); err != nil {
			settled = true
			break
		}

		height, err := s.PageHeight(ctx)
		if err != nil || height == lastHeight {
			settled = true
			break
		}
		lastHeight = height
	}

	if !settled {
		r.logger.Warn("scroll limit reached before height settled", "scrolls", scrolls)
	}
	return scrolls
}
