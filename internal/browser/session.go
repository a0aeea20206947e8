package browser

import (
	"context"
	"time"
)

// Node is one rendered element.
type Node interface {
	// Text returns the element's visible text.
	Text() (string, error)

	// Attribute returns the named attribute, if present.
	Attribute(name string) (string, bool)

	// Find returns the first descendant matching loc.
	Find(loc Locator) (Node, bool)
}

// Session drives a single page. A Session is not safe for concurrent use;
// concurrent scrapes must each own their own Session.
type Session interface {
	// Navigate opens url and waits for the document to load.
	Navigate(ctx context.Context, url string) error

	// Find returns the first element matching loc, without waiting. The
	// node shares ctx the way FindAll nodes do.
	Find(ctx context.Context, loc Locator) (Node, bool)

	// FindAll returns every element matching loc in document order.
	// Returned nodes are readable only while ctx is live.
	FindAll(ctx context.Context, loc Locator) []Node

	// Click activates n.
	Click(ctx context.Context, n Node) error

	// ScrollIntoView scrolls until n is visible.
	ScrollIntoView(ctx context.Context, n Node) error

	// ScrollToBottom scrolls the window to the end of the document.
	ScrollToBottom(ctx context.Context) error

	// PageHeight returns the document's current scroll height.
	PageHeight(ctx context.Context) (int, error)

	// Close releases the session.
	Close() error
}

// Factory creates independent sessions.
type Factory interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// WaitUntil polls cond every interval until it returns true or timeout
// elapses. It reports whether cond was satisfied.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond func(ctx context.Context) bool) bool {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cond(ctx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
