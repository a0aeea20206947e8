package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// StaticSession serves pre-rendered HTML documents keyed by URL. It replays
// saved snapshots offline and backs tests. Clicking an element that carries
// an href or data-href navigates to that document; every other click is a
// no-op. Scrolling never changes the document.
type StaticSession struct {
	mu     sync.Mutex
	pages  map[string]string
	url    string
	doc    *goquery.Document
	closed bool
}

// NewStaticSession returns a session over pages (URL -> HTML).
func NewStaticSession(pages map[string]string) *StaticSession {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &StaticSession{pages: cp}
}

// URL returns the document currently loaded.
func (s *StaticSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *StaticSession) Navigate(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return &types.NavigationError{URL: rawURL, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &types.NavigationError{URL: rawURL, Err: types.ErrSessionClosed}
	}
	body, ok := s.pages[rawURL]
	if !ok {
		return &types.NavigationError{URL: rawURL, Err: types.ErrNotFound}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return &types.NavigationError{URL: rawURL, Err: err}
	}
	s.url = rawURL
	s.doc = doc
	return nil
}

func (s *StaticSession) Find(ctx context.Context, loc Locator) (Node, bool) {
	nodes := s.FindAll(ctx, loc)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

func (s *StaticSession) FindAll(_ context.Context, loc Locator) []Node {
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return nil
	}
	return queryAll(doc.Selection, loc)
}

func (s *StaticSession) Click(ctx context.Context, n Node) error {
	sn, ok := n.(*staticNode)
	if !ok {
		return fmt.Errorf("click: foreign node %T", n)
	}
	target, ok := sn.Attribute("href")
	if !ok {
		target, ok = sn.Attribute("data-href")
	}
	if !ok || target == "" {
		return nil
	}
	return s.Navigate(ctx, s.resolve(target))
}

func (s *StaticSession) ScrollIntoView(ctx context.Context, _ Node) error { return ctx.Err() }

func (s *StaticSession) ScrollToBottom(ctx context.Context) error { return ctx.Err() }

// PageHeight reports the length of the current document, which is constant
// for a static page.
func (s *StaticSession) PageHeight(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0, types.ErrNotFound
	}
	return len(s.pages[s.url]), nil
}

func (s *StaticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.doc = nil
	return nil
}

func (s *StaticSession) resolve(ref string) string {
	if _, ok := s.pages[ref]; ok {
		return ref
	}
	base, err := url.Parse(s.url)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// StaticFactory hands out StaticSessions over the same document set.
type StaticFactory struct {
	Pages map[string]string
}

func (f *StaticFactory) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewStaticSession(f.Pages), nil
}

func (f *StaticFactory) Close() error { return nil }

type staticNode struct {
	sel *goquery.Selection
}

func (n *staticNode) Text() (string, error) {
	return strings.TrimSpace(n.sel.Text()), nil
}

func (n *staticNode) Attribute(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n *staticNode) Find(loc Locator) (Node, bool) {
	nodes := queryAll(n.sel, loc)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

// queryAll evaluates loc against every node in sel.
func queryAll(sel *goquery.Selection, loc Locator) []Node {
	var nodes []Node

	switch loc.Strategy {
	case StrategyXPath:
		for _, root := range sel.Nodes {
			matches, err := htmlquery.QueryAll(root, loc.Expr)
			if err != nil {
				return nil
			}
			for _, m := range matches {
				nodes = append(nodes, wrapHTMLNode(m))
			}
		}
	default:
		sel.Find(loc.Expr).Each(func(_ int, s *goquery.Selection) {
			nodes = append(nodes, &staticNode{sel: s})
		})
	}
	return nodes
}

func wrapHTMLNode(n *html.Node) Node {
	return &staticNode{sel: goquery.NewDocumentFromNode(n).Selection}
}
