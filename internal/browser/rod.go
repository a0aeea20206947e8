package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/config"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/types"
)

// RodFactory creates sessions backed by tabs of one headless Chromium.
type RodFactory struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
	logger   *slog.Logger
}

// NewRodFactory launches (or connects to) a browser.
func NewRodFactory(cfg config.BrowserConfig, logger *slog.Logger) (*RodFactory, error) {
	rf := &RodFactory{
		cfg:    cfg,
		logger: logger.With("component", "rod_factory"),
	}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		u, err := rf.launchBrowser()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if rf.launcher != nil {
			rf.launcher.Cleanup()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	rf.browser = b

	rf.logger.Info("browser ready",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"remote", cfg.ControlURL != "",
	)
	return rf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (rf *RodFactory) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(rf.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if rf.cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if rf.cfg.Bin != "" {
		l = l.Bin(rf.cfg.Bin)
	}
	if rf.cfg.WindowSize != "" {
		l = l.Set("window-size", rf.cfg.WindowSize)
	}
	if rf.cfg.UserDataDir != "" {
		l = l.UserDataDir(rf.cfg.UserDataDir)
	}

	rf.launcher = l
	return l.Launch()
}

// NewSession opens a fresh tab.
func (rf *RodFactory) NewSession(ctx context.Context) (Session, error) {
	var (
		page *rod.Page
		err  error
	)
	if rf.cfg.Stealth {
		page, err = stealth.Page(rf.browser.Context(ctx))
	} else {
		page, err = rf.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &rodSession{
		page:    page,
		timeout: rf.cfg.PageTimeout,
		logger:  rf.logger.With("component", "rod_session"),
	}, nil
}

// Close shuts down the browser and releases resources.
func (rf *RodFactory) Close() error {
	var err error
	if rf.browser != nil {
		err = rf.browser.Close()
	}
	if rf.launcher != nil {
		rf.launcher.Cleanup()
	}
	return err
}

type rodSession struct {
	page    *rod.Page
	timeout time.Duration
	logger  *slog.Logger
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx).Timeout(s.timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return &types.NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *rodSession) Find(ctx context.Context, loc Locator) (Node, bool) {
	nodes := s.FindAll(ctx, loc)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

func (s *rodSession) FindAll(ctx context.Context, loc Locator) []Node {
	p := s.page.Context(ctx).Timeout(s.timeout)
	defer p.CancelTimeout()

	var (
		els rod.Elements
		err error
	)
	switch loc.Strategy {
	case StrategyXPath:
		els, err = p.ElementsX(loc.Expr)
	default:
		els, err = p.Elements(loc.Expr)
	}
	if err != nil {
		s.logger.Debug("query failed", "locator", loc.String(), "error", err)
		return nil
	}
	return wrapElements(ctx, els, s.timeout)
}

func (s *rodSession) Click(ctx context.Context, n Node) error {
	rn, ok := n.(*rodNode)
	if !ok {
		return fmt.Errorf("click: foreign node %T", n)
	}
	el := rn.el.Context(ctx).Timeout(s.timeout)
	defer el.CancelTimeout()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *rodSession) ScrollIntoView(ctx context.Context, n Node) error {
	rn, ok := n.(*rodNode)
	if !ok {
		return fmt.Errorf("scroll: foreign node %T", n)
	}
	el := rn.el.Context(ctx).Timeout(s.timeout)
	defer el.CancelTimeout()
	return el.ScrollIntoView()
}

func (s *rodSession) ScrollToBottom(ctx context.Context) error {
	p := s.page.Context(ctx).Timeout(s.timeout)
	defer p.CancelTimeout()
	_, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (s *rodSession) PageHeight(ctx context.Context) (int, error) {
	p := s.page.Context(ctx).Timeout(s.timeout)
	defer p.CancelTimeout()
	res, err := p.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (s *rodSession) Close() error {
	return s.page.Close()
}

// rodNode is bound to the context it was found with. Each read runs under
// its own timeout derived from that context.
type rodNode struct {
	el      *rod.Element
	timeout time.Duration
}

func wrapElements(ctx context.Context, els rod.Elements, timeout time.Duration) []Node {
	nodes := make([]Node, len(els))
	for i, el := range els {
		nodes[i] = &rodNode{el: el.Context(ctx), timeout: timeout}
	}
	return nodes
}

func (n *rodNode) Text() (string, error) {
	el := n.el.Timeout(n.timeout)
	defer el.CancelTimeout()
	t, err := el.Text()
	return strings.TrimSpace(t), err
}

func (n *rodNode) Attribute(name string) (string, bool) {
	el := n.el.Timeout(n.timeout)
	defer el.CancelTimeout()
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (n *rodNode) Find(loc Locator) (Node, bool) {
	el := n.el.Timeout(n.timeout)
	defer el.CancelTimeout()

	var (
		els rod.Elements
		err error
	)
	switch loc.Strategy {
	case StrategyXPath:
		els, err = el.ElementsX(loc.Expr)
	default:
		els, err = el.Elements(loc.Expr)
	}
	if err != nil || len(els) == 0 {
		return nil, false
	}
	return &rodNode{el: els[0].Context(n.el.GetContext()), timeout: n.timeout}, true
}
