package browser

import (
	"fmt"
	"strings"
)

// Strategy selects how a Locator expression is evaluated.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
)

// LabelPlaceholder is substituted by Locator.WithLabel.
const LabelPlaceholder = "{label}"

// Locator identifies an element by a CSS selector or an XPath expression.
type Locator struct {
	Strategy Strategy
	Expr     string
}

// CSS returns a CSS selector locator.
func CSS(expr string) Locator { return Locator{Strategy: StrategyCSS, Expr: expr} }

// XPath returns an XPath locator.
func XPath(expr string) Locator { return Locator{Strategy: StrategyXPath, Expr: expr} }

// ParseLocator parses "css:<selector>", "xpath:<expr>" or a bare expression.
// Bare expressions starting with "/", "./" or "(" are treated as XPath.
func ParseLocator(raw string) (Locator, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}

	switch {
	case strings.HasPrefix(s, "css:"):
		s = strings.TrimSpace(strings.TrimPrefix(s, "css:"))
		if s == "" {
			return Locator{}, fmt.Errorf("empty css locator %q", raw)
		}
		return CSS(s), nil
	case strings.HasPrefix(s, "xpath:"):
		s = strings.TrimSpace(strings.TrimPrefix(s, "xpath:"))
		if s == "" {
			return Locator{}, fmt.Errorf("empty xpath locator %q", raw)
		}
		return XPath(s), nil
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "./"), strings.HasPrefix(s, "("):
		return XPath(s), nil
	default:
		return CSS(s), nil
	}
}

// MustParseLocator is like ParseLocator but panics on error. Use it only for
// compile-time constant expressions.
func MustParseLocator(raw string) Locator {
	l, err := ParseLocator(raw)
	if err != nil {
		panic(err)
	}
	return l
}

// WithLabel returns a copy with every LabelPlaceholder replaced by label.
func (l Locator) WithLabel(label string) Locator {
	l.Expr = strings.ReplaceAll(l.Expr, LabelPlaceholder, label)
	return l
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool { return l.Expr == "" }

func (l Locator) String() string {
	return string(l.Strategy) + ":" + l.Expr
}
