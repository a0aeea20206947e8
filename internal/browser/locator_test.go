package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		raw      string
		strategy Strategy
		expr     string
	}{
		{"css:.route", StrategyCSS, ".route"},
		{"xpath://div[@class='x']", StrategyXPath, "//div[@class='x']"},
		{".bus-item", StrategyCSS, ".bus-item"},
		{"//div", StrategyXPath, "//div"},
		{"./span", StrategyXPath, "./span"},
		{"(//a)[1]", StrategyXPath, "(//a)[1]"},
		{"  css: div[class='button'] ", StrategyCSS, "div[class='button']"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			loc, err := ParseLocator(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, loc.Strategy)
			assert.Equal(t, tt.expr, loc.Expr)
		})
	}
}

func TestParseLocatorEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "css:", "xpath:  "} {
		_, err := ParseLocator(raw)
		assert.Error(t, err, "raw %q", raw)
	}
}

func TestLocatorWithLabel(t *testing.T) {
	loc := MustParseLocator(`xpath://div[normalize-space(text())="{label}"]`)
	got := loc.WithLabel("3")

	assert.Equal(t, `//div[normalize-space(text())="3"]`, got.Expr)
	assert.Contains(t, loc.Expr, LabelPlaceholder, "original must be unchanged")
	assert.Equal(t, `xpath://div[normalize-space(text())="3"]`, got.String())
}

func TestMustParseLocatorPanics(t *testing.T) {
	assert.Panics(t, func() { MustParseLocator("") })
}
