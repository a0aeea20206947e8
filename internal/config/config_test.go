package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "redbus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// --- Load Tests ---

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, "Assam-(ASTC)", cfg.Targets[0].RegionTag)
	assert.Equal(t, "Andhra-(APSRTC)", cfg.Targets[1].RegionTag)
	assert.Equal(t, []int{1, 0}, cfg.Targets[0].Reveal.Order)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
crawl:
  concurrency: 3
  settle_delay: 500ms
storage:
  type: sqlite
  dsn: ./redbus.db
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Crawl.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawl.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.Crawl.ScrollDelay, "unset keys keep defaults")
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "bus_routes", cfg.Storage.Table)
	assert.Len(t, cfg.Targets, 2, "built-in targets are kept when none are configured")
	assert.NoError(t, Validate(cfg))
}

func TestLoadTargetsReplaceBuiltins(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: ksrtc
    listing_url: https://www.redbus.in/online-booking/ksrtc-kerala/
    region_tag: Kerala-(KSRTC)
    max_pages: 2
    fields:
      price:
        selector: "css:.fare-new"
        cleaners: ["remove:₹", "trim"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 1)

	tgt := cfg.Targets[0]
	assert.Equal(t, "ksrtc", tgt.Name)
	assert.Equal(t, 1, tgt.StartPage)
	assert.Equal(t, 2, tgt.MaxPages)
	assert.Equal(t, "css:.route_details", tgt.Listing.RouteContainer)
	assert.Equal(t, "css:.bus-item", tgt.TripItem)
	assert.Equal(t, "css:.fare-new", tgt.Fields["price"].Selector)
	assert.Equal(t, []string{"remove:₹", "trim"}, tgt.Fields["price"].Cleaners)
	assert.Equal(t, "css:.travels", tgt.Fields["carrier_name"].Selector)
	assert.NoError(t, Validate(cfg))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REDBUS_CRAWL_CONCURRENCY", "4")
	t.Setenv("REDBUS_STORAGE_TYPE", "jsonl")

	cfg, err := Load(writeConfig(t, "logging:\n  format: json\n"))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Crawl.Concurrency)
	assert.Equal(t, "jsonl", cfg.Storage.Type)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// --- Validate Tests ---

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero concurrency", func(c *Config) { c.Crawl.Concurrency = 0 }},
		{"zero wait", func(c *Config) { c.Crawl.WaitTimeout = 0 }},
		{"negative settle", func(c *Config) { c.Crawl.SettleDelay = -time.Second }},
		{"resume without dir", func(c *Config) { c.Crawl.Resume = true; c.Crawl.CheckpointDir = "" }},
		{"resume and fresh", func(c *Config) { c.Crawl.Resume = true; c.Crawl.Fresh = true }},
		{"no targets", func(c *Config) { c.Targets = nil }},
		{"duplicate target", func(c *Config) { c.Targets[1].Name = c.Targets[0].Name }},
		{"bad listing url", func(c *Config) { c.Targets[0].ListingURL = "ftp://redbus.in" }},
		{"missing region", func(c *Config) { c.Targets[0].RegionTag = "" }},
		{"max below start", func(c *Config) { c.Targets[0].StartPage = 3; c.Targets[0].MaxPages = 2 }},
		{"missing field", func(c *Config) { delete(c.Targets[0].Fields, "duration") }},
		{"bad storage", func(c *Config) { c.Storage.Type = "csv" }},
		{"bad table", func(c *Config) { c.Storage.Table = "bus routes" }},
		{"multi without backends", func(c *Config) { c.Storage.Type = "multi" }},
		{"redis without stream", func(c *Config) { c.Storage.Type = "redis"; c.Storage.RedisStream = "" }},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidateMultiStorage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Type = "multi"
	cfg.Storage.Backends = []string{"mysql", "jsonl", "redis"}
	assert.NoError(t, Validate(cfg))

	cfg.Storage.Backends = []string{"mysql", "multi"}
	assert.Error(t, Validate(cfg))
}

func TestConfigTarget(t *testing.T) {
	cfg := DefaultConfig()

	tgt, ok := cfg.Target("apsrtc")
	require.True(t, ok)
	assert.Contains(t, tgt.ListingURL, "apsrtc")

	_, ok = cfg.Target("tsrtc")
	assert.False(t, ok)
}
