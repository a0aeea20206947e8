package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the redbus crawler.
type Config struct {
	Browser BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Crawl   CrawlConfig    `mapstructure:"crawl"   yaml:"crawl"`
	Targets []TargetConfig `mapstructure:"targets" yaml:"targets"`
	Storage StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// BrowserConfig controls the automation engine.
type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless"      yaml:"headless"`
	Bin         string        `mapstructure:"bin"           yaml:"bin"`
	ControlURL  string        `mapstructure:"control_url"   yaml:"control_url"`
	Stealth     bool          `mapstructure:"stealth"       yaml:"stealth"`
	NoSandbox   bool          `mapstructure:"no_sandbox"    yaml:"no_sandbox"`
	WindowSize  string        `mapstructure:"window_size"   yaml:"window_size"`
	UserDataDir string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	PageTimeout time.Duration `mapstructure:"page_timeout"  yaml:"page_timeout"`
}

// CrawlConfig controls waits, pacing and parallelism of a crawl.
type CrawlConfig struct {
	// Concurrency is the number of route workers, each with its own session.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// SettleDelay follows every click that has no observable completion signal.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`

	// ScrollDelay is the pause between a scroll and the next height read.
	ScrollDelay time.Duration `mapstructure:"scroll_delay" yaml:"scroll_delay"`

	// MaxScrolls caps the infinite-scroll loop.
	MaxScrolls int `mapstructure:"max_scrolls" yaml:"max_scrolls"`

	// WaitTimeout bounds every condition-polled wait.
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"  yaml:"wait_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`

	// Politeness is the minimum interval between route navigations.
	Politeness time.Duration `mapstructure:"politeness" yaml:"politeness"`

	DedupRoutes   bool   `mapstructure:"dedup_routes"   yaml:"dedup_routes"`
	Resume        bool   `mapstructure:"resume"         yaml:"resume"`
	Fresh         bool   `mapstructure:"fresh"          yaml:"fresh"`
	CheckpointDir string `mapstructure:"checkpoint_dir" yaml:"checkpoint_dir"`
}

// TargetConfig describes one listing source and how to read its pages.
type TargetConfig struct {
	Name       string `mapstructure:"name"        yaml:"name"`
	ListingURL string `mapstructure:"listing_url" yaml:"listing_url"`
	RegionTag  string `mapstructure:"region_tag"  yaml:"region_tag"`
	StartPage  int    `mapstructure:"start_page"  yaml:"start_page"`
	MaxPages   int    `mapstructure:"max_pages"   yaml:"max_pages"`

	Listing ListingConfig `mapstructure:"listing" yaml:"listing"`
	Reveal  RevealConfig  `mapstructure:"reveal"  yaml:"reveal"`

	// TripItem locates one trip offering on a route page.
	TripItem string `mapstructure:"trip_item" yaml:"trip_item"`

	// Fields maps each trip field name to its locator within a trip item.
	Fields map[string]FieldConfig `mapstructure:"fields" yaml:"fields"`
}

// ListingConfig holds the locators used on listing pages.
type ListingConfig struct {
	RouteContainer string `mapstructure:"route_container" yaml:"route_container"`
	RouteLink      string `mapstructure:"route_link"      yaml:"route_link"`

	// PageTab locates the pagination control for a page; "{label}" is
	// replaced with the page number.
	PageTab    string `mapstructure:"page_tab"    yaml:"page_tab"`
	ActivePage string `mapstructure:"active_page" yaml:"active_page"`
}

// RevealConfig holds the disclosure controls clicked before scraping.
type RevealConfig struct {
	Toggle string `mapstructure:"toggle" yaml:"toggle"`

	// Order lists zero-based toggle indexes in click order. Missing
	// indexes are skipped.
	Order []int `mapstructure:"order" yaml:"order"`
}

// FieldConfig locates one field and lists the cleaners applied to its text.
type FieldConfig struct {
	Selector string   `mapstructure:"selector" yaml:"selector"`
	Cleaners []string `mapstructure:"cleaners" yaml:"cleaners"`
}

// StorageConfig controls the sink.
type StorageConfig struct {
	Type string `mapstructure:"type" yaml:"type"`

	// SQL backends.
	DSN   string `mapstructure:"dsn"   yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`

	// MongoDB.
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`

	// Redis stream.
	RedisAddr   string `mapstructure:"redis_addr"   yaml:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"     yaml:"redis_db"`
	RedisStream string `mapstructure:"redis_stream" yaml:"redis_stream"`
	RedisMaxLen int64  `mapstructure:"redis_max_len" yaml:"redis_max_len"`

	// JSONL file.
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	Compress   bool   `mapstructure:"compress"    yaml:"compress"`

	// Backends lists the sink types used when Type is "multi".
	Backends []string `mapstructure:"backends" yaml:"backends"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:    true,
			NoSandbox:   true,
			WindowSize:  "1920,1080",
			PageTimeout: 30 * time.Second,
		},
		Crawl: CrawlConfig{
			Concurrency:   1,
			SettleDelay:   3 * time.Second,
			ScrollDelay:   2 * time.Second,
			MaxScrolls:    50,
			WaitTimeout:   30 * time.Second,
			PollInterval:  250 * time.Millisecond,
			Politeness:    time.Second,
			DedupRoutes:   true,
			CheckpointDir: ".redbus_checkpoints",
		},
		Targets: DefaultTargets(),
		Storage: StorageConfig{
			Type:            "mysql",
			DSN:             "root:@tcp(127.0.0.1:3306)/redbus?parseTime=true&charset=utf8mb4&timeout=5s",
			Table:           "bus_routes",
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "redbus",
			MongoCollection: "route_batches",
			RedisAddr:       "localhost:6379",
			RedisStream:     "redbus:batches",
			OutputPath:      "./output/routes.jsonl",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// DefaultTargets returns the built-in redbus listings. Both share the same
// page layout and differ only in listing URL and region tag.
func DefaultTargets() []TargetConfig {
	return []TargetConfig{
		RedbusTarget("astc", "https://www.redbus.in/online-booking/astc/?utm_source=rtchometile", "Assam-(ASTC)"),
		RedbusTarget("apsrtc", "https://www.redbus.in/online-booking/apsrtc/?utm_source=rtchometile", "Andhra-(APSRTC)"),
	}
}

// RedbusTarget returns a target using the redbus listing and route layout.
func RedbusTarget(name, listingURL, region string) TargetConfig {
	return TargetConfig{
		Name:       name,
		ListingURL: listingURL,
		RegionTag:  region,
		StartPage:  1,
		MaxPages:   5,
		Listing: ListingConfig{
			RouteContainer: "css:.route_details",
			RouteLink:      "css:.route",
			PageTab:        `xpath://div[contains(@class, "DC_117_paginationTable")]//div[contains(@class, "DC_117_pageTabs") and normalize-space(text())="{label}"]`,
			ActivePage:     `xpath://div[contains(@class, "DC_117_pageTabs") and contains(@class, "DC_117_pageActive")]`,
		},
		Reveal: RevealConfig{
			Toggle: `css:div[class='button']`,
			Order:  []int{1, 0},
		},
		TripItem: "css:.bus-item",
		Fields:   RedbusFields(),
	}
}

// RedbusFields returns the redbus trip field locators.
func RedbusFields() map[string]FieldConfig {
	money := []string{"remove:INR", "remove:₹", "remove:,", "trim"}
	seats := []string{"trim", "first_token"}
	return map[string]FieldConfig{
		"carrier_name":   {Selector: "css:.travels"},
		"trip_type":      {Selector: "css:.bus-type"},
		"departure_time": {Selector: "css:.dp-time"},
		"duration":       {Selector: "css:.dur"},
		"arrival_time":   {Selector: "css:.bp-time"},
		"star_rating":    {Selector: "css:.rating", Cleaners: []string{"trim"}},
		"price":          {Selector: "css:.fare", Cleaners: money},
		"previous_price": {Selector: "css:.oldFare", Cleaners: money},
		"total_seats":    {Selector: "css:.seat-left", Cleaners: seats},
		"window_seats":   {Selector: "css:.window-left", Cleaners: seats},
	}
}

// Target returns the named target.
func (c *Config) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}
