package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults from struct
	setDefaults(v, cfg)

	// Environment variable support
	v.SetEnvPrefix("REDBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search default locations
		v.SetConfigName("redbus")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".redbus"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	// Configured targets replace the built-in ones instead of merging
	// element by element.
	if v.IsSet("targets") {
		cfg.Targets = nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Targets {
		cfg.Targets[i] = WithTargetDefaults(cfg.Targets[i])
	}

	return cfg, nil
}

// WithTargetDefaults fills every unset locator of t from the redbus layout.
func WithTargetDefaults(t TargetConfig) TargetConfig {
	def := RedbusTarget(t.Name, t.ListingURL, t.RegionTag)

	if t.StartPage == 0 {
		t.StartPage = def.StartPage
	}
	if t.MaxPages == 0 {
		t.MaxPages = def.MaxPages
	}
	if t.Listing.RouteContainer == "" {
		t.Listing.RouteContainer = def.Listing.RouteContainer
	}
	if t.Listing.RouteLink == "" {
		t.Listing.RouteLink = def.Listing.RouteLink
	}
	if t.Listing.PageTab == "" {
		t.Listing.PageTab = def.Listing.PageTab
	}
	if t.Listing.ActivePage == "" {
		t.Listing.ActivePage = def.Listing.ActivePage
	}
	if t.Reveal.Toggle == "" {
		t.Reveal.Toggle = def.Reveal.Toggle
	}
	if t.Reveal.Order == nil {
		t.Reveal.Order = def.Reveal.Order
	}
	if t.TripItem == "" {
		t.TripItem = def.TripItem
	}

	fields := make(map[string]FieldConfig, len(def.Fields))
	for name, f := range def.Fields {
		fields[name] = f
	}
	for name, f := range t.Fields {
		fields[strings.ToLower(name)] = f
	}
	t.Fields = fields

	return t
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.control_url", cfg.Browser.ControlURL)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.page_timeout", cfg.Browser.PageTimeout)

	v.SetDefault("crawl.concurrency", cfg.Crawl.Concurrency)
	v.SetDefault("crawl.settle_delay", cfg.Crawl.SettleDelay)
	v.SetDefault("crawl.scroll_delay", cfg.Crawl.ScrollDelay)
	v.SetDefault("crawl.max_scrolls", cfg.Crawl.MaxScrolls)
	v.SetDefault("crawl.wait_timeout", cfg.Crawl.WaitTimeout)
	v.SetDefault("crawl.poll_interval", cfg.Crawl.PollInterval)
	v.SetDefault("crawl.politeness", cfg.Crawl.Politeness)
	v.SetDefault("crawl.dedup_routes", cfg.Crawl.DedupRoutes)
	v.SetDefault("crawl.resume", cfg.Crawl.Resume)
	v.SetDefault("crawl.fresh", cfg.Crawl.Fresh)
	v.SetDefault("crawl.checkpoint_dir", cfg.Crawl.CheckpointDir)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.dsn", cfg.Storage.DSN)
	v.SetDefault("storage.table", cfg.Storage.Table)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)
	v.SetDefault("storage.redis_addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis_db", cfg.Storage.RedisDB)
	v.SetDefault("storage.redis_stream", cfg.Storage.RedisStream)
	v.SetDefault("storage.redis_max_len", cfg.Storage.RedisMaxLen)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.compress", cfg.Storage.Compress)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
