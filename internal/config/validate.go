package config

import (
	"fmt"
	"net/url"
	"regexp"
)

var (
	validStorageTypes = map[string]bool{
		"mysql": true, "sqlite": true, "mongodb": true, "redis": true, "jsonl": true, "multi": true,
	}
	validLogLevels = map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)
	tripFieldNames   = []string{
		"carrier_name", "trip_type", "departure_time", "duration", "arrival_time",
		"star_rating", "price", "previous_price", "total_seats", "window_seats",
	}
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Browser.PageTimeout <= 0 {
		return fmt.Errorf("browser.page_timeout must be > 0")
	}

	if cfg.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl.concurrency must be >= 1, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.Concurrency > 32 {
		return fmt.Errorf("crawl.concurrency must be <= 32, got %d", cfg.Crawl.Concurrency)
	}
	if cfg.Crawl.WaitTimeout <= 0 {
		return fmt.Errorf("crawl.wait_timeout must be > 0")
	}
	if cfg.Crawl.PollInterval <= 0 {
		return fmt.Errorf("crawl.poll_interval must be > 0")
	}
	if cfg.Crawl.SettleDelay < 0 || cfg.Crawl.ScrollDelay < 0 || cfg.Crawl.Politeness < 0 {
		return fmt.Errorf("crawl delays must be >= 0")
	}
	if cfg.Crawl.MaxScrolls < 1 {
		return fmt.Errorf("crawl.max_scrolls must be >= 1, got %d", cfg.Crawl.MaxScrolls)
	}
	if cfg.Crawl.Resume && cfg.Crawl.CheckpointDir == "" {
		return fmt.Errorf("crawl.checkpoint_dir is required when crawl.resume is set")
	}
	if cfg.Crawl.Resume && cfg.Crawl.Fresh {
		return fmt.Errorf("crawl.resume and crawl.fresh are mutually exclusive")
	}

	if len(cfg.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	seen := make(map[string]bool, len(cfg.Targets))
	for i, t := range cfg.Targets {
		if t.Name == "" {
			return fmt.Errorf("targets[%d].name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		if err := ValidateTarget(t); err != nil {
			return fmt.Errorf("target %q: %w", t.Name, err)
		}
	}

	if err := ValidateStorage(cfg.Storage); err != nil {
		return err
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateTarget checks a single target definition.
func ValidateTarget(t TargetConfig) error {
	if err := ValidateURL(t.ListingURL); err != nil {
		return fmt.Errorf("listing_url: %w", err)
	}
	if t.RegionTag == "" {
		return fmt.Errorf("region_tag is required")
	}
	if t.StartPage < 1 {
		return fmt.Errorf("start_page must be >= 1, got %d", t.StartPage)
	}
	if t.MaxPages < t.StartPage {
		return fmt.Errorf("max_pages (%d) must be >= start_page (%d)", t.MaxPages, t.StartPage)
	}
	if t.Listing.RouteContainer == "" || t.Listing.RouteLink == "" {
		return fmt.Errorf("listing.route_container and listing.route_link are required")
	}
	if t.TripItem == "" {
		return fmt.Errorf("trip_item is required")
	}
	for _, name := range tripFieldNames {
		f, ok := t.Fields[name]
		if !ok || f.Selector == "" {
			return fmt.Errorf("fields.%s.selector is required", name)
		}
	}
	return nil
}

// ValidateStorage checks the sink configuration.
func ValidateStorage(s StorageConfig) error {
	if !validStorageTypes[s.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: mysql, sqlite, mongodb, redis, jsonl, multi)", s.Type)
	}

	types := []string{s.Type}
	if s.Type == "multi" {
		if len(s.Backends) == 0 {
			return fmt.Errorf("storage.backends is required when storage.type is multi")
		}
		types = s.Backends
	}

	for _, typ := range types {
		switch typ {
		case "mysql", "sqlite":
			if s.DSN == "" {
				return fmt.Errorf("storage.dsn is required for %s", typ)
			}
			if !tableNamePattern.MatchString(s.Table) {
				return fmt.Errorf("storage.table %q is not a valid table name", s.Table)
			}
		case "mongodb":
			if s.MongoURI == "" || s.MongoDatabase == "" || s.MongoCollection == "" {
				return fmt.Errorf("storage.mongo_uri, mongo_database and mongo_collection are required")
			}
		case "redis":
			if s.RedisAddr == "" || s.RedisStream == "" {
				return fmt.Errorf("storage.redis_addr and redis_stream are required")
			}
		case "jsonl":
			if s.OutputPath == "" {
				return fmt.Errorf("storage.output_path is required for jsonl")
			}
		default:
			return fmt.Errorf("storage backend %q is not supported", typ)
		}
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
