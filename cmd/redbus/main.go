package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RahulS-1106/Redbus-Scrapping/internal/browser"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/config"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/engine"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/observability"
	"github.com/RahulS-1106/Redbus-Scrapping/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	targetName  string
	listingURL  string
	regionTag   string
	maxPages    int
	concurrent  int
	storageType string
	dsn         string
	outputPath  string
	headless    bool
	resume      bool
	fresh       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "redbus",
		Short: "Redbus route and trip scraper",
		Long: `redbus walks the paginated route listings of redbus.in state transport
operators, opens every route, reveals all buses and stores one batch of
trip records per route.

Storage backends: mysql, sqlite, mongodb, redis (stream), jsonl (optionally
brotli compressed) and multi (fan-out).`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Scrape the configured targets",
		Long:  "Walk each target's listing pages, scrape every route and persist one batch per route.",
		Args:  cobra.NoArgs,
		RunE:  runCrawl,
	}

	cmd.Flags().StringVarP(&targetName, "target", "t", "", "run only the named target")
	cmd.Flags().StringVar(&listingURL, "url", "", "listing URL (overrides the selected target, or defines an ad-hoc one)")
	cmd.Flags().StringVar(&regionTag, "region", "", "region tag stored with every route")
	cmd.Flags().IntVarP(&maxPages, "max-pages", "p", 0, "last listing page to walk (0 = config)")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "route workers, each with its own browser page (0 = config)")
	cmd.Flags().StringVarP(&storageType, "storage", "s", "", "storage backend: mysql, sqlite, mongodb, redis, jsonl, multi")
	cmd.Flags().StringVar(&dsn, "dsn", "", "SQL data source name")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "JSONL output file")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip routes persisted by an earlier run")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "delete the checkpoint before crawling")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := applyCLIOverrides(cmd, cfg); err != nil {
		return err
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	targets, err := selectTargets(cfg, targetName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
	}

	factory, err := browser.NewRodFactory(cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer factory.Close()

	sink, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}()

	logger.Info("starting crawl",
		"targets", len(targets),
		"storage", sink.Name(),
		"concurrency", cfg.Crawl.Concurrency,
		"resume", cfg.Crawl.Resume,
	)

	start := time.Now()
	var failed []string
	var summaries []engine.Summary

	for _, t := range targets {
		if ctx.Err() != nil {
			logger.Warn("crawl interrupted", "remaining_target", t.Name)
			break
		}

		eng, err := engine.New(t, cfg.Crawl, factory, sink, metrics, logger)
		if err != nil {
			logger.Error("target setup failed", "target", t.Name, "error", err)
			failed = append(failed, t.Name)
			continue
		}

		summary, err := eng.Run(ctx)
		if err != nil {
			logger.Error("target crawl failed", "target", t.Name, "error", err)
			failed = append(failed, t.Name)
			continue
		}
		summaries = append(summaries, summary)
	}

	metrics.LogSummary()
	printSummaries(summaries, time.Since(start))

	if len(failed) > 0 {
		return fmt.Errorf("%d target(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func printSummaries(summaries []engine.Summary, elapsed time.Duration) {
	fmt.Printf("\nCrawl complete in %s\n", elapsed.Round(time.Millisecond))
	for _, s := range summaries {
		fmt.Printf("  %s\n", s.Target)
		fmt.Printf("    Routes:  %d discovered, %d duplicate, %d resumed\n", s.Discovered, s.Duplicates, s.Resumed)
		fmt.Printf("    Scraped: %d routes, %d without trips\n", s.Scraped, s.Empty)
		fmt.Printf("    Stored:  %d batches (%d trips), %d rejected\n", s.Persisted, s.Trips, s.Failed)
	}
}

// selectTargets returns every configured target, or only the named one.
func selectTargets(cfg *config.Config, name string) ([]config.TargetConfig, error) {
	if name == "" {
		return cfg.Targets, nil
	}
	t, ok := cfg.Target(name)
	if !ok {
		return nil, fmt.Errorf("unknown target %q", name)
	}
	return []config.TargetConfig{t}, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("redbus %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Browser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Page Timeout:      %s\n", cfg.Browser.PageTimeout)
			fmt.Printf("\nCrawl:\n")
			fmt.Printf("  Concurrency:       %d\n", cfg.Crawl.Concurrency)
			fmt.Printf("  Settle Delay:      %s\n", cfg.Crawl.SettleDelay)
			fmt.Printf("  Scroll Delay:      %s\n", cfg.Crawl.ScrollDelay)
			fmt.Printf("  Wait Timeout:      %s\n", cfg.Crawl.WaitTimeout)
			fmt.Printf("  Politeness:        %s\n", cfg.Crawl.Politeness)
			fmt.Printf("  Dedup Routes:      %v\n", cfg.Crawl.DedupRoutes)
			fmt.Printf("  Resume:            %v\n", cfg.Crawl.Resume)
			fmt.Printf("  Fresh:             %v\n", cfg.Crawl.Fresh)
			fmt.Printf("\nTargets:\n")
			for _, t := range cfg.Targets {
				fmt.Printf("  %-8s pages %d-%d  %s  %s\n", t.Name, t.StartPage, t.MaxPages, t.RegionTag, t.ListingURL)
			}
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Table:             %s\n", cfg.Storage.Table)
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			if len(cfg.Storage.Backends) > 0 {
				fmt.Printf("  Backends:          %s\n", strings.Join(cfg.Storage.Backends, ", "))
			}
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
	return cmd
}

// setupLogger creates a structured logger.
func setupLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.ToLower(lc.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if listingURL != "" {
		if targetName == "" {
			// ad-hoc target using the redbus layout
			cfg.Targets = []config.TargetConfig{config.RedbusTarget("custom", listingURL, regionTag)}
			targetName = "custom"
		} else {
			if err := overrideTarget(cfg, targetName, func(t *config.TargetConfig) { t.ListingURL = listingURL }); err != nil {
				return err
			}
		}
	}
	if regionTag != "" {
		if targetName != "" {
			if err := overrideTarget(cfg, targetName, func(t *config.TargetConfig) { t.RegionTag = regionTag }); err != nil {
				return err
			}
		} else {
			for i := range cfg.Targets {
				cfg.Targets[i].RegionTag = regionTag
			}
		}
	}
	if maxPages > 0 {
		for i := range cfg.Targets {
			if targetName == "" || cfg.Targets[i].Name == targetName {
				cfg.Targets[i].MaxPages = maxPages
			}
		}
	}
	if concurrent > 0 {
		cfg.Crawl.Concurrency = concurrent
	}
	if storageType != "" {
		cfg.Storage.Type = strings.ToLower(storageType)
	}
	if dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headless
	}
	if flags.Changed("resume") {
		cfg.Crawl.Resume = resume
	}
	if flags.Changed("fresh") {
		cfg.Crawl.Fresh = fresh
	}
	return nil
}

func overrideTarget(cfg *config.Config, name string, apply func(t *config.TargetConfig)) error {
	for i := range cfg.Targets {
		if cfg.Targets[i].Name == name {
			apply(&cfg.Targets[i])
			return nil
		}
	}
	return fmt.Errorf("unknown target %q", name)
}
