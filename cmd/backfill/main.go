// Command backfill scrapes seasons of stats.ncaa.org data without the API
// server.
//
// Usage:
//
//	backfill --type rosters --season 2022 --division 1
//	backfill --type team_stats --season 2021 --season 2022 --category batting --school 167
//	backfill --type team_results --season 2022 --export exports --save=false
//	backfill --type player_game_logs --season 2022 --school 167 --dry-run
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/backfill"
	"github.com/fortuna/collegebaseball/internal/cache"
	"github.com/fortuna/collegebaseball/internal/config"
	"github.com/fortuna/collegebaseball/internal/export"
	"github.com/fortuna/collegebaseball/internal/ingest/ncaa"
	"github.com/fortuna/collegebaseball/internal/logging"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/schema"
	"github.com/fortuna/collegebaseball/internal/store"
)

const (
	appName    = "collegebaseball-backfill"
	appVersion = "1.0.0"
)

type options struct {
	envFile    string
	jobType    string
	seasons    []int
	divisions  []int
	categories []string
	schools    []int
	save       bool
	dryRun     bool
	exportDir  string
	noCache    bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "backfill",
		Short:        "Scrape and store college baseball tables",
		Version:      appVersion,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	f.StringVar(&opts.jobType, "type", "", "rosters, team_stats, team_results or player_game_logs")
	f.IntSliceVar(&opts.seasons, "season", nil, "season to scrape (repeatable)")
	f.IntSliceVar(&opts.divisions, "division", nil, "division filter (repeatable, default all)")
	f.StringSliceVar(&opts.categories, "category", nil, "batting, pitching or fielding (repeatable, default all)")
	f.IntSliceVar(&opts.schools, "school", nil, "school_id filter (repeatable)")
	f.BoolVar(&opts.save, "save", true, "write tables to the database")
	f.BoolVar(&opts.dryRun, "dry-run", false, "list the entities without fetching")
	f.StringVar(&opts.exportDir, "export", "", "also write files to this directory")
	f.BoolVar(&opts.noCache, "no-cache", false, "skip the Redis page cache")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("season")
	return cmd
}

func run(ctx context.Context, opts options) error {
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: true})
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Named("main")
	log.Info("starting", zap.String("app", appName), zap.String("version", appVersion))

	save := opts.save
	spec, err := backfill.Request{
		Type:       opts.jobType,
		Seasons:    opts.seasons,
		Divisions:  opts.divisions,
		Categories: opts.categories,
		Schools:    opts.schools,
		Save:       &save,
	}.Spec()
	if err != nil {
		return err
	}
	spec.DryRun = opts.dryRun

	bundle, err := reference.Load(cfg.Reference.Dir)
	if err != nil {
		return fmt.Errorf("loading reference tables: %w", err)
	}
	registry, err := schema.Default()
	if err != nil {
		return err
	}

	clientCfg := ncaa.DefaultClientConfig()
	clientCfg.UserAgent = cfg.Scraper.UserAgent
	clientCfg.RequestsPerSecond = cfg.Scraper.RequestsPerSecond
	clientCfg.Burst = cfg.Scraper.Burst
	clientCfg.MaxJitter = cfg.Scraper.MaxJitter
	clientCfg.Timeout = cfg.Scraper.Timeout
	clientCfg.RetryMax = cfg.Scraper.RetryMax

	var fetcher ncaa.Fetcher = ncaa.NewClient(clientCfg, logger.Named("ncaa"), nil)
	if cfg.Scraper.BrowserFallback {
		browser := ncaa.NewBrowserFetcher(cfg.Scraper.Timeout, nil)
		defer browser.Close()
		fetcher = &ncaa.FallbackFetcher{Primary: fetcher, Fallback: browser, Logger: logger.Named("ncaa")}
	}
	if cfg.Redis.Enabled && !opts.noCache {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			log.Warn("page cache unavailable, fetching directly", zap.Error(err))
		} else {
			defer rc.Close()
			fetcher = &ncaa.CachedFetcher{Next: fetcher, Store: rc, TTL: cfg.Redis.PageTTL, Logger: logger.Named("cache")}
		}
	}
	scraper := ncaa.NewScraper(bundle, registry, fetcher, cfg.Scraper.BaseURL, logger.Named("scraper"), nil)

	var sinks []backfill.Sink
	if spec.Save && !spec.DryRun {
		db, err := store.NewDatabase(cfg.Database.DSN, logger.Named("store"))
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := db.RunMigrations(ctx); err != nil {
				return err
			}
		}
		sinks = append(sinks, backfill.NewStoreSink(db))
	}
	if opts.exportDir != "" {
		writer, err := export.NewWriter(opts.exportDir, cfg.Export.Format)
		if err != nil {
			return err
		}
		sinks = append(sinks, &backfill.ExportSink{Writer: writer})
		spec.Save = true
	}

	runner := backfill.NewRunner(scraper, logger.Named("backfill"), nil, sinks...)
	reporter := &consoleReporter{log: log, dryRun: spec.DryRun, start: time.Now()}
	summary, err := runner.Run(ctx, spec, reporter)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	if len(summary.Failures) > 0 {
		return fmt.Errorf("%d of %d entities failed", len(summary.Failures), summary.Entities)
	}
	return nil
}

type consoleReporter struct {
	log    *zap.Logger
	dryRun bool
	start  time.Time
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec, total int) {
	c.log.Info("starting job",
		zap.String("type", string(spec.Type)),
		zap.Ints("seasons", spec.Seasons),
		zap.Int("entities", total),
		zap.Bool("dry_run", c.dryRun))
}

func (c *consoleReporter) OnEntityDone(e backfill.Entity, rows, index, total int) {
	c.log.Info(fmt.Sprintf("[%d/%d] %s", index+1, total, e.Label), zap.Int("rows", rows))
}

func (c *consoleReporter) OnEntityFailed(e backfill.Entity, err error, index, total int) {
	c.log.Warn(fmt.Sprintf("[%d/%d] %s", index+1, total, e.Label), zap.Error(err))
}

func (c *consoleReporter) OnJobComplete(summary backfill.Summary) {
	c.log.Info("job complete",
		zap.Int("entities", summary.Entities),
		zap.Int("rows", summary.Rows),
		zap.Int("failures", len(summary.Failures)),
		zap.Duration("elapsed", time.Since(c.start).Round(time.Second)))
	for _, f := range summary.Failures {
		c.log.Warn("failed entity", zap.String("entity", f))
	}
}

func (c *consoleReporter) OnJobError(err error) {
	c.log.Error("job error", zap.Error(err))
}
