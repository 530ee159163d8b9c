package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fortuna/collegebaseball/internal/api/rest"
	"github.com/fortuna/collegebaseball/internal/api/websocket"
	"github.com/fortuna/collegebaseball/internal/backfill"
	"github.com/fortuna/collegebaseball/internal/cache"
	"github.com/fortuna/collegebaseball/internal/config"
	"github.com/fortuna/collegebaseball/internal/export"
	"github.com/fortuna/collegebaseball/internal/ingest/boydsworld"
	"github.com/fortuna/collegebaseball/internal/ingest/ncaa"
	"github.com/fortuna/collegebaseball/internal/logging"
	"github.com/fortuna/collegebaseball/internal/monitoring"
	"github.com/fortuna/collegebaseball/internal/publisher"
	"github.com/fortuna/collegebaseball/internal/reference"
	"github.com/fortuna/collegebaseball/internal/scheduler"
	"github.com/fortuna/collegebaseball/internal/schema"
	"github.com/fortuna/collegebaseball/internal/store"
	"github.com/fortuna/collegebaseball/internal/store/repository"
)

const (
	serviceName    = "collegebaseball"
	serviceVersion = "1.0.0"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		panic(err)
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Named("main")
	log.Info("starting", zap.String("service", serviceName), zap.String("version", serviceVersion))

	bundle, err := reference.Load(cfg.Reference.Dir)
	if err != nil {
		log.Fatal("failed to load reference tables", zap.String("dir", cfg.Reference.Dir), zap.Error(err))
	}
	registry, err := schema.Default()
	if err != nil {
		log.Fatal("failed to load column layouts", zap.Error(err))
	}
	log.Info("reference tables loaded",
		zap.Int("seasons", len(bundle.Seasons())),
		zap.Int("schools", len(bundle.Schools(0))))

	metrics := monitoring.NewMetrics()
	health := map[string]rest.HealthChecker{}

	db, err := store.NewDatabase(cfg.Database.DSN, logger.Named("store"))
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	health["postgres"] = db
	if cfg.Database.Migrate {
		if err := db.RunMigrations(context.Background()); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		log.Info("database migrations applied")
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache = connectRedis(cfg.Redis, log)
		defer redisCache.Close()
		health["redis"] = redisCache
	}

	// Fetch chain: rate-limited HTTP, optional headless browser when the
	// site answers 403, then the Redis page cache in front of both.
	clientCfg := ncaa.DefaultClientConfig()
	clientCfg.UserAgent = cfg.Scraper.UserAgent
	clientCfg.RequestsPerSecond = cfg.Scraper.RequestsPerSecond
	clientCfg.Burst = cfg.Scraper.Burst
	clientCfg.MaxJitter = cfg.Scraper.MaxJitter
	clientCfg.Timeout = cfg.Scraper.Timeout
	clientCfg.RetryMax = cfg.Scraper.RetryMax

	var fetcher ncaa.Fetcher = ncaa.NewClient(clientCfg, logger.Named("ncaa"), metrics)
	if cfg.Scraper.BrowserFallback {
		browser := ncaa.NewBrowserFetcher(cfg.Scraper.Timeout, metrics)
		defer browser.Close()
		fetcher = &ncaa.FallbackFetcher{Primary: fetcher, Fallback: browser, Logger: logger.Named("ncaa")}
	}
	if redisCache != nil {
		fetcher = &ncaa.CachedFetcher{
			Next:    fetcher,
			Store:   redisCache,
			TTL:     cfg.Redis.PageTTL,
			Logger:  logger.Named("cache"),
			Metrics: metrics,
		}
	}

	scraper := ncaa.NewScraper(bundle, registry, fetcher, cfg.Scraper.BaseURL, logger.Named("scraper"), metrics)

	bdCfg := clientCfg
	bdCfg.Source = "boydsworld"
	bdClient := boydsworld.NewClient(ncaa.NewClient(bdCfg, logger.Named("boydsworld"), metrics), bundle, cfg.Scraper.BoydsworldURL, logger.Named("boydsworld"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(logger.Named("websocket"), metrics)
	go hub.Run(ctx)

	events := publisher.Multi{hub}
	if redisCache != nil {
		stream := publisher.NewRedisStreamPublisher(redisCache.Client(), cfg.Redis.Stream)
		events = append(events, stream)
	}

	writer, err := export.NewWriter(cfg.Export.Dir, cfg.Export.Format)
	if err != nil {
		log.Fatal("failed to prepare export directory", zap.Error(err))
	}
	runner := backfill.NewRunner(scraper, logger.Named("backfill"), metrics,
		backfill.NewStoreSink(db), &backfill.ExportSink{Writer: writer})
	backfillService := backfill.NewService(backfill.NewRepository(db), runner, events, metrics, logger.Named("backfill"))
	backfillService.Start()
	log.Info("backfill service started")

	var sched *scheduler.Orchestrator
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewOrchestrator(cfg.Scheduler, backfillService, logger.Named("scheduler"))
		if err != nil {
			log.Fatal("failed to create scheduler", zap.Error(err))
		}
		sched.Start()
	}

	deps := rest.Deps{
		Scraper:  scraper,
		Registry: registry,
		Results:  bdClient,
		Archive:  repository.NewArchive(db),
		Backfill: backfillService,
		Health:   health,
		Metrics:  metrics,
		Logger:   logger.Named("rest"),
	}
	if redisCache != nil {
		deps.Cache = redisCache
	}
	restServer := rest.NewServer(cfg.Server.RESTPort, deps)
	go func() {
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("REST server error", zap.Error(err))
		}
	}()

	wsServer := websocket.NewServer(ctx, hub, logger.Named("websocket"))
	go func() {
		if err := wsServer.Start(cfg.Server.WSPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("WebSocket server error", zap.Error(err))
		}
	}()

	log.Info("started",
		zap.String("rest", "http://0.0.0.0:"+cfg.Server.RESTPort),
		zap.String("websocket", "ws://0.0.0.0:"+cfg.Server.WSPort))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Warn("scheduler shutdown error", zap.Error(err))
		}
	}
	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("REST server shutdown error", zap.Error(err))
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("WebSocket server shutdown error", zap.Error(err))
	}
	if err := backfillService.Shutdown(shutdownCtx); err != nil {
		log.Warn("backfill shutdown error", zap.Error(err))
	}
	cancel()

	log.Info("stopped")
}

// connectRedis retries while Redis comes up alongside the service.
func connectRedis(cfg config.RedisConfig, log *zap.Logger) *cache.RedisCache {
	const retryDelay = 2 * time.Second
	attempts := cfg.MaxRetry
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		rc, err := cache.NewRedisCache(cfg.URL)
		if err == nil {
			log.Info("connected to redis")
			return rc
		}
		lastErr = err
		if i < attempts-1 {
			log.Warn("redis connection failed, retrying",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", attempts),
				zap.Duration("retry_in", retryDelay),
				zap.Error(err))
			time.Sleep(retryDelay)
		}
	}
	log.Fatal("failed to connect to redis", zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil
}
