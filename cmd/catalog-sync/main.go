package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/catalog-sync/internal/api"
	"github.com/maltedev/catalog-sync/internal/browser"
	"github.com/maltedev/catalog-sync/internal/cms"
	"github.com/maltedev/catalog-sync/internal/config"
	"github.com/maltedev/catalog-sync/internal/database"
	"github.com/maltedev/catalog-sync/internal/events"
	"github.com/maltedev/catalog-sync/internal/media"
	"github.com/maltedev/catalog-sync/internal/pipeline"
	"github.com/maltedev/catalog-sync/internal/publisher"
	"github.com/maltedev/catalog-sync/internal/scraper"
	"github.com/maltedev/catalog-sync/internal/storage"
	"github.com/maltedev/catalog-sync/internal/translate"
	"github.com/maltedev/catalog-sync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	profile := flag.String("profile", "", "site profile YAML (defaults to $SITE_PROFILE or site.yaml)")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var (
		cfg *config.Config
		err error
	)
	if *profile != "" {
		cfg, err = config.LoadWithProfile(*profile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("catalog sync failed", "error", err)
		stop()
		os.Exit(1)
	}

	log.Info("catalog sync complete")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var redisClient *redis.Client
	if cfg.Storage.LedgerBackend == config.BackendRedis || cfg.Redis.EventStream != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	var ledger storage.Ledger
	switch cfg.Storage.LedgerBackend {
	case config.BackendRedis:
		ledger = storage.NewRedisLedger(redisClient, cfg.Storage.RedisKey)
	default:
		fileLedger := storage.LoadFileLedger(cfg.Storage.LedgerPath, log)
		log.Info("ledger loaded", "path", cfg.Storage.LedgerPath, "processed", fileLedger.Len())
		ledger = fileLedger
	}

	var (
		recorders pipeline.Recorders
		history   api.History
	)
	if cfg.Database.Enabled {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repo := database.NewPublicationRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		recorders = append(recorders, repo)
		history = repo
	}
	if cfg.Redis.EventStream != "" {
		recorders = append(recorders, events.NewPublisher(redisClient, cfg.Redis.EventStream, log))
	}

	b, err := browser.New(&browser.Options{
		Headless:  cfg.Browser.Headless,
		Timeout:   cfg.Browser.Timeout,
		UserAgent: cfg.Browser.UserAgent,
		Locale:    cfg.Browser.Locale,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	defer b.Close()

	listingPage, err := b.NewRenderer("listing")
	if err != nil {
		return err
	}
	defer listingPage.Close()

	detailPage, err := b.NewRenderer("detail")
	if err != nil {
		return err
	}
	defer detailPage.Close()

	translator, err := translate.New(ctx, cfg.Translator)
	if err != nil {
		return err
	}
	defer translator.Close()

	downloader := media.NewDownloader(cfg.Pipeline.ImageDir, cfg.CMS.Timeout, log)
	if err := downloader.EnsureDir(); err != nil {
		return err
	}

	pub := publisher.New(
		downloader,
		cms.NewClient(cfg.CMS, log),
		translator,
		cfg.Site.Prompts,
		cfg.Pipeline.ImageConcurrency,
		log,
	)
	if cfg.Archive.Enabled() {
		archiver, err := media.NewS3Archiver(ctx, cfg.Archive, log)
		if err != nil {
			return err
		}
		pub.SetArchiver(archiver)
	}

	runner := pipeline.NewRunner(
		ledger,
		scraper.NewListingWalker(listingPage, cfg.Site, cfg.Pipeline.MaxPages, log),
		scraper.NewProductExtractor(detailPage, cfg.Site, log),
		pub,
		cfg.Pipeline.FailurePolicy,
		log,
	)
	if len(recorders) > 0 {
		runner.SetRecorder(recorders)
	}

	if cfg.Server.Addr != "" {
		server := api.NewServer(cfg.Server.Addr, api.NewHandlers(runner, ledger, history, log))
		go func() {
			log.Info("status server starting", "addr", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("status server shutdown failed", "error", err)
			}
		}()
	}

	return runner.Run(ctx)
}
