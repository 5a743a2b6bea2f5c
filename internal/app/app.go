package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"proxywarden/internal/app/version"
	"proxywarden/internal/config"
	"proxywarden/internal/database"
	"proxywarden/internal/domain"
	"proxywarden/internal/geolite"
	"proxywarden/internal/jobs/checker"
	"proxywarden/internal/jobs/rotation"
	"proxywarden/internal/jobs/runtime"
	"proxywarden/internal/jobs/scraper"
	"proxywarden/internal/ledger"
	"proxywarden/internal/orchestrator"
	"proxywarden/internal/storage"
	"proxywarden/internal/support"
	"proxywarden/internal/validationlog"
)

const runLockTTL = time.Minute

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	opts, helped, err := ParseOptions(os.Args[1:])
	if err != nil {
		return err
	}
	if helped {
		return nil
	}
	if opts.Version {
		fmt.Println(version.Get())
		return nil
	}

	// The handler only cancels the context; the orchestrator owns the final
	// save.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Execute(ctx, opts)
}

// Execute performs one refresh run with opts. Cancelling ctx stops the run
// gracefully: probes in flight finish and the pools are saved.
func Execute(ctx context.Context, opts Options) error {
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	runID := uuid.NewString()
	logger := log.With("run", runID)
	logger.Info("Starting proxywarden", "version", version.Get().BuildVersion, "data_dir", opts.DataDir)

	if err := storage.EnsureDataDir(opts.DataDir); err != nil {
		return err
	}

	cfg, err := config.ReadSettings(opts.SettingsPath())
	if err != nil {
		return err
	}
	workers := cfg.Workers()
	if opts.Workers > 0 {
		workers = config.ClampWorkers(opts.Workers)
	}

	sources, err := config.LoadSources(opts.Sources, config.NewSourceBlocklist(cfg.Scraper.BlockedSources))
	if err != nil {
		logger.Error("Loading sources failed, only existing pools will be validated", "path", opts.Sources, "error", err)
		sources = nil
	}
	logger.Info("Loaded sources", "count", len(sources))

	deadLedger := ledger.New(opts.LedgerPath(), cfg.DeadRetention())
	if _, err := deadLedger.Load(); err != nil {
		logger.Error("Loading dead proxies failed", "path", opts.LedgerPath(), "error", err)
	}
	logger.Info("Loaded dead proxies", "count", deadLedger.Len(), "retention", cfg.DeadRetention())

	csvLog, err := validationlog.OpenCSV(opts.ValidationLogPath())
	if err != nil {
		return err
	}
	recorders := []validationlog.Recorder{csvLog}

	if opts.Database {
		sink, closeSink, err := openRecordSink(opts, runID, logger)
		if err != nil {
			return err
		}
		defer closeSink()
		recorders = append(recorders, sink)
	}

	managerOpts := []storage.ManagerOption{storage.WithSaveInterval(cfg.SaveInterval())}

	var lockClient redis.Cmdable
	if opts.RedisURL != "" {
		client, err := support.NewRedisClient(ctx, opts.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		lockClient = client
		managerOpts = append(managerOpts, storage.WithMirror(runtime.NewPoolMirror(client, opts.RedisPrefix)))
		logger.Info("Mirroring pools to Redis", "prefix", opts.RedisPrefix)
	}

	manager := storage.NewManager(opts.DataDir, storage.NewPools(), managerOpts...)

	prober := checker.NewProber(checker.HTTPFetcher{}, validationlog.NewTee(recorders...), deadLedger, checker.ProberConfig{
		Timeout:     cfg.ProbeTimeout(),
		MaxAttempts: cfg.MaxAttempts(),
		TestURLs:    cfg.TestURLs(),
		ProbeRate:   cfg.Checker.ProbeRate,
	}, checker.WithLogger(logger))

	logPerformanceConfig(logger, workers, cfg.BatchSize(), cfg.ProbeTimeout())

	deps := orchestrator.Deps{
		Ledger:  deadLedger,
		Checker: prober,
		Fetcher: scraper.NewFetcher(cfg.FetchTimeout()),
		Manager: manager,
		Sources: sources,
		Logger:  logger,
		OnRound: func(t domain.ProxyType, stats rotation.RoundStats) {
			logger.Debug("Round stats", "type", t, "round", stats.Number, "alive", stats.Alive, "sources_left", stats.Remaining)
		},
	}

	var bar *progressBar
	if opts.Progress {
		bar = newProgressBar()
		defer bar.Finish()
		deps.OnResult = bar.Observe
		deps.OnState = bar.Describe
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Workers:   workers,
		BatchSize: cfg.BatchSize(),
	}, deps)
	if err != nil {
		return err
	}

	run := func(runCtx context.Context) error {
		if lockClient != nil {
			stopHeartbeat := runtime.LaunchRunHeartbeat(runCtx, lockClient, opts.RedisPrefix, runID)
			defer stopHeartbeat()

			if active, err := runtime.CountActiveRuns(runCtx, lockClient, opts.RedisPrefix); err != nil {
				logger.Warn("Counting active runs failed", "error", err)
			} else {
				logger.Debug("Run heartbeat registered", "active_runs", active)
			}
		}

		stopSaving := manager.Start(runCtx)
		defer stopSaving()

		report, err := orch.Run(runCtx)
		logReport(logger, report)
		return err
	}

	return support.RunExclusive(ctx, lockClient, opts.RedisPrefix+"lock", runLockTTL, opts.LockWait, run)
}

func openRecordSink(opts Options, runID string, logger *log.Logger) (validationlog.Recorder, func(), error) {
	db, err := database.SetupDB()
	if err != nil {
		return nil, nil, err
	}

	var enrich database.Enricher
	var lookup *geolite.CountryLookup
	if opts.GeoLiteDB != "" {
		lookup, err = geolite.OpenCountryLookup(opts.GeoLiteDB)
		if err != nil {
			logger.Warn("GeoLite database unavailable, records will not carry a country", "error", err)
		} else {
			enrich = lookup.Enrich
		}
	}

	sink := database.NewRecordSink(db, runID, enrich)
	logger.Info("Storing validation records in the database")

	return sink, func() {
		sink.Close()
		stored, dropped := sink.Stats()
		logger.Info("Database sink closed", "stored", stored, "dropped", dropped)
		if err := lookup.Close(); err != nil {
			logger.Warn("Closing GeoLite database failed", "error", err)
		}
		if err := database.Close(db); err != nil {
			logger.Warn("Closing database failed", "error", err)
		}
	}, nil
}
