package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/journey-reconciler/internal/catalog"
	"github.com/noah-isme/journey-reconciler/internal/handler"
	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/repository"
	"github.com/noah-isme/journey-reconciler/internal/service"
	"github.com/noah-isme/journey-reconciler/pkg/cache"
	"github.com/noah-isme/journey-reconciler/pkg/config"
	"github.com/noah-isme/journey-reconciler/pkg/database"
	"github.com/noah-isme/journey-reconciler/pkg/export"
	"github.com/noah-isme/journey-reconciler/pkg/logger"
	"github.com/noah-isme/journey-reconciler/pkg/storage"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	metrics  *service.MetricsService
	analyzer *service.Analyzer
	batches  *service.BatchService
	history  *service.HistoryService
	exports  *service.ExportService
}

// loadBase reads configuration, builds the logger and loads the catalog.
// A catalog that fails validation stops the process before any data is touched.
func loadBase() (*config.Config, *zap.Logger, *service.Analyzer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		_ = logr.Sync()
		return nil, nil, nil, fmt.Errorf("load catalog: %w", err)
	}

	return cfg, logr, service.NewAnalyzer(cat, logr), nil
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, logr, analyzer, err := loadBase()
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		_ = logr.Sync()
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if _, err := database.RunMigrations(db.DB, database.MigrateUp, logr); err != nil {
			_ = db.Close()
			_ = logr.Sync()
			return nil, err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, history cache disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	termRepo := repository.NewTermRepository(db)
	journeyRepo := repository.NewJourneyRepository(db)
	rejectionRepo := repository.NewRejectionRepository(db)

	journeys := service.NewJourneyService(journeyRepo, termRepo, validate, logr)
	batches := service.NewBatchService(
		studentRepo,
		enrollmentRepo,
		rejectionRepo,
		journeys,
		analyzer,
		cacheRepo,
		metrics,
		validate,
		service.BatchConfig{
			BatchSize:           cfg.Reconciliation.BatchSize,
			Workers:             cfg.Reconciliation.Workers,
			ConfidenceThreshold: cfg.Reconciliation.ConfidenceThreshold,
			Mode:                models.JourneyMode(cfg.Reconciliation.JourneyMode),
			ValidAttendanceFlag: cfg.Reconciliation.ValidAttendanceFlag,
			HistoryTTL:          cfg.History.CacheTTL,
		},
		logr,
	)
	history := service.NewHistoryService(
		studentRepo,
		enrollmentRepo,
		analyzer,
		cacheRepo,
		metrics,
		cfg.Reconciliation.ValidAttendanceFlag,
		cfg.History.CacheTTL,
		logr,
	)

	var exports *service.ExportService
	if store, err := storage.NewLocalStorage(cfg.Export.Dir); err != nil {
		logr.Warn("export directory unavailable", zap.String("dir", cfg.Export.Dir), zap.Error(err))
	} else {
		var csvOpts []export.CSVOption
		if cfg.Export.CSVBOM {
			csvOpts = append(csvOpts, export.WithBOM())
		}
		exports = service.NewExportService(journeyRepo, store, logr, export.NewCSVExporter(csvOpts...), export.NewPDFExporter(), export.NewXLSXExporter())
	}

	return &app{
		cfg:      cfg,
		logger:   logr,
		db:       db,
		redis:    redisClient,
		metrics:  metrics,
		analyzer: analyzer,
		batches:  batches,
		history:  history,
		exports:  exports,
	}, nil
}

// probes feeds the readiness endpoint. Redis only appears when it connected at startup.
func (a *app) probes() map[string]handler.Probe {
	probes := map[string]handler.Probe{"postgres": a.db.PingContext}
	if a.redis != nil {
		probes["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	return probes
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}
