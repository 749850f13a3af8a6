package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/clients/edgar"
	"github.com/holdiq/holdiq/internal/config"
	"github.com/holdiq/holdiq/internal/database"
	"github.com/holdiq/holdiq/internal/modules/briefs"
	"github.com/holdiq/holdiq/internal/modules/delivery"
	"github.com/holdiq/holdiq/internal/modules/delta"
	"github.com/holdiq/holdiq/internal/modules/filings"
	"github.com/holdiq/holdiq/internal/modules/holdings"
	"github.com/holdiq/holdiq/internal/modules/subscribers"
	"github.com/holdiq/holdiq/internal/reliability"
	"github.com/holdiq/holdiq/internal/scheduler"
	"github.com/holdiq/holdiq/internal/server"
	"github.com/holdiq/holdiq/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting HoldIQ")

	// Initialize database
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileArchive,
		Name:    "holdiq",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// EDGAR client and repositories
	edgarClient := edgar.NewClient(cfg.EdgarUserAgent, cfg.EdgarRateLimit, log)

	filingsRepo := filings.NewRepository(db.Conn(), log)
	positionsRepo := holdings.NewPositionRepository(db.Conn(), log)
	deltaRepo := delta.NewRepository(db.Conn(), log)
	subsRepo := subscribers.NewRepository(db.Conn(), log)
	briefsRepo := briefs.NewRepository(db.Conn(), log)

	// Pipeline services
	scraper := filings.NewScraperService(edgarClient, filingsRepo, cfg.DataDir, log)
	parser := filings.NewParserService(edgarClient, filingsRepo, positionsRepo, log)

	loader := holdings.NewSnapshotLoader(positionsRepo, log)
	classifier := delta.NewClassifier(delta.ClassifierConfig{
		UnchangedCategory: cfg.UnchangedCategory,
	})
	deltaService := delta.NewService(loader, positionsRepo, deltaRepo, classifier, log)

	snapshotBuilder := briefs.NewSnapshotBuilder(loader, positionsRepo, deltaRepo, filingsRepo, log)

	mailer := delivery.NewMailer(cfg.SMTP, log)
	deliveryService := delivery.NewService(db.Conn(), mailer, briefsRepo, subsRepo, log)

	// Scheduler and background jobs
	sched := scheduler.New(log)

	scrapeJob := scheduler.NewScrapeJob(scraper, log)
	parseJob := scheduler.NewParseQueueJob(parser, log)
	deltaJob := scheduler.NewDeltaRebuildJob(deltaService, log)
	deliveryJob := scheduler.NewDeliveryJob(deliveryService, log)

	jobs := []scheduler.Job{scrapeJob, parseJob, deltaJob, deliveryJob}

	mustAddJob(sched, log, "15 6 * * *", scrapeJob)    // daily, after EDGAR's overnight load
	mustAddJob(sched, log, "*/30 * * * *", parseJob)   // keep the queue drained
	mustAddJob(sched, log, "45 7 * * *", deltaJob)     // after the morning scrape+parse
	mustAddJob(sched, log, "30 9 * * *", deliveryJob)  // deliver during business hours

	// Brief generation needs a Gemini key; run without it in dev.
	if cfg.GeminiAPIKey != "" {
		generator, err := briefs.NewGenerator(cfg.GeminiAPIKey, cfg.BriefModel, snapshotBuilder, briefsRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize brief generator")
		}
		briefJob := scheduler.NewBriefGenerationJob(generator, briefsRepo, positionsRepo, subsRepo, log)
		jobs = append(jobs, briefJob)
		mustAddJob(sched, log, "30 8 * * *", briefJob)
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, brief generation disabled")
	}

	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 client")
		}
		backupService := reliability.NewBackupService(db, s3Client, cfg.DataDir, log)
		backupJob := scheduler.NewBackupJob(backupService, cfg.Backup.RetentionDays, log)
		jobs = append(jobs, backupJob)
		mustAddJob(sched, log, "0 2 * * *", backupJob)
	} else {
		log.Info().Msg("S3 backups disabled")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:             log,
		DB:              db,
		Port:            cfg.Port,
		DevMode:         cfg.DevMode,
		FilingsRepo:     filingsRepo,
		DeltaRepo:       deltaRepo,
		DeltaService:    deltaService,
		SubscribersRepo: subsRepo,
		BriefsRepo:      briefsRepo,
		SnapshotBuilder: snapshotBuilder,
	})
	srv.SetJobs(sched, jobs...)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func mustAddJob(sched *scheduler.Scheduler, log zerolog.Logger, schedule string, job scheduler.Job) {
	if err := sched.AddJob(schedule, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
