package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/clients/edgar"
	"github.com/holdiq/holdiq/internal/modules/briefs"
	"github.com/holdiq/holdiq/internal/modules/delivery"
	"github.com/holdiq/holdiq/internal/modules/delta"
	"github.com/holdiq/holdiq/internal/modules/filings"
	"github.com/holdiq/holdiq/internal/modules/holdings"
	"github.com/holdiq/holdiq/internal/modules/subscribers"
	"github.com/holdiq/holdiq/internal/reliability"
)

const (
	// How far back the periodic scrape looks. 13F filings trail the
	// quarter end by up to 45 days, so four months covers a full cycle.
	scrapeLookbackMonths = 4

	scrapeMaxPages = 50
	parseBatchSize = 200
	jobTimeout     = 30 * time.Minute
)

// ScrapeJob pulls recent 13F filing metadata from EDGAR full-text
// search into the filing inventory.
type ScrapeJob struct {
	scraper *filings.ScraperService
	log     zerolog.Logger
}

// NewScrapeJob creates a new scrape job
func NewScrapeJob(scraper *filings.ScraperService, log zerolog.Logger) *ScrapeJob {
	return &ScrapeJob{
		scraper: scraper,
		log:     log.With().Str("job", "edgar_scrape").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *ScrapeJob) Name() string { return "edgar_scrape" }

// Run executes the scrape job
func (j *ScrapeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := time.Now().UTC()
	query := edgar.SearchQuery{
		Forms:     []string{"13F-HR", "13F-HR/A"},
		StartDate: now.AddDate(0, -scrapeLookbackMonths, 0).Format("2006-01-02"),
		EndDate:   now.Format("2006-01-02"),
	}

	result, err := j.scraper.Scrape(ctx, query, scrapeMaxPages)
	if err != nil {
		return err
	}

	j.log.Info().
		Int("fetched", result.Fetched).
		Int("upserted", result.Upserted).
		Int("enqueued", result.Enqueued).
		Msg("Scrape job finished")
	return nil
}

// ParseQueueJob drains the 13F parse queue.
type ParseQueueJob struct {
	parser *filings.ParserService
	log    zerolog.Logger
}

// NewParseQueueJob creates a new parse queue job
func NewParseQueueJob(parser *filings.ParserService, log zerolog.Logger) *ParseQueueJob {
	return &ParseQueueJob{
		parser: parser,
		log:    log.With().Str("job", "parse_queue").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *ParseQueueJob) Name() string { return "parse_queue" }

// Run executes the parse queue job
func (j *ParseQueueJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	parsed, failed, err := j.parser.DrainQueue(ctx, parseBatchSize)
	if err != nil {
		return err
	}

	j.log.Info().
		Int("parsed", parsed).
		Int("failed", failed).
		Msg("Parse queue job finished")
	return nil
}

// DeltaRebuildJob recomputes quarter-over-quarter position deltas for
// every manager with parsed holdings.
type DeltaRebuildJob struct {
	deltas *delta.Service
	log    zerolog.Logger
}

// NewDeltaRebuildJob creates a new delta rebuild job
func NewDeltaRebuildJob(deltas *delta.Service, log zerolog.Logger) *DeltaRebuildJob {
	return &DeltaRebuildJob{
		deltas: deltas,
		log:    log.With().Str("job", "delta_rebuild").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DeltaRebuildJob) Name() string { return "delta_rebuild" }

// Run executes the delta rebuild job
func (j *DeltaRebuildJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.deltas.RebuildAll(ctx)
	if err != nil {
		return err
	}

	j.log.Info().Str("result", result.Describe()).Msg("Delta rebuild job finished")
	return nil
}

// BriefGenerationJob writes briefs for subscribed managers whose
// latest reported quarter has no brief yet.
type BriefGenerationJob struct {
	generator *briefs.Generator
	briefRepo *briefs.Repository
	positions *holdings.PositionRepository
	subs      *subscribers.Repository
	log       zerolog.Logger
}

// NewBriefGenerationJob creates a new brief generation job
func NewBriefGenerationJob(
	generator *briefs.Generator,
	briefRepo *briefs.Repository,
	positions *holdings.PositionRepository,
	subs *subscribers.Repository,
	log zerolog.Logger,
) *BriefGenerationJob {
	return &BriefGenerationJob{
		generator: generator,
		briefRepo: briefRepo,
		positions: positions,
		subs:      subs,
		log:       log.With().Str("job", "brief_generation").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BriefGenerationJob) Name() string { return "brief_generation" }

// Run executes the brief generation job
func (j *BriefGenerationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	managers, err := j.subs.SubscribedManagers()
	if err != nil {
		return err
	}

	generated := 0
	for _, cik := range managers {
		if err := ctx.Err(); err != nil {
			return err
		}

		period, err := j.positions.LatestPeriod(cik)
		if err != nil {
			return err
		}
		if period == "" {
			continue
		}

		existing, err := j.briefRepo.Latest(cik, period)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		if _, err := j.generator.Generate(ctx, cik, period); err != nil {
			j.log.Error().Err(err).
				Str("cik", cik).
				Str("report_period", period).
				Msg("Brief generation failed")
			continue
		}
		generated++
	}

	j.log.Info().Int("generated", generated).Msg("Brief generation job finished")
	return nil
}

// DeliveryJob sends undelivered briefs to subscribers.
type DeliveryJob struct {
	delivery *delivery.Service
	log      zerolog.Logger
}

// NewDeliveryJob creates a new delivery job
func NewDeliveryJob(deliverySvc *delivery.Service, log zerolog.Logger) *DeliveryJob {
	return &DeliveryJob{
		delivery: deliverySvc,
		log:      log.With().Str("job", "brief_delivery").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DeliveryJob) Name() string { return "brief_delivery" }

// Run executes the delivery job
func (j *DeliveryJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	_, err := j.delivery.DeliverPending(ctx)
	return err
}

// BackupJob creates a database backup and rotates old ones.
type BackupJob struct {
	backup        *reliability.BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backup *reliability.BackupService, retentionDays int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backup:        backup,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string { return "backup" }

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.backup.RotateOldBackups(ctx, j.retentionDays)
}
