package filings

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/clients/edgar"
)

// ScrapeResult reports the outcome of one scrape run.
type ScrapeResult struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
	Enqueued int `json:"enqueued"`
}

// ScraperService pulls filing metadata from EDGAR into the inventory,
// resuming from a checkpoint so interrupted runs pick up where they
// stopped.
type ScraperService struct {
	client  *edgar.Client
	repo    *Repository
	dataDir string
	log     zerolog.Logger
}

// NewScraperService creates a new scraper service
func NewScraperService(client *edgar.Client, repo *Repository, dataDir string, log zerolog.Logger) *ScraperService {
	return &ScraperService{
		client:  client,
		repo:    repo,
		dataDir: dataDir,
		log:     log.With().Str("service", "scraper").Logger(),
	}
}

// Scrape pages through an EFTS search, upserting filings and enqueueing
// 13F holdings reports for parsing. maxPages limits one run; 0 means no
// limit. Progress is checkpointed after every page.
func (s *ScraperService) Scrape(ctx context.Context, query edgar.SearchQuery, maxPages int) (ScrapeResult, error) {
	var result ScrapeResult

	queryHash := edgar.HashQuery(query)
	cpPath := s.checkpointPath()

	cp, err := edgar.LoadCheckpoint(cpPath, queryHash)
	if err != nil {
		s.log.Warn().Err(err).Msg("Checkpoint unreadable, starting fresh")
		cp = edgar.Checkpoint{QueryHash: queryHash}
	}

	pages := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if maxPages > 0 && pages >= maxPages {
			break
		}

		page, err := s.client.Search(ctx, query, cp.FromIndex)
		if err != nil {
			return result, fmt.Errorf("search page at index %d failed: %w", cp.FromIndex, err)
		}
		if len(page.Filings) == 0 {
			break
		}

		upserted, err := s.repo.UpsertFilings(page.Filings)
		if err != nil {
			return result, err
		}

		enqueued := 0
		for _, f := range page.Filings {
			added, err := s.repo.Enqueue13F(f)
			if err != nil {
				return result, err
			}
			if added {
				enqueued++
			}
		}

		result.Fetched += len(page.Filings)
		result.Upserted += upserted
		result.Enqueued += enqueued

		cp.FromIndex += len(page.Filings)
		cp.Seen += len(page.Filings)
		if err := cp.Save(cpPath); err != nil {
			s.log.Warn().Err(err).Msg("Failed to save checkpoint")
		}

		pages++
		s.log.Debug().
			Int("from_index", cp.FromIndex).
			Int("total", page.Total).
			Msg("Scrape page complete")

		if cp.FromIndex >= page.Total {
			break
		}
	}

	s.log.Info().
		Int("fetched", result.Fetched).
		Int("upserted", result.Upserted).
		Int("enqueued", result.Enqueued).
		Msg("Scrape complete")
	return result, nil
}

// ScrapeMasterIndex loads one year of quarterly master.idx archives.
// This is the fallback path when EFTS is unavailable.
func (s *ScraperService) ScrapeMasterIndex(ctx context.Context, year int, forms []string) (ScrapeResult, error) {
	var result ScrapeResult

	for quarter := 1; quarter <= 4; quarter++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rows, err := s.client.FetchMasterIndex(ctx, year, quarter, forms)
		if err != nil {
			s.log.Warn().Err(err).Int("year", year).Int("quarter", quarter).
				Msg("Failed to fetch master index quarter, continuing")
			continue
		}

		upserted, err := s.repo.UpsertFilings(rows)
		if err != nil {
			return result, err
		}

		for _, f := range rows {
			added, err := s.repo.Enqueue13F(f)
			if err != nil {
				return result, err
			}
			if added {
				result.Enqueued++
			}
		}

		result.Fetched += len(rows)
		result.Upserted += upserted
	}

	return result, nil
}

func (s *ScraperService) checkpointPath() string {
	return filepath.Join(s.dataDir, "edgar_scrape.checkpoint")
}
