package filings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/clients/edgar"
	"github.com/holdiq/holdiq/internal/modules/holdings"
)

// ParserService drains the 13F parse queue: fetch the filing document,
// parse its information table and replace the stored positions for that
// (manager, period) pair.
type ParserService struct {
	client    *edgar.Client
	repo      *Repository
	positions *holdings.PositionRepository
	log       zerolog.Logger
}

// NewParserService creates a new parser service
func NewParserService(
	client *edgar.Client,
	repo *Repository,
	positions *holdings.PositionRepository,
	log zerolog.Logger,
) *ParserService {
	return &ParserService{
		client:    client,
		repo:      repo,
		positions: positions,
		log:       log.With().Str("service", "13f_parser").Logger(),
	}
}

// ParseOutcome reports one processed queue item.
type ParseOutcome struct {
	AccessionNo string
	Succeeded   bool
	Err         string
}

// ParseNext processes the oldest queued 13F filing. Returns nil when
// the queue is empty. A failed parse is recorded and dequeued so the
// queue keeps moving; ResetQueue re-enqueues failures for another pass.
func (s *ParserService) ParseNext(ctx context.Context) (*ParseOutcome, error) {
	item, err := s.repo.NextPending13F()
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	outcome := &ParseOutcome{AccessionNo: item.AccessionNo}

	filing, err := s.repo.ByAccession(item.AccessionNo)
	if err != nil {
		return nil, err
	}
	if filing == nil || filing.CIK == "" || filing.ReportPeriod == "" {
		// Inventory row is missing or incomplete; nothing to attach
		// positions to, so record and move on.
		s.log.Warn().Str("accession_no", item.AccessionNo).Msg("Queued filing has no usable inventory row")
		outcome.Err = "missing filing metadata"
		if err := s.repo.RecordParseResult(item.AccessionNo, item.FormType, false, outcome.Err); err != nil {
			return nil, err
		}
		return outcome, s.repo.Dequeue(item.AccessionNo)
	}

	s.log.Info().
		Str("accession_no", item.AccessionNo).
		Str("url", item.FilingURL).
		Msg("Parsing 13F filing")

	if err := s.parseOne(ctx, item, filing.CIK, filing.ReportPeriod); err != nil {
		s.log.Error().Err(err).Str("accession_no", item.AccessionNo).Msg("13F parse failed")
		outcome.Err = err.Error()
		if recErr := s.repo.RecordParseResult(item.AccessionNo, item.FormType, false, outcome.Err); recErr != nil {
			return nil, recErr
		}
		return outcome, s.repo.Dequeue(item.AccessionNo)
	}

	outcome.Succeeded = true
	if err := s.repo.RecordParseResult(item.AccessionNo, item.FormType, true, ""); err != nil {
		return nil, err
	}
	return outcome, s.repo.Dequeue(item.AccessionNo)
}

// DrainQueue parses up to max queued filings (0 means until empty).
// Returns counts of successful and failed parses.
func (s *ParserService) DrainQueue(ctx context.Context, max int) (parsed, failed int, err error) {
	for max <= 0 || parsed+failed < max {
		if err := ctx.Err(); err != nil {
			return parsed, failed, err
		}

		outcome, pErr := s.ParseNext(ctx)
		if pErr != nil {
			return parsed, failed, pErr
		}
		if outcome == nil {
			break
		}
		if outcome.Succeeded {
			parsed++
		} else {
			failed++
		}
	}

	return parsed, failed, nil
}

func (s *ParserService) parseOne(ctx context.Context, item *QueueItem, cik, period string) error {
	raw, err := s.client.FetchDocument(ctx, item.FilingURL)
	if err != nil {
		return err
	}

	positions, err := edgar.ParseInformationTable(raw)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return fmt.Errorf("no positions found in information table")
	}

	return s.positions.ReplaceForPeriod(cik, period, positions)
}
