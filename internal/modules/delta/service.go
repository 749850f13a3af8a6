package delta

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/domain"
	"github.com/holdiq/holdiq/internal/modules/holdings"
)

// Service runs the delta pipeline: snapshot loading, reconciliation,
// classification, aggregation and the atomic write of the resulting
// delta set. One (manager, period) pair is processed to completion
// before the next; pairs share no state, so the batch is restartable
// and independently repeatable per pair.
type Service struct {
	loader     *holdings.SnapshotLoader
	positions  *holdings.PositionRepository
	repo       *Repository
	classifier *Classifier
	log        zerolog.Logger
}

// NewService creates a new delta service
func NewService(
	loader *holdings.SnapshotLoader,
	positions *holdings.PositionRepository,
	repo *Repository,
	classifier *Classifier,
	log zerolog.Logger,
) *Service {
	return &Service{
		loader:     loader,
		positions:  positions,
		repo:       repo,
		classifier: classifier,
		log:        log.With().Str("service", "delta").Logger(),
	}
}

// RebuildAll recomputes deltas for every manager with at least two
// reported periods. A pair that fails with a data access error is
// logged, counted and skipped; an invariant violation aborts the batch.
func (s *Service) RebuildAll(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	pairs, err := s.positions.ManagerPeriods()
	if err != nil {
		return result, domain.NewDataAccessError("list manager periods", err)
	}

	periodsByManager := make(map[string][]string)
	var managers []string
	for _, mp := range pairs {
		if _, seen := periodsByManager[mp.ManagerCIK]; !seen {
			managers = append(managers, mp.ManagerCIK)
		}
		periodsByManager[mp.ManagerCIK] = append(periodsByManager[mp.ManagerCIK], mp.ReportPeriod)
	}

	for _, cik := range managers {
		periods := periodsByManager[cik]
		// Periods are YYYY-MM-DD, lexicographic sort is chronological
		sort.Strings(periods)

		if len(periods) < 2 {
			continue
		}

		s.log.Info().Str("cik", cik).Int("quarters", len(periods)).Msg("Processing manager")

		for i := 1; i < len(periods); i++ {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			rows, err := s.RebuildPair(cik, periods[i-1], periods[i])
			if err != nil {
				if domain.IsInvariantViolation(err) {
					return result, err
				}
				s.log.Error().Err(err).
					Str("cik", cik).
					Str("prev_period", periods[i-1]).
					Str("curr_period", periods[i]).
					Msg("Delta pair failed, skipping")
				result.PairsFailed++
				continue
			}

			result.PairsProcessed++
			result.RowsWritten += rows
		}
	}

	s.log.Info().
		Int("pairs_processed", result.PairsProcessed).
		Int("pairs_failed", result.PairsFailed).
		Int("rows_written", result.RowsWritten).
		Msg("Delta rebuild complete")
	return result, nil
}

// RebuildForManager recomputes deltas for one manager only.
func (s *Service) RebuildForManager(ctx context.Context, managerCIK string) (BatchResult, error) {
	var result BatchResult

	periods, err := s.positions.DistinctPeriods(managerCIK)
	if err != nil {
		return result, domain.NewDataAccessError("list manager periods", err)
	}
	if len(periods) < 2 {
		return result, nil
	}

	for i := 1; i < len(periods); i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rows, err := s.RebuildPair(managerCIK, periods[i-1], periods[i])
		if err != nil {
			if domain.IsInvariantViolation(err) {
				return result, err
			}
			s.log.Error().Err(err).
				Str("cik", managerCIK).
				Str("curr_period", periods[i]).
				Msg("Delta pair failed, skipping")
			result.PairsFailed++
			continue
		}
		result.PairsProcessed++
		result.RowsWritten += rows
	}

	return result, nil
}

// RebuildPair recomputes the delta set for a single adjacent period
// pair and replaces all stored records for (manager, currPeriod).
// Returns the number of records written.
func (s *Service) RebuildPair(managerCIK, prevPeriod, currPeriod string) (int, error) {
	prev, err := s.loader.Load(managerCIK, prevPeriod)
	if err != nil {
		return 0, err
	}
	curr, err := s.loader.Load(managerCIK, currPeriod)
	if err != nil {
		return 0, err
	}

	records, err := s.ComputePair(managerCIK, currPeriod, prev, curr)
	if err != nil {
		return 0, err
	}

	if err := s.repo.ReplaceForPeriod(managerCIK, currPeriod, records); err != nil {
		return 0, domain.NewDataAccessError("replace delta records", err)
	}

	return len(records), nil
}

// ComputePair derives the delta records for one aligned snapshot pair
// without touching storage. Records come back sorted by change-type
// priority then descending absolute value delta, matching the read
// ordering the reporting layer depends on.
func (s *Service) ComputePair(managerCIK, currPeriod string, prev, curr map[string]holdings.Position) ([]DeltaRecord, error) {
	pairs, err := Reconcile(prev, curr)
	if err != nil {
		return nil, err
	}

	stats := Aggregate(curr)

	records := make([]DeltaRecord, 0, len(pairs))
	for _, pair := range pairs {
		rec, err := s.buildRecord(managerCIK, currPeriod, pair, stats)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		pi, pj := records[i].ChangeType.Priority(), records[j].ChangeType.Priority()
		if pi != pj {
			return pi < pj
		}
		ai, aj := abs(records[i].DeltaValueUSD), abs(records[j].DeltaValueUSD)
		if ai != aj {
			return ai > aj
		}
		return records[i].CUSIP < records[j].CUSIP
	})

	return records, nil
}

func (s *Service) buildRecord(managerCIK, currPeriod string, pair Pair, stats PortfolioStats) (DeltaRecord, error) {
	if pair.Prev == nil && pair.Curr == nil {
		return DeltaRecord{}, domain.NewInvariantViolation(
			"delta record for %s has neither side", pair.CUSIP)
	}

	rec := DeltaRecord{
		ManagerCIK:   managerCIK,
		ReportPeriod: currPeriod,
		CUSIP:        pair.CUSIP,
		ChangeType:   s.classifier.Classify(pair.Prev, pair.Curr),
	}

	// Current side takes precedence for the issuer name
	if pair.Curr != nil {
		rec.CompanyName = pair.Curr.Issuer
	} else {
		rec.CompanyName = pair.Prev.Issuer
	}

	if pair.Prev != nil {
		rec.OldShares = pair.Prev.Shares
		rec.OldValueUSD = pair.Prev.ValueUSD
		rec.OldWeightPct = pair.Prev.WeightPct
	}
	if pair.Curr != nil {
		rec.NewShares = pair.Curr.Shares
		rec.NewValueUSD = pair.Curr.ValueUSD
		rec.NewWeightPct = pair.Curr.WeightPct

		if rank, ok := stats.Ranks[pair.CUSIP]; ok {
			r := rank
			rec.RankInPortfolio = &r
		}
	}

	rec.DeltaShares = rec.NewShares - rec.OldShares
	rec.DeltaValueUSD = rec.NewValueUSD - rec.OldValueUSD
	rec.DeltaWeightPct = rec.NewWeightPct - rec.OldWeightPct

	return rec, nil
}

// Describe returns a short human-readable summary of a batch result.
func (r BatchResult) Describe() string {
	return fmt.Sprintf("%d pairs processed, %d failed, %d rows written",
		r.PairsProcessed, r.PairsFailed, r.RowsWritten)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
