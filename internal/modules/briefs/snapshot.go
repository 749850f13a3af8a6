package briefs

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/domain"
	"github.com/holdiq/holdiq/internal/modules/delta"
	"github.com/holdiq/holdiq/internal/modules/filings"
	"github.com/holdiq/holdiq/internal/modules/holdings"
)

const (
	topHoldingsLimit = 25
	// Positions under this weight count as "tiny" in the snapshot stats
	tinyWeightPct = 0.1
)

// SnapshotBuilder assembles the structured manager snapshot the brief
// generator consumes.
type SnapshotBuilder struct {
	loader    *holdings.SnapshotLoader
	positions *holdings.PositionRepository
	deltas    *delta.Repository
	filings   *filings.Repository
	log       zerolog.Logger
}

// NewSnapshotBuilder creates a new snapshot builder
func NewSnapshotBuilder(
	loader *holdings.SnapshotLoader,
	positions *holdings.PositionRepository,
	deltas *delta.Repository,
	filingsRepo *filings.Repository,
	log zerolog.Logger,
) *SnapshotBuilder {
	return &SnapshotBuilder{
		loader:    loader,
		positions: positions,
		deltas:    deltas,
		filings:   filingsRepo,
		log:       log.With().Str("component", "snapshot_builder").Logger(),
	}
}

// Build assembles the snapshot for one (manager, period) pair. An empty
// reportPeriod selects the manager's latest reported quarter.
func (b *SnapshotBuilder) Build(managerCIK, reportPeriod string) (*ManagerSnapshot, error) {
	if reportPeriod == "" {
		latest, err := b.positions.LatestPeriod(managerCIK)
		if err != nil {
			return nil, domain.NewDataAccessError("find latest period", err)
		}
		reportPeriod = latest
	}

	snap := &ManagerSnapshot{
		ManagerCIK:   managerCIK,
		ReportPeriod: reportPeriod,
		FormType:     "13F-HR",
	}

	if filing, err := b.filings.Latest13FForManager(managerCIK, reportPeriod); err != nil {
		return nil, domain.NewDataAccessError("load filing info", err)
	} else if filing != nil {
		snap.ManagerName = filing.Company
		snap.FiledAt = filing.FiledAt
		snap.FormType = filing.FormType
	}

	positions, err := b.loader.Load(managerCIK, reportPeriod)
	if err != nil {
		return nil, err
	}

	snap.Stats = delta.Aggregate(positions)

	sorted := make([]holdings.Position, 0, len(positions))
	for _, pos := range positions {
		sorted = append(sorted, pos)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].WeightPct != sorted[j].WeightPct {
			return sorted[i].WeightPct > sorted[j].WeightPct
		}
		return sorted[i].CUSIP < sorted[j].CUSIP
	})

	for _, pos := range sorted {
		if pos.WeightPct < tinyWeightPct {
			snap.TinyPositionCount++
		}
	}
	if len(sorted) > 0 {
		largest := sorted[0]
		snap.LargestPosition = &largest
	}

	limit := topHoldingsLimit
	if len(sorted) < limit {
		limit = len(sorted)
	}
	snap.TopHoldings = sorted[:limit]

	// Repository ordering is the reporting contract: new, increase,
	// decrease, closed, each by descending absolute value delta.
	deltas, err := b.deltas.ListForPeriod(managerCIK, reportPeriod)
	if err != nil {
		return nil, domain.NewDataAccessError("load delta records", err)
	}
	snap.Deltas = deltas

	return snap, nil
}
