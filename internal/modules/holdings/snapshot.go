package holdings

import (
	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/domain"
)

// SnapshotLoader loads one manager quarter as a map keyed by CUSIP, with
// each position's weight within the total reported portfolio value.
type SnapshotLoader struct {
	repo *PositionRepository
	log  zerolog.Logger
}

// NewSnapshotLoader creates a new snapshot loader
func NewSnapshotLoader(repo *PositionRepository, log zerolog.Logger) *SnapshotLoader {
	return &SnapshotLoader{
		repo: repo,
		log:  log.With().Str("component", "snapshot_loader").Logger(),
	}
}

// Load returns all positions for (managerCIK, reportPeriod) keyed by
// CUSIP. A period with no stored rows yields an empty map, not an error;
// callers decide how to treat zero-position quarters. Storage failures
// surface as DataAccessError.
func (l *SnapshotLoader) Load(managerCIK, reportPeriod string) (map[string]Position, error) {
	rows, err := l.repo.PositionsForPeriod(managerCIK, reportPeriod)
	if err != nil {
		return nil, domain.NewDataAccessError("load snapshot", err)
	}

	totalValue := 0.0
	for _, pos := range rows {
		totalValue += pos.ValueUSD
	}
	if totalValue < 0 {
		totalValue = 0
	}

	snapshot := make(map[string]Position, len(rows))
	for _, pos := range rows {
		if totalValue > 0 {
			pos.WeightPct = pos.ValueUSD / totalValue * 100.0
		} else {
			pos.WeightPct = 0.0
		}
		snapshot[pos.CUSIP] = pos
	}

	return snapshot, nil
}
