// Package delta computes quarter-over-quarter position changes for 13F
// managers: aligning two period snapshots, classifying each change and
// deriving portfolio-level statistics for the reporting layer.
package delta

import "github.com/holdiq/holdiq/internal/modules/holdings"

// ChangeType labels the direction of a position change between two
// consecutive reporting periods.
type ChangeType string

const (
	ChangeNew      ChangeType = "new"
	ChangeClosed   ChangeType = "closed"
	ChangeIncrease ChangeType = "increase"
	ChangeDecrease ChangeType = "decrease"
	// ChangeUnchanged is only emitted when the classifier is configured
	// with UnchangedCategory; the default scheme folds zero-change
	// positions into the value-direction test.
	ChangeUnchanged ChangeType = "unchanged"
)

// Priority returns the downstream ordering rank of a change type. The
// reporting layer consumes deltas ordered new, increase, decrease,
// closed; prompt construction depends on this ordering.
func (t ChangeType) Priority() int {
	switch t {
	case ChangeNew:
		return 1
	case ChangeIncrease:
		return 2
	case ChangeDecrease:
		return 3
	case ChangeClosed:
		return 4
	default:
		return 5
	}
}

// Pair aligns one security across two consecutive periods. Prev is nil
// for newly acquired positions, Curr is nil for fully exited ones.
type Pair struct {
	CUSIP string
	Prev  *holdings.Position
	Curr  *holdings.Position
}

// DeltaRecord is the computed change in one position between two
// consecutive reporting periods, keyed by the current period.
type DeltaRecord struct {
	ManagerCIK   string     `json:"cik"`
	ReportPeriod string     `json:"report_period"`
	CUSIP        string     `json:"cusip"`
	CompanyName  string     `json:"company_name"`
	ChangeType   ChangeType `json:"delta_type"`

	OldShares   float64 `json:"old_shares"`
	NewShares   float64 `json:"new_shares"`
	DeltaShares float64 `json:"delta_shares"`

	OldValueUSD   float64 `json:"old_value_usd"`
	NewValueUSD   float64 `json:"new_value_usd"`
	DeltaValueUSD float64 `json:"delta_value_usd"`

	OldWeightPct   float64 `json:"old_weight_pct"`
	NewWeightPct   float64 `json:"new_weight_pct"`
	DeltaWeightPct float64 `json:"delta_weight_pct"`

	// RankInPortfolio is the 1-based rank by current-period market
	// value; nil for closed positions.
	RankInPortfolio *int `json:"rank_in_portfolio,omitempty"`
}

// PortfolioStats summarizes one current-period portfolio.
type PortfolioStats struct {
	TotalValueUSD         float64        `json:"total_value_usd"`
	PositionCount         int            `json:"position_count"`
	Top10ConcentrationPct float64        `json:"top10_concentration_pct"`
	Ranks                 map[string]int `json:"-"`
}

// BatchResult reports the outcome of a full delta rebuild.
type BatchResult struct {
	PairsProcessed int `json:"pairs_processed"`
	PairsFailed    int `json:"pairs_failed"`
	RowsWritten    int `json:"rows_written"`
}
