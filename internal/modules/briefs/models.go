// Package briefs assembles manager snapshots and turns them into
// AI-written quarterly summaries for subscribers.
package briefs

import (
	"github.com/holdiq/holdiq/internal/modules/delta"
	"github.com/holdiq/holdiq/internal/modules/holdings"
)

// Brief is one generated summary for a (manager, period) pair.
type Brief struct {
	ID           string `json:"id"`
	ManagerCIK   string `json:"cik"`
	ReportPeriod string `json:"report_period"`
	Model        string `json:"model"`
	BriefMD      string `json:"brief_md"`
	CreatedAt    string `json:"created_at"`
}

// ManagerSnapshot is the structured input handed to the AI layer: the
// current-period portfolio, its summary statistics and the quarter-over-
// quarter changes in the reporting order.
type ManagerSnapshot struct {
	ManagerCIK   string `json:"cik"`
	ManagerName  string `json:"manager_name,omitempty"`
	ReportPeriod string `json:"report_period"`
	FiledAt      string `json:"filed_at,omitempty"`
	FormType     string `json:"form_type"`

	Stats             delta.PortfolioStats `json:"portfolio_stats"`
	TopHoldings       []holdings.Position  `json:"top_holdings"`
	LargestPosition   *holdings.Position   `json:"largest_position,omitempty"`
	TinyPositionCount int                  `json:"tiny_position_count"`

	Deltas []delta.DeltaRecord `json:"deltas"`
}
