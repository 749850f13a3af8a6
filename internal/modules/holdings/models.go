package holdings

// Position is one manager's holding in one security for one reporting
// period, as parsed from a 13F information table.
type Position struct {
	CUSIP        string  `json:"cusip"`
	Issuer       string  `json:"issuer"`
	Class        string  `json:"class,omitempty"`
	Shares       float64 `json:"shares"`
	ValueUSD     float64 `json:"value_usd"`
	PutCall      string  `json:"put_call,omitempty"`
	Discretion   string  `json:"discretion,omitempty"`
	VotingSole   int64   `json:"voting_sole,omitempty"`
	VotingShared int64   `json:"voting_shared,omitempty"`
	VotingNone   int64   `json:"voting_none,omitempty"`

	// WeightPct is the position's share of the total reported portfolio
	// value for its period, in percent. Derived, not stored.
	WeightPct float64 `json:"weight_pct"`
}

// ManagerPeriod identifies one reported quarter for one manager.
type ManagerPeriod struct {
	ManagerCIK   string
	ReportPeriod string
}
