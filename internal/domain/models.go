package domain

// Filing is one normalized EDGAR filing record, shared between the
// scraper client and the filing inventory.
type Filing struct {
	AccessionNo     string `json:"accessionNo"`
	CIK             string `json:"cik"`
	Company         string `json:"company"`
	Ticker          string `json:"ticker,omitempty"`
	FormType        string `json:"formType"`
	FiledAt         string `json:"filedAt"`
	ReportPeriod    string `json:"reportPeriod,omitempty"`
	PrimaryDocument string `json:"primaryDocument,omitempty"`
	FilingURL       string `json:"filingUrl"`
	Size            int64  `json:"size,omitempty"`
}

// Is13F reports whether the filing is a 13F holdings report (including
// amendments) that the parser should pick up.
func (f Filing) Is13F() bool {
	return f.FormType == "13F-HR" || f.FormType == "13F-HR/A"
}
