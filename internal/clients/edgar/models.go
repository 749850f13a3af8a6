package edgar

import (
	"fmt"
	"strings"

	"github.com/holdiq/holdiq/internal/domain"
)

// NormalizedFiling is a domain.Filing; the alias keeps call sites in
// this package readable.
type NormalizedFiling = domain.Filing

// searchResponse mirrors the EFTS response envelope
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

type searchHit struct {
	Source hitSource `json:"_source"`
}

type hitSource struct {
	CIK             string   `json:"cik"`
	Adsh            string   `json:"adsh"`
	AccessionNo     string   `json:"accessionNo"`
	Ticker          string   `json:"ticker"`
	DisplayNames    []string `json:"display_names"`
	Name            string   `json:"name"`
	FormType        string   `json:"formType"`
	FiledAt         string   `json:"filedAt"`
	PeriodOfReport  string   `json:"periodOfReport"`
	ReportDate      string   `json:"reportDate"`
	PrimaryDocument string   `json:"primaryDocument"`
	Size            int64    `json:"size"`
}

// normalizeHit flattens one EFTS hit into a filing record, deriving the
// archive URL when the hit does not carry one.
func normalizeHit(hit searchHit) NormalizedFiling {
	src := hit.Source

	cik := strings.TrimLeft(src.CIK, "0")
	accNo := src.Adsh
	if accNo == "" {
		accNo = src.AccessionNo
	}

	company := src.Name
	if len(src.DisplayNames) > 0 {
		company = src.DisplayNames[0]
	}

	period := src.PeriodOfReport
	if period == "" {
		period = src.ReportDate
	}

	var filingURL string
	accNoDash := strings.ReplaceAll(accNo, "-", "")
	if cik != "" && accNoDash != "" && src.PrimaryDocument != "" {
		filingURL = fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
			cik, accNoDash, src.PrimaryDocument)
	}

	return NormalizedFiling{
		AccessionNo:     accNo,
		CIK:             cik,
		Company:         company,
		Ticker:          src.Ticker,
		FormType:        src.FormType,
		FiledAt:         src.FiledAt,
		ReportPeriod:    period,
		PrimaryDocument: src.PrimaryDocument,
		FilingURL:       filingURL,
		Size:            src.Size,
	}
}

// TierForms is the curated set of form types scraped by default.
var TierForms = []string{
	"13F-HR", "13F-NT", "13FCONP",
	"NPORT-P", "NPORT-EX",
	"N-CSR", "N-CSRS", "N-Q",
	"10-K", "10-K/A", "10-Q", "10-Q/A", "8-K",
	"20-F", "6-K", "40-F",
	"S-1", "S-3", "S-4", "S-8",
	"3", "4", "5",
	"DEF 14A", "DEFA14A",
}
