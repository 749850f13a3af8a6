package edgar

import (
	"context"
	"fmt"
	"strings"
)

// FetchMasterIndex downloads and parses one quarterly master.idx file.
// It is the robust fallback path when EFTS is unavailable. Format:
//
//	CIK|Company Name|Form Type|Date Filed|Filename
//
// preceded by a header block terminated by a dashed separator line.
// forms filters the result to the given form types; empty means all.
func (c *Client) FetchMasterIndex(ctx context.Context, year, quarter int, forms []string) ([]NormalizedFiling, error) {
	if quarter < 1 || quarter > 4 {
		return nil, fmt.Errorf("invalid quarter: %d", quarter)
	}

	url := fmt.Sprintf(masterURLTmpl, year, quarter)
	raw, err := c.FetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	formsSet := make(map[string]struct{}, len(forms))
	for _, f := range forms {
		formsSet[strings.TrimSpace(f)] = struct{}{}
	}

	lines := strings.Split(string(raw), "\n")
	sepIdx := -1
	for i, ln := range lines {
		if strings.HasPrefix(ln, "-----") {
			sepIdx = i
			break
		}
	}
	if sepIdx < 0 {
		return nil, fmt.Errorf("unexpected master.idx format for %s: no separator line", url)
	}

	var filings []NormalizedFiling
	for _, ln := range lines[sepIdx+1:] {
		parts := strings.Split(strings.TrimRight(ln, "\r"), "|")
		if len(parts) != 5 {
			continue
		}

		cik, company, formType, filedAt, filename := parts[0], parts[1], parts[2], parts[3], parts[4]
		if len(formsSet) > 0 {
			if _, ok := formsSet[formType]; !ok {
				continue
			}
		}

		trimmedCIK := strings.TrimLeft(cik, "0")
		if trimmedCIK == "" {
			trimmedCIK = cik
		}

		primaryDoc := filename
		if idx := strings.LastIndex(filename, "/"); idx >= 0 {
			primaryDoc = filename[idx+1:]
		}

		filings = append(filings, NormalizedFiling{
			CIK:             trimmedCIK,
			Company:         company,
			FormType:        formType,
			FiledAt:         filedAt,
			PrimaryDocument: primaryDoc,
			FilingURL:       "https://www.sec.gov/Archives/" + filename,
			// master.idx carries no accession number; derive a stable
			// key from the archive path so upserts stay idempotent.
			AccessionNo: accessionFromFilename(filename),
		})
	}

	return filings, nil
}

// accessionFromFilename extracts the accession number embedded in a
// master.idx archive path (e.g. .../0001234567-24-000123.txt).
func accessionFromFilename(filename string) string {
	base := filename
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, ".txt")
}
