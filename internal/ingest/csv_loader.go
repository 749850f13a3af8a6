// Package ingest loads filing metadata exports into the database. The
// expected format is a CSV with a header row; accessionNo is the
// required de-duplication key.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/domain"
	"github.com/holdiq/holdiq/internal/modules/filings"
)

const batchSize = 10000

// CSVLoader reads filing metadata CSVs and upserts them through the
// filings repository.
type CSVLoader struct {
	repo *filings.Repository
	log  zerolog.Logger
}

// LoadResult reports one CSV load.
type LoadResult struct {
	RowsRead     int `json:"rows_read"`
	RowsUpserted int `json:"rows_upserted"`
	RowsSkipped  int `json:"rows_skipped"`
}

// NewCSVLoader creates a new CSV loader
func NewCSVLoader(repo *filings.Repository, log zerolog.Logger) *CSVLoader {
	return &CSVLoader{
		repo: repo,
		log:  log.With().Str("component", "csv_loader").Logger(),
	}
}

// LoadFile loads one CSV file. Rows are upserted in batches so large
// exports do not hold one long transaction.
func (l *CSVLoader) LoadFile(path string) (LoadResult, error) {
	var result LoadResult

	file, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	result, err = l.Load(file)
	if err != nil {
		return result, err
	}

	l.log.Info().
		Str("path", path).
		Int("rows_read", result.RowsRead).
		Int("rows_upserted", result.RowsUpserted).
		Int("rows_skipped", result.RowsSkipped).
		Msg("CSV load complete")
	return result, nil
}

// Load reads CSV data from r and upserts the filings it describes.
func (l *CSVLoader) Load(r io.Reader) (LoadResult, error) {
	var result LoadResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	if _, ok := cols["accessionNo"]; !ok {
		return result, fmt.Errorf("CSV is missing the required accessionNo column")
	}

	batch := make([]domain.Filing, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.repo.UpsertFilings(batch)
		if err != nil {
			return err
		}
		result.RowsUpserted += n
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("failed to read CSV row %d: %w", result.RowsRead+2, err)
		}
		result.RowsRead++

		filing := rowToFiling(record, cols)
		if filing.AccessionNo == "" {
			result.RowsSkipped++
			continue
		}
		batch = append(batch, filing)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	return result, nil
}

func rowToFiling(record []string, cols map[string]int) domain.Filing {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return record[idx]
	}

	var size int64
	if raw := field("size"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			size = parsed
		}
	}

	return domain.Filing{
		AccessionNo:     field("accessionNo"),
		CIK:             field("cik"),
		Company:         field("company"),
		Ticker:          field("ticker"),
		FormType:        field("formType"),
		FiledAt:         field("filedAt"),
		ReportPeriod:    field("reportPeriod"),
		PrimaryDocument: field("primaryDocument"),
		FilingURL:       field("filingUrl"),
		Size:            size,
	}
}
