// Package filings maintains the EDGAR filing inventory and the 13F
// parse queue feeding the holdings tables.
package filings

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/holdiq/holdiq/internal/domain"
)

// QueueItem is one pending entry in the 13F parse queue.
type QueueItem struct {
	AccessionNo string
	FormType    string
	FilingURL   string
	EnqueuedAt  string
}

// Repository handles filings, parse_queue and filings_parsed operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new filings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "filings").Logger(),
	}
}

// UpsertFilings inserts or updates filing rows keyed by accession
// number, in one transaction. Re-running a scrape is idempotent.
func (r *Repository) UpsertFilings(rows []domain.Filing) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO filings
		(accessionNo, cik, company, ticker, formType, filedAt, reportPeriod,
		 primaryDocument, filingUrl, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(accessionNo) DO UPDATE SET
			cik = excluded.cik,
			company = excluded.company,
			ticker = excluded.ticker,
			formType = excluded.formType,
			filedAt = excluded.filedAt,
			reportPeriod = excluded.reportPeriod,
			primaryDocument = excluded.primaryDocument,
			filingUrl = excluded.filingUrl,
			size = excluded.size`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, f := range rows {
		if f.AccessionNo == "" {
			continue
		}
		if _, err := stmt.Exec(
			f.AccessionNo, f.CIK, f.Company, f.Ticker, f.FormType,
			f.FiledAt, f.ReportPeriod, f.PrimaryDocument, f.FilingURL, f.Size,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert filing %s: %w", f.AccessionNo, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return count, nil
}

// Enqueue13F adds a 13F filing to the parse queue. Already-queued and
// already-parsed filings are skipped.
func (r *Repository) Enqueue13F(f domain.Filing) (bool, error) {
	if !f.Is13F() || f.FilingURL == "" {
		return false, nil
	}

	var parsed int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM filings_parsed WHERE accessionNo = ? AND succeeded = 1",
		f.AccessionNo,
	).Scan(&parsed)
	if err != nil {
		return false, fmt.Errorf("failed to check parse history: %w", err)
	}
	if parsed > 0 {
		return false, nil
	}

	res, err := r.db.Exec(
		"INSERT OR IGNORE INTO parse_queue (accessionNo, formType, filingUrl) VALUES (?, ?, ?)",
		f.AccessionNo, f.FormType, f.FilingURL,
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue filing %s: %w", f.AccessionNo, err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// NextPending13F returns the oldest queued 13F filing, or nil when the
// queue is empty.
func (r *Repository) NextPending13F() (*QueueItem, error) {
	query := `SELECT accessionNo, formType, filingUrl, enqueued_at
		FROM parse_queue
		WHERE formType IN ('13F-HR', '13F-HR/A')
		ORDER BY enqueued_at
		LIMIT 1`

	var item QueueItem
	err := r.db.QueryRow(query).Scan(&item.AccessionNo, &item.FormType, &item.FilingURL, &item.EnqueuedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query parse queue: %w", err)
	}

	return &item, nil
}

// Dequeue removes a filing from the parse queue.
func (r *Repository) Dequeue(accessionNo string) error {
	if _, err := r.db.Exec("DELETE FROM parse_queue WHERE accessionNo = ?", accessionNo); err != nil {
		return fmt.Errorf("failed to dequeue %s: %w", accessionNo, err)
	}
	return nil
}

// RecordParseResult stores the outcome of one parse attempt.
func (r *Repository) RecordParseResult(accessionNo, formType string, succeeded bool, parseErr string) error {
	var errCol sql.NullString
	if parseErr != "" {
		errCol = sql.NullString{String: parseErr, Valid: true}
	}

	_, err := r.db.Exec(`INSERT OR REPLACE INTO filings_parsed
		(accessionNo, formType, parsed_at, succeeded, err)
		VALUES (?, ?, datetime('now'), ?, ?)`,
		accessionNo, formType, boolToInt(succeeded), errCol,
	)
	if err != nil {
		return fmt.Errorf("failed to record parse result: %w", err)
	}
	return nil
}

// ResetQueue re-enqueues every 13F filing without a successful parse and
// clears its failure record. Returns the number of filings re-enqueued.
func (r *Repository) ResetQueue() (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`INSERT OR IGNORE INTO parse_queue (accessionNo, formType, filingUrl)
		SELECT accessionNo, formType, filingUrl
		FROM filings
		WHERE formType IN ('13F-HR', '13F-HR/A')
		  AND filingUrl IS NOT NULL AND filingUrl <> ''
		  AND accessionNo NOT IN (
			SELECT accessionNo FROM filings_parsed WHERE succeeded = 1
		  )`)
	if err != nil {
		return 0, fmt.Errorf("failed to re-enqueue filings: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM filings_parsed WHERE succeeded = 0"); err != nil {
		return 0, fmt.Errorf("failed to clear failed parse records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	n, _ := res.RowsAffected()
	r.log.Info().Int64("re_enqueued", n).Msg("Parse queue reset")
	return int(n), nil
}

// ByAccession returns one filing by accession number, or nil.
func (r *Repository) ByAccession(accessionNo string) (*domain.Filing, error) {
	query := `SELECT accessionNo, cik, company, ticker, formType, filedAt,
		reportPeriod, primaryDocument, filingUrl, size
		FROM filings WHERE accessionNo = ?`

	f, err := scanFiling(r.db.QueryRow(query, accessionNo))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query filing %s: %w", accessionNo, err)
	}
	return &f, nil
}

// Recent13F returns the most recently filed 13F-HR filings.
func (r *Repository) Recent13F(limit int) ([]domain.Filing, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT accessionNo, cik, company, ticker, formType, filedAt,
		reportPeriod, primaryDocument, filingUrl, size
		FROM filings
		WHERE formType = '13F-HR'
		ORDER BY filedAt DESC
		LIMIT ?`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent 13F filings: %w", err)
	}
	defer rows.Close()

	var filings []domain.Filing
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}
		filings = append(filings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating filings: %w", err)
	}

	return filings, nil
}

// Latest13FForManager returns the most recently filed 13F covering the
// given report period for a manager, or nil when none is on record.
func (r *Repository) Latest13FForManager(cik, reportPeriod string) (*domain.Filing, error) {
	query := `SELECT accessionNo, cik, company, ticker, formType, filedAt,
		reportPeriod, primaryDocument, filingUrl, size
		FROM filings
		WHERE cik = ? AND reportPeriod = ? AND formType LIKE '13F%'
		ORDER BY filedAt DESC
		LIMIT 1`

	f, err := scanFiling(r.db.QueryRow(query, cik, reportPeriod))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query 13F for manager %s: %w", cik, err)
	}
	return &f, nil
}

// QueueDepth returns the number of filings waiting to be parsed.
func (r *Repository) QueueDepth() (int, error) {
	var depth int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM parse_queue").Scan(&depth); err != nil {
		return 0, fmt.Errorf("failed to count parse queue: %w", err)
	}
	return depth, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFiling(row rowScanner) (domain.Filing, error) {
	var f domain.Filing
	var company, ticker, filedAt, reportPeriod, primaryDoc, filingURL sql.NullString
	var size sql.NullInt64

	err := row.Scan(
		&f.AccessionNo, &f.CIK, &company, &ticker, &f.FormType,
		&filedAt, &reportPeriod, &primaryDoc, &filingURL, &size,
	)
	if err != nil {
		return f, err
	}

	f.Company = company.String
	f.Ticker = ticker.String
	f.FiledAt = filedAt.String
	f.ReportPeriod = reportPeriod.String
	f.PrimaryDocument = primaryDoc.String
	f.FilingURL = filingURL.String
	f.Size = size.Int64

	return f, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
