package delta

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository handles positions_13f_delta database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new delta repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "positions_13f_delta").Logger(),
	}
}

// ReplaceForPeriod atomically replaces all delta records for one
// (manager, period) pair. A reader never observes a partially replaced
// delta set: the delete and inserts commit together or not at all.
func (r *Repository) ReplaceForPeriod(managerCIK, reportPeriod string, records []DeltaRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		"DELETE FROM positions_13f_delta WHERE cik = ? AND reportPeriod = ?",
		managerCIK, reportPeriod,
	); err != nil {
		return fmt.Errorf("failed to clear delta records: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO positions_13f_delta
		(cik, reportPeriod, cusip, companyName, delta_type,
		 old_shares, new_shares, delta_shares,
		 old_value_usd, new_value_usd, delta_value_usd,
		 old_weight_pct, new_weight_pct, delta_weight_pct,
		 rank_in_portfolio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var rank sql.NullInt64
		if rec.RankInPortfolio != nil {
			rank = sql.NullInt64{Int64: int64(*rec.RankInPortfolio), Valid: true}
		}

		if _, err := stmt.Exec(
			rec.ManagerCIK, rec.ReportPeriod, rec.CUSIP, rec.CompanyName, string(rec.ChangeType),
			rec.OldShares, rec.NewShares, rec.DeltaShares,
			rec.OldValueUSD, rec.NewValueUSD, rec.DeltaValueUSD,
			rec.OldWeightPct, rec.NewWeightPct, rec.DeltaWeightPct,
			rank,
		); err != nil {
			return fmt.Errorf("failed to insert delta record %s: %w", rec.CUSIP, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debug().
		Str("cik", managerCIK).
		Str("report_period", reportPeriod).
		Int("records", len(records)).
		Msg("Delta records replaced")
	return nil
}

// ListForPeriod returns the delta records for one (manager, period) pair
// in the ordering the reporting layer depends on: change-type priority
// (new, increase, decrease, closed) then descending absolute value delta.
func (r *Repository) ListForPeriod(managerCIK, reportPeriod string) ([]DeltaRecord, error) {
	query := `SELECT cik, reportPeriod, cusip, companyName, delta_type,
		old_shares, new_shares, delta_shares,
		old_value_usd, new_value_usd, delta_value_usd,
		old_weight_pct, new_weight_pct, delta_weight_pct,
		rank_in_portfolio
		FROM positions_13f_delta
		WHERE cik = ? AND reportPeriod = ?
		ORDER BY
			CASE delta_type
				WHEN 'new' THEN 1
				WHEN 'increase' THEN 2
				WHEN 'decrease' THEN 3
				WHEN 'closed' THEN 4
				ELSE 5
			END,
			ABS(delta_value_usd) DESC`

	rows, err := r.db.Query(query, managerCIK, reportPeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to query delta records: %w", err)
	}
	defer rows.Close()

	var records []DeltaRecord
	for rows.Next() {
		rec, err := scanDeltaRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delta record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delta records: %w", err)
	}

	return records, nil
}

// CountForPeriod returns the number of delta records for one pair.
func (r *Repository) CountForPeriod(managerCIK, reportPeriod string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM positions_13f_delta WHERE cik = ? AND reportPeriod = ?",
		managerCIK, reportPeriod,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count delta records: %w", err)
	}
	return count, nil
}

func scanDeltaRecord(rows *sql.Rows) (DeltaRecord, error) {
	var rec DeltaRecord
	var companyName sql.NullString
	var changeType string
	var rank sql.NullInt64

	err := rows.Scan(
		&rec.ManagerCIK, &rec.ReportPeriod, &rec.CUSIP, &companyName, &changeType,
		&rec.OldShares, &rec.NewShares, &rec.DeltaShares,
		&rec.OldValueUSD, &rec.NewValueUSD, &rec.DeltaValueUSD,
		&rec.OldWeightPct, &rec.NewWeightPct, &rec.DeltaWeightPct,
		&rank,
	)
	if err != nil {
		return rec, err
	}

	rec.CompanyName = companyName.String
	rec.ChangeType = ChangeType(changeType)
	if rank.Valid {
		r := int(rank.Int64)
		rec.RankInPortfolio = &r
	}

	return rec, nil
}
