package holdings

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// PositionRepository handles positions_13f database operations
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "positions_13f").Logger(),
	}
}

// PositionsForPeriod returns all positions for one (manager, period) pair.
// Null share counts and values are coerced to zero.
func (r *PositionRepository) PositionsForPeriod(managerCIK, reportPeriod string) ([]Position, error) {
	query := `SELECT cusip, issuer, class, shares, value_usd,
		put_call, discretion, voting_sole, voting_shared, voting_none
		FROM positions_13f
		WHERE manager_cik = ? AND report_period = ?`

	rows, err := r.db.Query(query, managerCIK, reportPeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// DistinctPeriods returns the distinct report periods for a manager in
// ascending order. Periods are fixed-format YYYY-MM-DD dates, so the
// lexicographic sort is chronological.
func (r *PositionRepository) DistinctPeriods(managerCIK string) ([]string, error) {
	query := `SELECT DISTINCT report_period
		FROM positions_13f
		WHERE manager_cik = ? AND report_period IS NOT NULL AND report_period <> ''
		ORDER BY report_period`

	rows, err := r.db.Query(query, managerCIK)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct periods: %w", err)
	}
	defer rows.Close()

	var periods []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		periods = append(periods, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating periods: %w", err)
	}

	return periods, nil
}

// ManagerPeriods returns every distinct (manager, period) pair, ordered
// by manager then period.
func (r *PositionRepository) ManagerPeriods() ([]ManagerPeriod, error) {
	query := `SELECT DISTINCT manager_cik, report_period
		FROM positions_13f
		WHERE report_period IS NOT NULL AND report_period <> ''
		ORDER BY manager_cik, report_period`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query manager periods: %w", err)
	}
	defer rows.Close()

	var pairs []ManagerPeriod
	for rows.Next() {
		var mp ManagerPeriod
		if err := rows.Scan(&mp.ManagerCIK, &mp.ReportPeriod); err != nil {
			return nil, fmt.Errorf("failed to scan manager period: %w", err)
		}
		pairs = append(pairs, mp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating manager periods: %w", err)
	}

	return pairs, nil
}

// LatestPeriod returns the most recent non-empty report period for a
// manager, or empty string when the manager has no positions.
func (r *PositionRepository) LatestPeriod(managerCIK string) (string, error) {
	query := `SELECT COALESCE(MAX(report_period), '')
		FROM positions_13f
		WHERE manager_cik = ? AND report_period IS NOT NULL AND report_period <> ''`

	var period string
	if err := r.db.QueryRow(query, managerCIK).Scan(&period); err != nil {
		return "", fmt.Errorf("failed to query latest period: %w", err)
	}

	return period, nil
}

// ReplaceForPeriod atomically replaces all positions for one
// (manager, period) pair. Used by the 13F parser so re-parsing an
// amended filing never leaves a mixed position set behind.
func (r *PositionRepository) ReplaceForPeriod(managerCIK, reportPeriod string, positions []Position) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		"DELETE FROM positions_13f WHERE manager_cik = ? AND report_period = ?",
		managerCIK, reportPeriod,
	); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO positions_13f
		(manager_cik, report_period, cusip, issuer, class, shares, value_usd,
		 put_call, discretion, voting_sole, voting_shared, voting_none)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, pos := range positions {
		if _, err := stmt.Exec(
			managerCIK, reportPeriod, pos.CUSIP, pos.Issuer, pos.Class,
			pos.Shares, pos.ValueUSD, pos.PutCall, pos.Discretion,
			pos.VotingSole, pos.VotingShared, pos.VotingNone,
		); err != nil {
			return fmt.Errorf("failed to insert position %s: %w", pos.CUSIP, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Info().
		Str("manager_cik", managerCIK).
		Str("report_period", reportPeriod).
		Int("positions", len(positions)).
		Msg("Positions replaced")
	return nil
}

// scanPosition scans a database row into a Position struct
func scanPosition(rows *sql.Rows) (Position, error) {
	var pos Position
	var issuer, class, putCall, discretion sql.NullString
	var shares, valueUSD sql.NullFloat64
	var votingSole, votingShared, votingNone sql.NullInt64

	err := rows.Scan(
		&pos.CUSIP,
		&issuer,
		&class,
		&shares,
		&valueUSD,
		&putCall,
		&discretion,
		&votingSole,
		&votingShared,
		&votingNone,
	)
	if err != nil {
		return pos, err
	}

	// Malformed or missing numerics recover locally as zero
	pos.Issuer = issuer.String
	pos.Class = class.String
	pos.Shares = shares.Float64
	pos.ValueUSD = valueUSD.Float64
	pos.PutCall = putCall.String
	pos.Discretion = discretion.String
	pos.VotingSole = votingSole.Int64
	pos.VotingShared = votingShared.Int64
	pos.VotingNone = votingNone.Int64

	return pos, nil
}
