package briefs

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository handles ai_briefs database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new brief repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ai_briefs").Logger(),
	}
}

// Store saves a brief, replacing any existing brief for the same
// (manager, period) pair. Delivery log rows for the replaced brief are
// cleared, so a regenerated brief goes out to subscribers again.
func (r *Repository) Store(brief *Brief) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// deliveries.brief_id references ai_briefs(id); clear the log before
	// the brief row goes away
	if _, err := tx.Exec(
		`DELETE FROM deliveries WHERE brief_id IN (
			SELECT id FROM ai_briefs WHERE cik = ? AND reportPeriod = ?)`,
		brief.ManagerCIK, brief.ReportPeriod,
	); err != nil {
		return fmt.Errorf("failed to clear delivery log: %w", err)
	}

	if _, err := tx.Exec(
		"DELETE FROM ai_briefs WHERE cik = ? AND reportPeriod = ?",
		brief.ManagerCIK, brief.ReportPeriod,
	); err != nil {
		return fmt.Errorf("failed to clear existing brief: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO ai_briefs (id, cik, reportPeriod, model, brief_md) VALUES (?, ?, ?, ?, ?)",
		brief.ID, brief.ManagerCIK, brief.ReportPeriod, brief.Model, brief.BriefMD,
	); err != nil {
		return fmt.Errorf("failed to insert brief: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Latest returns the brief for a (manager, period) pair, or nil.
// An empty reportPeriod returns the manager's most recent brief.
func (r *Repository) Latest(managerCIK, reportPeriod string) (*Brief, error) {
	var row *sql.Row
	if reportPeriod != "" {
		row = r.db.QueryRow(`SELECT id, cik, reportPeriod, model, brief_md, created_at
			FROM ai_briefs WHERE cik = ? AND reportPeriod = ?`,
			managerCIK, reportPeriod)
	} else {
		row = r.db.QueryRow(`SELECT id, cik, reportPeriod, model, brief_md, created_at
			FROM ai_briefs WHERE cik = ?
			ORDER BY reportPeriod DESC LIMIT 1`,
			managerCIK)
	}

	var brief Brief
	err := row.Scan(&brief.ID, &brief.ManagerCIK, &brief.ReportPeriod,
		&brief.Model, &brief.BriefMD, &brief.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query brief: %w", err)
	}

	return &brief, nil
}

// Undelivered returns briefs that have no successful delivery yet for
// at least one active subscriber of their manager.
func (r *Repository) Undelivered() ([]Brief, error) {
	query := `SELECT DISTINCT b.id, b.cik, b.reportPeriod, b.model, b.brief_md, b.created_at
		FROM ai_briefs b
		JOIN subscribers s ON s.cik = b.cik AND s.status = 'active'
		WHERE NOT EXISTS (
			SELECT 1 FROM deliveries d
			WHERE d.brief_id = b.id AND d.email = s.email AND d.succeeded = 1
		)
		ORDER BY b.created_at`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query undelivered briefs: %w", err)
	}
	defer rows.Close()

	var briefs []Brief
	for rows.Next() {
		var brief Brief
		err := rows.Scan(&brief.ID, &brief.ManagerCIK, &brief.ReportPeriod,
			&brief.Model, &brief.BriefMD, &brief.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan brief: %w", err)
		}
		briefs = append(briefs, brief)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating briefs: %w", err)
	}

	return briefs, nil
}
