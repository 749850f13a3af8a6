package subscribers

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Repository handles subscriber database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new subscriber repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "subscribers").Logger(),
	}
}

// Upsert inserts or updates a subscriber. (email, cik) is the logical
// key: an existing row gets its tier, status and notes refreshed.
// Returns the row id.
func (r *Repository) Upsert(sub Subscriber) (int64, error) {
	if _, err := ValidateTier(string(sub.Tier)); err != nil {
		return 0, err
	}

	email := strings.ToLower(strings.TrimSpace(sub.Email))
	if email == "" || !strings.Contains(email, "@") {
		return 0, fmt.Errorf("invalid email: %q", sub.Email)
	}
	if sub.CIK == "" {
		return 0, fmt.Errorf("cik is required")
	}

	status := sub.Status
	if status == "" {
		status = "active"
	}

	_, err := r.db.Exec(`INSERT INTO subscribers
		(email, cik, tier, status, notes, is_comped)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email, cik) DO UPDATE SET
			tier = excluded.tier,
			status = excluded.status,
			notes = excluded.notes,
			is_comped = excluded.is_comped,
			updated_at = datetime('now')`,
		email, sub.CIK, string(sub.Tier), status, sub.Notes, boolToInt(sub.IsComped),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert subscriber: %w", err)
	}

	// LastInsertId is stale when the statement took the update path;
	// read the row id back by the logical key
	var id int64
	err = r.db.QueryRow(
		"SELECT id FROM subscribers WHERE email = ? AND cik = ?",
		email, sub.CIK,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get subscriber id: %w", err)
	}

	r.log.Info().Str("email", email).Str("cik", sub.CIK).Str("tier", string(sub.Tier)).
		Msg("Subscriber upserted")
	return id, nil
}

// ActiveForManager returns the active subscribers for one manager.
func (r *Repository) ActiveForManager(cik string) ([]Subscriber, error) {
	return r.list("WHERE cik = ? AND status = 'active'", cik)
}

// All returns every subscriber, active or not.
func (r *Repository) All() ([]Subscriber, error) {
	return r.list("")
}

// SubscribedManagers returns the distinct manager CIKs with at least
// one active subscriber. These are the managers worth generating briefs
// for.
func (r *Repository) SubscribedManagers() ([]string, error) {
	rows, err := r.db.Query(
		"SELECT DISTINCT cik FROM subscribers WHERE status = 'active' ORDER BY cik")
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribed managers: %w", err)
	}
	defer rows.Close()

	var ciks []string
	for rows.Next() {
		var cik string
		if err := rows.Scan(&cik); err != nil {
			return nil, fmt.Errorf("failed to scan cik: %w", err)
		}
		ciks = append(ciks, cik)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating managers: %w", err)
	}

	return ciks, nil
}

// Deactivate marks a subscription inactive without deleting the row.
func (r *Repository) Deactivate(email, cik string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	res, err := r.db.Exec(`UPDATE subscribers
		SET status = 'inactive', updated_at = datetime('now')
		WHERE email = ? AND cik = ?`,
		email, cik,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscriber: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no subscription found for %s / %s", email, cik)
	}

	r.log.Info().Str("email", email).Str("cik", cik).Msg("Subscriber deactivated")
	return nil
}

func (r *Repository) list(where string, args ...any) ([]Subscriber, error) {
	query := `SELECT id, email, cik, tier, status, created_at, updated_at,
		COALESCE(notes, ''), is_comped
		FROM subscribers ` + where + " ORDER BY email, cik"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var sub Subscriber
		var tier string
		var isComped int
		err := rows.Scan(&sub.ID, &sub.Email, &sub.CIK, &tier, &sub.Status,
			&sub.CreatedAt, &sub.UpdatedAt, &sub.Notes, &isComped)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		sub.Tier = Tier(tier)
		sub.IsComped = isComped != 0
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}

	return subs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
