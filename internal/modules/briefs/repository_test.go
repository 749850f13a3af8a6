package briefs

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupBriefsTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE ai_briefs (
			id           TEXT PRIMARY KEY,
			cik          TEXT NOT NULL,
			reportPeriod TEXT NOT NULL,
			model        TEXT NOT NULL,
			brief_md     TEXT NOT NULL,
			created_at   TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (cik, reportPeriod)
		);
		CREATE TABLE subscribers (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			email      TEXT NOT NULL,
			cik        TEXT NOT NULL,
			tier       TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			notes      TEXT,
			is_comped  INTEGER NOT NULL DEFAULT 0,
			UNIQUE (email, cik)
		);
		CREATE TABLE deliveries (
			id         TEXT PRIMARY KEY,
			brief_id   TEXT NOT NULL,
			email      TEXT NOT NULL,
			sent_at    TEXT NOT NULL DEFAULT (datetime('now')),
			succeeded  INTEGER NOT NULL,
			err        TEXT,
			FOREIGN KEY (brief_id) REFERENCES ai_briefs(id)
		);
	`)
	require.NoError(t, err)

	// Production connections run with foreign keys enforced
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	return db
}

func TestStoreReplacesExistingBrief(t *testing.T) {
	db := setupBriefsTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Store(&Brief{
		ID: "v1", ManagerCIK: "1067983", ReportPeriod: "2024-09-30",
		Model: "gemini-2.0-flash", BriefMD: "first draft",
	}))
	require.NoError(t, repo.Store(&Brief{
		ID: "v2", ManagerCIK: "1067983", ReportPeriod: "2024-09-30",
		Model: "gemini-2.0-flash", BriefMD: "regenerated",
	}))

	brief, err := repo.Latest("1067983", "2024-09-30")
	require.NoError(t, err)
	require.NotNil(t, brief)
	assert.Equal(t, "v2", brief.ID)
	assert.Equal(t, "regenerated", brief.BriefMD)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM ai_briefs").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStoreReplacesDeliveredBrief(t *testing.T) {
	db := setupBriefsTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Store(&Brief{
		ID: "v1", ManagerCIK: "1067983", ReportPeriod: "2024-09-30",
		Model: "m", BriefMD: "first draft",
	}))

	// The brief has already gone out; its delivery rows reference it
	_, err := db.Exec(`INSERT INTO deliveries (id, brief_id, email, succeeded) VALUES ('d1', 'v1', 'a@b.c', 1)`)
	require.NoError(t, err)

	require.NoError(t, repo.Store(&Brief{
		ID: "v2", ManagerCIK: "1067983", ReportPeriod: "2024-09-30",
		Model: "m", BriefMD: "regenerated",
	}))

	brief, err := repo.Latest("1067983", "2024-09-30")
	require.NoError(t, err)
	require.NotNil(t, brief)
	assert.Equal(t, "v2", brief.ID)

	// The stale delivery log went with the old brief, so the
	// regenerated one is pending again
	var deliveries int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM deliveries").Scan(&deliveries))
	assert.Zero(t, deliveries)
}

func TestLatestEmptyPeriodPicksNewest(t *testing.T) {
	db := setupBriefsTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Store(&Brief{
		ID: "old", ManagerCIK: "55", ReportPeriod: "2024-06-30",
		Model: "m", BriefMD: "q2",
	}))
	require.NoError(t, repo.Store(&Brief{
		ID: "new", ManagerCIK: "55", ReportPeriod: "2024-09-30",
		Model: "m", BriefMD: "q3",
	}))

	brief, err := repo.Latest("55", "")
	require.NoError(t, err)
	require.NotNil(t, brief)
	assert.Equal(t, "2024-09-30", brief.ReportPeriod)

	missing, err := repo.Latest("404", "")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUndeliveredFollowsDeliveryLog(t *testing.T) {
	db := setupBriefsTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Store(&Brief{
		ID: "b1", ManagerCIK: "100", ReportPeriod: "2024-09-30", Model: "m", BriefMD: "x",
	}))
	require.NoError(t, repo.Store(&Brief{
		ID: "b2", ManagerCIK: "200", ReportPeriod: "2024-09-30", Model: "m", BriefMD: "y",
	}))

	_, err := db.Exec(`INSERT INTO subscribers (email, cik, tier) VALUES
		('a@b.c', '100', 'nano'),
		('d@e.f', '200', 'nano')`)
	require.NoError(t, err)

	pending, err := repo.Undelivered()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// Successful delivery to b1's only subscriber removes it
	_, err = db.Exec(`INSERT INTO deliveries (id, brief_id, email, succeeded) VALUES ('d1', 'b1', 'a@b.c', 1)`)
	require.NoError(t, err)

	pending, err = repo.Undelivered()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b2", pending[0].ID)

	// A failed attempt keeps the brief pending
	_, err = db.Exec(`INSERT INTO deliveries (id, brief_id, email, succeeded) VALUES ('d2', 'b2', 'd@e.f', 0)`)
	require.NoError(t, err)

	pending, err = repo.Undelivered()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestUndeliveredIgnoresManagersWithoutSubscribers(t *testing.T) {
	db := setupBriefsTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.Store(&Brief{
		ID: "b3", ManagerCIK: "300", ReportPeriod: "2024-09-30", Model: "m", BriefMD: "z",
	}))

	pending, err := repo.Undelivered()
	require.NoError(t, err)
	assert.Empty(t, pending)
}
