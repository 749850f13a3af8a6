package subscribers

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupSubscribersTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
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
		)
	`)
	require.NoError(t, err)

	return db
}

func TestUpsertNormalizesAndUpdates(t *testing.T) {
	db := setupSubscribersTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	id, err := repo.Upsert(Subscriber{
		Email: "  Alice@Example.COM ",
		CIK:   "1067983",
		Tier:  TierNano,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	// Same logical key, different casing: updates instead of duplicating
	// and keeps the original row id
	updatedID, err := repo.Upsert(Subscriber{
		Email: "alice@example.com",
		CIK:   "1067983",
		Tier:  TierPremium,
	})
	require.NoError(t, err)
	assert.Equal(t, id, updatedID)

	subs, err := repo.All()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "alice@example.com", subs[0].Email)
	assert.Equal(t, TierPremium, subs[0].Tier)
	assert.Equal(t, "active", subs[0].Status)
}

func TestUpsertValidation(t *testing.T) {
	db := setupSubscribersTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Upsert(Subscriber{Email: "not-an-email", CIK: "1", Tier: TierNano})
	assert.Error(t, err)

	_, err = repo.Upsert(Subscriber{Email: "a@b.c", CIK: "", Tier: TierNano})
	assert.Error(t, err)

	_, err = repo.Upsert(Subscriber{Email: "a@b.c", CIK: "1", Tier: Tier("platinum")})
	assert.Error(t, err)
}

func TestActiveForManagerAndDeactivate(t *testing.T) {
	db := setupSubscribersTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Upsert(Subscriber{Email: "a@b.c", CIK: "1067983", Tier: TierNano})
	require.NoError(t, err)
	_, err = repo.Upsert(Subscriber{Email: "d@e.f", CIK: "1067983", Tier: TierMini})
	require.NoError(t, err)
	_, err = repo.Upsert(Subscriber{Email: "a@b.c", CIK: "102909", Tier: TierNano})
	require.NoError(t, err)

	active, err := repo.ActiveForManager("1067983")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, repo.Deactivate("A@B.C", "1067983"))

	active, err = repo.ActiveForManager("1067983")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "d@e.f", active[0].Email)

	// Unknown subscription errors
	assert.Error(t, repo.Deactivate("nobody@x.y", "1067983"))
}

func TestSubscribedManagersDistinctActive(t *testing.T) {
	db := setupSubscribersTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Upsert(Subscriber{Email: "a@b.c", CIK: "200", Tier: TierNano})
	require.NoError(t, err)
	_, err = repo.Upsert(Subscriber{Email: "d@e.f", CIK: "200", Tier: TierNano})
	require.NoError(t, err)
	_, err = repo.Upsert(Subscriber{Email: "a@b.c", CIK: "100", Tier: TierNano})
	require.NoError(t, err)
	_, err = repo.Upsert(Subscriber{Email: "g@h.i", CIK: "300", Tier: TierNano, Status: "inactive"})
	require.NoError(t, err)

	managers, err := repo.SubscribedManagers()
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, managers)
}
