package delivery

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdiq/holdiq/internal/config"
	"github.com/holdiq/holdiq/internal/modules/briefs"
	"github.com/holdiq/holdiq/internal/modules/subscribers"

	_ "modernc.org/sqlite"
)

func setupDeliveryTestDB(t *testing.T) *sql.DB {
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
		);
		CREATE TABLE ai_briefs (
			id           TEXT PRIMARY KEY,
			cik          TEXT NOT NULL,
			reportPeriod TEXT NOT NULL,
			model        TEXT NOT NULL,
			brief_md     TEXT NOT NULL,
			created_at   TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE (cik, reportPeriod)
		);
		CREATE TABLE deliveries (
			id         TEXT PRIMARY KEY,
			brief_id   TEXT NOT NULL,
			email      TEXT NOT NULL,
			sent_at    TEXT NOT NULL DEFAULT (datetime('now')),
			succeeded  INTEGER NOT NULL,
			err        TEXT
		);
	`)
	require.NoError(t, err)

	return db
}

func newDryRunService(t *testing.T, db *sql.DB) (*Service, *briefs.Repository, *subscribers.Repository) {
	t.Helper()

	log := zerolog.Nop()
	mailer := NewMailer(config.SMTPConfig{DryRun: true}, log)
	briefsRepo := briefs.NewRepository(db, log)
	subsRepo := subscribers.NewRepository(db, log)

	return NewService(db, mailer, briefsRepo, subsRepo, log), briefsRepo, subsRepo
}

func TestDeliverPendingSendsToActiveSubscribers(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc, briefsRepo, subsRepo := newDryRunService(t, db)

	require.NoError(t, briefsRepo.Store(&briefs.Brief{
		ID:           "brief-1",
		ManagerCIK:   "1067983",
		ReportPeriod: "2024-09-30",
		Model:        "gemini-2.0-flash",
		BriefMD:      "# Quarterly brief",
	}))

	_, err := subsRepo.Upsert(subscribers.Subscriber{Email: "a@b.c", CIK: "1067983", Tier: subscribers.TierNano})
	require.NoError(t, err)
	_, err = subsRepo.Upsert(subscribers.Subscriber{Email: "d@e.f", CIK: "1067983", Tier: subscribers.TierMini})
	require.NoError(t, err)
	// Different manager, must not receive this brief
	_, err = subsRepo.Upsert(subscribers.Subscriber{Email: "x@y.z", CIK: "999", Tier: subscribers.TierNano})
	require.NoError(t, err)

	result, err := svc.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.BriefsSent)
	assert.Equal(t, 2, result.Recipients)
	assert.Zero(t, result.Failures)

	var logged int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM deliveries WHERE succeeded = 1").Scan(&logged))
	assert.Equal(t, 2, logged)
}

func TestDeliverPendingIsIdempotent(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc, briefsRepo, subsRepo := newDryRunService(t, db)

	require.NoError(t, briefsRepo.Store(&briefs.Brief{
		ID:           "brief-2",
		ManagerCIK:   "55",
		ReportPeriod: "2024-09-30",
		Model:        "gemini-2.0-flash",
		BriefMD:      "content",
	}))
	_, err := subsRepo.Upsert(subscribers.Subscriber{Email: "a@b.c", CIK: "55", Tier: subscribers.TierNano})
	require.NoError(t, err)

	_, err = svc.DeliverPending(context.Background())
	require.NoError(t, err)

	// Second run finds nothing left to deliver
	result, err := svc.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.BriefsSent)
	assert.Zero(t, result.Recipients)

	var logged int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM deliveries").Scan(&logged))
	assert.Equal(t, 1, logged)
}

func TestDeliverPendingNoSubscribers(t *testing.T) {
	db := setupDeliveryTestDB(t)
	svc, briefsRepo, _ := newDryRunService(t, db)

	require.NoError(t, briefsRepo.Store(&briefs.Brief{
		ID:           "brief-3",
		ManagerCIK:   "77",
		ReportPeriod: "2024-09-30",
		Model:        "gemini-2.0-flash",
		BriefMD:      "content",
	}))

	result, err := svc.DeliverPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.BriefsSent)
	assert.Zero(t, result.Recipients)
}

func TestMailerDryRunSendsNothing(t *testing.T) {
	mailer := NewMailer(config.SMTPConfig{DryRun: true}, zerolog.Nop())
	assert.NoError(t, mailer.Send(context.Background(), "a@b.c", "subject", "body"))
}

func TestMailerRequiresConfiguration(t *testing.T) {
	mailer := NewMailer(config.SMTPConfig{DryRun: false}, zerolog.Nop())
	assert.Error(t, mailer.Send(context.Background(), "a@b.c", "subject", "body"))
}
