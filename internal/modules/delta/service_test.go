package delta

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holdiq/holdiq/internal/modules/holdings"

	_ "modernc.org/sqlite"
)

func setupDeltaTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE positions_13f (
			manager_cik   TEXT NOT NULL,
			report_period TEXT NOT NULL,
			cusip         TEXT NOT NULL,
			issuer        TEXT,
			class         TEXT,
			shares        REAL,
			value_usd     REAL,
			put_call      TEXT,
			discretion    TEXT,
			voting_sole   INTEGER,
			voting_shared INTEGER,
			voting_none   INTEGER,
			PRIMARY KEY (manager_cik, report_period, cusip)
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE positions_13f_delta (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			cik              TEXT NOT NULL,
			reportPeriod     TEXT NOT NULL,
			cusip            TEXT NOT NULL,
			companyName      TEXT,
			delta_type       TEXT NOT NULL,
			old_shares       REAL,
			new_shares       REAL,
			delta_shares     REAL,
			old_value_usd    REAL,
			new_value_usd    REAL,
			delta_value_usd  REAL,
			old_weight_pct   REAL,
			new_weight_pct   REAL,
			delta_weight_pct REAL,
			rank_in_portfolio INTEGER
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestService(t *testing.T, db *sql.DB) (*Service, *holdings.PositionRepository, *Repository) {
	t.Helper()

	log := zerolog.Nop()
	positions := holdings.NewPositionRepository(db, log)
	loader := holdings.NewSnapshotLoader(positions, log)
	repo := NewRepository(db, log)
	classifier := NewClassifier(ClassifierConfig{})

	return NewService(loader, positions, repo, classifier, log), positions, repo
}

func TestRebuildAllTwoQuarterScenario(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, repo := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("1067983", "2024-06-30", []holdings.Position{
		{CUSIP: "AAA", Issuer: "Alpha Corp", Shares: 100, ValueUSD: 1000},
	}))
	require.NoError(t, positions.ReplaceForPeriod("1067983", "2024-09-30", []holdings.Position{
		{CUSIP: "AAA", Issuer: "Alpha Corp", Shares: 150, ValueUSD: 1600},
		{CUSIP: "BBB", Issuer: "Beta Inc", Shares: 50, ValueUSD: 500},
	}))

	result, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsProcessed)
	assert.Equal(t, 0, result.PairsFailed)
	assert.Equal(t, 2, result.RowsWritten)

	records, err := repo.ListForPeriod("1067983", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Read ordering: new before increase
	newRec, incRec := records[0], records[1]
	assert.Equal(t, ChangeNew, newRec.ChangeType)
	assert.Equal(t, "BBB", newRec.CUSIP)
	assert.Equal(t, 50.0, newRec.DeltaShares)
	assert.Equal(t, 500.0, newRec.DeltaValueUSD)
	assert.InDelta(t, 500.0/2100.0*100, newRec.NewWeightPct, 1e-6)
	require.NotNil(t, newRec.RankInPortfolio)
	assert.Equal(t, 2, *newRec.RankInPortfolio)

	assert.Equal(t, ChangeIncrease, incRec.ChangeType)
	assert.Equal(t, "AAA", incRec.CUSIP)
	assert.Equal(t, 50.0, incRec.DeltaShares)
	assert.Equal(t, 600.0, incRec.DeltaValueUSD)
	assert.InDelta(t, 100.0, incRec.OldWeightPct, 1e-6)
	assert.InDelta(t, 1600.0/2100.0*100, incRec.NewWeightPct, 1e-6)
	require.NotNil(t, incRec.RankInPortfolio)
	assert.Equal(t, 1, *incRec.RankInPortfolio)
}

func TestRebuildAllClosedPosition(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, repo := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("123", "2024-06-30", []holdings.Position{
		{CUSIP: "AAA", Issuer: "Alpha Corp", Shares: 100, ValueUSD: 1000},
		{CUSIP: "CCC", Issuer: "Gamma LLC", Shares: 20, ValueUSD: 200},
	}))
	require.NoError(t, positions.ReplaceForPeriod("123", "2024-09-30", []holdings.Position{
		{CUSIP: "AAA", Issuer: "Alpha Corp", Shares: 100, ValueUSD: 1100},
	}))

	_, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)

	records, err := repo.ListForPeriod("123", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, records, 2)

	closed := records[1]
	assert.Equal(t, ChangeClosed, closed.ChangeType)
	assert.Equal(t, "CCC", closed.CUSIP)
	assert.Equal(t, "Gamma LLC", closed.CompanyName)
	assert.Equal(t, -20.0, closed.DeltaShares)
	assert.Equal(t, -200.0, closed.DeltaValueUSD)
	assert.Zero(t, closed.NewShares)
	assert.Zero(t, closed.NewWeightPct)
	assert.Nil(t, closed.RankInPortfolio)
}

func TestRebuildAllIsIdempotent(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, repo := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("55", "2024-06-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 10, ValueUSD: 100},
	}))
	require.NoError(t, positions.ReplaceForPeriod("55", "2024-09-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 20, ValueUSD: 300},
	}))

	_, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)
	first, err := repo.ListForPeriod("55", "2024-09-30")
	require.NoError(t, err)

	_, err = svc.RebuildAll(context.Background())
	require.NoError(t, err)
	second, err := repo.ListForPeriod("55", "2024-09-30")
	require.NoError(t, err)

	assert.Equal(t, first, second)

	count, err := repo.CountForPeriod("55", "2024-09-30")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRebuildAllSkipsSingleQuarterManagers(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, _ := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("77", "2024-09-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 10, ValueUSD: 100},
	}))

	result, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.PairsProcessed)
	assert.Zero(t, result.RowsWritten)
}

func TestRebuildAllMultiManagerIsolation(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, repo := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("1", "2024-06-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 10, ValueUSD: 100},
	}))
	require.NoError(t, positions.ReplaceForPeriod("1", "2024-09-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 20, ValueUSD: 200},
	}))
	require.NoError(t, positions.ReplaceForPeriod("2", "2024-06-30", []holdings.Position{
		{CUSIP: "BBB", Shares: 5, ValueUSD: 50},
	}))
	require.NoError(t, positions.ReplaceForPeriod("2", "2024-09-30", []holdings.Position{
		{CUSIP: "BBB", Shares: 1, ValueUSD: 10},
	}))

	result, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.PairsProcessed)

	one, err := repo.ListForPeriod("1", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "AAA", one[0].CUSIP)

	two, err := repo.ListForPeriod("2", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, two, 1)
	assert.Equal(t, "BBB", two[0].CUSIP)
}

func TestRebuildAllThreeQuarterChain(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, repo := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("9", "2024-03-31", []holdings.Position{
		{CUSIP: "AAA", Shares: 10, ValueUSD: 100},
	}))
	require.NoError(t, positions.ReplaceForPeriod("9", "2024-06-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 20, ValueUSD: 250},
	}))
	require.NoError(t, positions.ReplaceForPeriod("9", "2024-09-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 15, ValueUSD: 180},
	}))

	result, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)
	// Adjacent pairs only: Q1->Q2 and Q2->Q3
	assert.Equal(t, 2, result.PairsProcessed)

	q2, err := repo.ListForPeriod("9", "2024-06-30")
	require.NoError(t, err)
	require.Len(t, q2, 1)
	assert.Equal(t, ChangeIncrease, q2[0].ChangeType)

	q3, err := repo.ListForPeriod("9", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, q3, 1)
	assert.Equal(t, ChangeDecrease, q3[0].ChangeType)
	// Q3's previous side is Q2, not Q1: pairs are adjacent quarters
	assert.Equal(t, 20.0, q3[0].OldShares)
}

func TestRebuildForManagerOnlyTouchesOneManager(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, repo := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("1", "2024-06-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 10, ValueUSD: 100},
	}))
	require.NoError(t, positions.ReplaceForPeriod("1", "2024-09-30", []holdings.Position{
		{CUSIP: "AAA", Shares: 20, ValueUSD: 300},
	}))
	require.NoError(t, positions.ReplaceForPeriod("2", "2024-06-30", []holdings.Position{
		{CUSIP: "BBB", Shares: 5, ValueUSD: 50},
	}))
	require.NoError(t, positions.ReplaceForPeriod("2", "2024-09-30", []holdings.Position{
		{CUSIP: "BBB", Shares: 2, ValueUSD: 20},
	}))

	result, err := svc.RebuildForManager(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.PairsProcessed)
	assert.Equal(t, 1, result.RowsWritten)

	records, err := repo.ListForPeriod("1", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ChangeIncrease, records[0].ChangeType)

	// The other manager's quarters stay untouched
	other, err := repo.ListForPeriod("2", "2024-09-30")
	require.NoError(t, err)
	assert.Empty(t, other)

	// A manager with a single quarter is a clean no-op
	require.NoError(t, positions.ReplaceForPeriod("3", "2024-09-30", []holdings.Position{
		{CUSIP: "CCC", Shares: 1, ValueUSD: 10},
	}))
	result, err = svc.RebuildForManager(context.Background(), "3")
	require.NoError(t, err)
	assert.Zero(t, result.PairsProcessed)
}

func TestListForPeriodOrdering(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, positions, repo := newTestService(t, db)

	require.NoError(t, positions.ReplaceForPeriod("42", "2024-06-30", []holdings.Position{
		{CUSIP: "INC1", Shares: 10, ValueUSD: 100},
		{CUSIP: "INC2", Shares: 10, ValueUSD: 100},
		{CUSIP: "DEC1", Shares: 10, ValueUSD: 500},
		{CUSIP: "GONE", Shares: 10, ValueUSD: 50},
	}))
	require.NoError(t, positions.ReplaceForPeriod("42", "2024-09-30", []holdings.Position{
		{CUSIP: "INC1", Shares: 20, ValueUSD: 400},
		{CUSIP: "INC2", Shares: 15, ValueUSD: 200},
		{CUSIP: "DEC1", Shares: 5, ValueUSD: 250},
		{CUSIP: "FRESH", Shares: 1, ValueUSD: 10},
	}))

	_, err := svc.RebuildAll(context.Background())
	require.NoError(t, err)

	records, err := repo.ListForPeriod("42", "2024-09-30")
	require.NoError(t, err)
	require.Len(t, records, 5)

	var got []string
	for _, rec := range records {
		got = append(got, string(rec.ChangeType)+":"+rec.CUSIP)
	}

	// Groups ordered new, increase, decrease, closed; within a group by
	// descending absolute value change.
	assert.Equal(t, []string{
		"new:FRESH",
		"increase:INC1",
		"increase:INC2",
		"decrease:DEC1",
		"closed:GONE",
	}, got)
}

func TestComputePairEmptyCurrentPeriod(t *testing.T) {
	db := setupDeltaTestDB(t)
	svc, _, _ := newTestService(t, db)

	prev := snapshot(holdings.Position{CUSIP: "AAA", Shares: 10, ValueUSD: 100, WeightPct: 100})

	records, err := svc.ComputePair("1", "2024-09-30", prev, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ChangeClosed, records[0].ChangeType)
	assert.Zero(t, records[0].NewValueUSD)
}
