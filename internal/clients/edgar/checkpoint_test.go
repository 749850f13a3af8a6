package edgar

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrape.checkpoint")

	query := SearchQuery{
		Forms:     []string{"13F-HR"},
		StartDate: "2024-01-01",
		EndDate:   "2024-12-31",
	}
	hash := HashQuery(query)

	cp := Checkpoint{QueryHash: hash, FromIndex: 400, Seen: 400}
	require.NoError(t, cp.Save(path))

	loaded, err := LoadCheckpoint(path, hash)
	require.NoError(t, err)
	assert.Equal(t, cp, loaded)
}

func TestLoadCheckpointMissingFileIsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.checkpoint")

	loaded, err := LoadCheckpoint(path, "abc123")
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{QueryHash: "abc123"}, loaded)
}

func TestLoadCheckpointQueryChangeDiscardsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrape.checkpoint")

	oldHash := HashQuery(SearchQuery{Forms: []string{"13F-HR"}, StartDate: "2024-01-01"})
	require.NoError(t, Checkpoint{QueryHash: oldHash, FromIndex: 600}.Save(path))

	newHash := HashQuery(SearchQuery{Forms: []string{"13F-HR"}, StartDate: "2025-01-01"})
	require.NotEqual(t, oldHash, newHash)

	loaded, err := LoadCheckpoint(path, newHash)
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{QueryHash: newHash}, loaded)
	assert.Zero(t, loaded.FromIndex)
}

func TestHashQueryIsStable(t *testing.T) {
	query := SearchQuery{Forms: []string{"13F-HR", "13F-HR/A"}, StartDate: "2024-01-01", EndDate: "2024-06-30"}
	assert.Equal(t, HashQuery(query), HashQuery(query))

	// Page size is not part of the query identity
	other := query
	other.PageSize = 50
	assert.Equal(t, HashQuery(query), HashQuery(other))
}
