package edgar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// Checkpoint records scrape progress so an interrupted run resumes at
// the page where it stopped. A checkpoint is only valid for the query
// it was written for, identified by QueryHash.
type Checkpoint struct {
	QueryHash string `msgpack:"query_hash"`
	FromIndex int    `msgpack:"from_index"`
	Seen      int    `msgpack:"seen"`
}

// HashQuery produces the stable identity of a search query for
// checkpoint validation.
func HashQuery(query SearchQuery) string {
	payload, _ := json.Marshal(struct {
		Forms []string `json:"forms"`
		Start string   `json:"startdt"`
		End   string   `json:"enddt"`
	}{query.Forms, query.StartDate, query.EndDate})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

// LoadCheckpoint reads a checkpoint file. A missing file or a hash
// mismatch yields a fresh checkpoint for the query rather than an error.
func LoadCheckpoint(path, queryHash string) (Checkpoint, error) {
	fresh := Checkpoint{QueryHash: queryHash}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fresh, nil
		}
		return fresh, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}

	var cp Checkpoint
	if err := msgpack.Unmarshal(raw, &cp); err != nil {
		return fresh, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}

	if cp.QueryHash != queryHash {
		// Query changed; previous progress does not apply
		return fresh, nil
	}

	return cp, nil
}

// Save writes the checkpoint atomically (write temp, rename).
func (cp Checkpoint) Save(path string) error {
	raw, err := msgpack.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	return nil
}
