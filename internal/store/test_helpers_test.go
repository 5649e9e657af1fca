package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/flagsearch/internal/ir"
	"github.com/roach88/flagsearch/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDs("")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession returns a session with minimal required fields.
func createTestSession() Session {
	return Session{
		Toolchain:        "gcc",
		ToolchainVersion: "10",
		CatalogHash:      "cat-hash",
		CommonFlags:      "-g",
		Jobs:             4,
		Settings:         map[string]string{"src_dir": "/src", "metric": "size"},
	}
}

// createTestRun returns a run record with its config hash filled in.
func createTestRun(id int64, kind ir.RunKind, score ir.Score, flags string) ir.RunRecord {
	return ir.RunRecord{
		RunID:      id,
		Kind:       kind,
		Flags:      flags,
		ConfigHash: ir.ConfigHash(flags),
		Score:      score,
	}
}
