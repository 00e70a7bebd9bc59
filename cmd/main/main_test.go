package main

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/CTAG07/Markovian/pkg/corpus"
	_ "github.com/mattn/go-sqlite3"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestStore creates a SQLite database in a temporary directory and a
// corpus store on it. It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) *corpus.Store {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := newStore(db, discardLogger())
	if err != nil {
		t.Fatalf("newStore() error = %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// setupTestAPI returns a mux serving a SpeakerAPI backed by a fresh store.
func setupTestAPI(t *testing.T) (*http.ServeMux, *corpus.Store) {
	t.Helper()
	store := setupTestStore(t)
	mux := http.NewServeMux()
	NewSpeakerAPI(store, DefaultConfig(), discardLogger()).RegisterRoutes(mux)
	return mux, store
}

// writeFile creates a file with content in dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if err := ensureDataDir(filepath.Join(dir, "corpus.db") + "?_journal_mode=WAL"); err != nil {
		t.Fatalf("ensureDataDir() error = %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected directory %s to exist, stat error = %v", dir, err)
	}

	for _, source := range []string{":memory:", "file::memory:?cache=shared", ""} {
		if err := ensureDataDir(source); err != nil {
			t.Errorf("ensureDataDir(%q) error = %v", source, err)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger(io.Discard, "debug"); err != nil {
		t.Errorf("newLogger(debug) error = %v", err)
	}
	if _, err := newLogger(io.Discard, "loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestCheckRequiredFlags(t *testing.T) {
	flags := corpusAddCmd.Flags()
	if err := checkRequiredFlags(flags); err == nil {
		t.Fatal("expected an error while --speaker is unset")
	}
	if err := flags.Set("speaker", "obama"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = flags.Set("speaker", "")
		flags.Lookup("speaker").Changed = false
	})
	if err := checkRequiredFlags(flags); err != nil {
		t.Errorf("checkRequiredFlags() error = %v after setting --speaker", err)
	}
}
