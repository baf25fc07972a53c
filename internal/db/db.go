package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/attune/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file inside the base directory.
const FileName = "attune.db"

// Querier is satisfied by *sql.DB and *sql.Tx, so every query can run
// inside an import transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/attune.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.attune.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: append-only journal
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS checkins (
		  seq               INTEGER PRIMARY KEY AUTOINCREMENT,
		  id                TEXT NOT NULL UNIQUE,
		  timestamp         INTEGER NOT NULL,
		  retrospective     TEXT NOT NULL DEFAULT '',
		  prospective       TEXT NOT NULL DEFAULT '',
		  target            TEXT,
		  hours_slept       REAL,
		  alignment_prior   REAL,
		  alignment_target  REAL,
		  drift_flag        INTEGER NOT NULL DEFAULT 0,
		  scoring_mode      TEXT,
		  emb_retrospective TEXT,
		  emb_prospective   TEXT,
		  emb_target        TEXT,
		  created_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_checkins_timestamp ON checkins(timestamp);

		CREATE TABLE IF NOT EXISTS moods (
		  seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		  id              TEXT NOT NULL UNIQUE,
		  timestamp       INTEGER NOT NULL,
		  ratings_json    TEXT NOT NULL,
		  positive_affect INTEGER NOT NULL,
		  negative_affect INTEGER NOT NULL,
		  note            TEXT,
		  created_at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_moods_timestamp ON moods(timestamp);

		CREATE TRIGGER IF NOT EXISTS checkins_no_update BEFORE UPDATE ON checkins
		BEGIN SELECT RAISE(ABORT, 'checkins are append-only'); END;

		CREATE TRIGGER IF NOT EXISTS checkins_no_delete BEFORE DELETE ON checkins
		BEGIN SELECT RAISE(ABORT, 'checkins are append-only'); END;

		CREATE TRIGGER IF NOT EXISTS moods_no_update BEFORE UPDATE ON moods
		BEGIN SELECT RAISE(ABORT, 'moods are append-only'); END;

		CREATE TRIGGER IF NOT EXISTS moods_no_delete BEFORE DELETE ON moods
		BEGIN SELECT RAISE(ABORT, 'moods are append-only'); END;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
