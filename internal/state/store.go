// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state persists collection progress so interrupted runs can
// resume. The store is keyed by its directory: one database per output
// location.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "collect.db"

// Store tracks which compounds a run has fully processed. Updated after
// each compound completes, so a crash loses at most one in-flight
// compound.
type Store struct {
	db *sql.DB
}

// Open opens or creates the collection state database under stateDir.
func Open(stateDir string) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processed_cids (
			cid INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL,
			processed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			change_summary TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Processed returns the set of compound identifiers already completed.
func (s *Store) Processed() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT cid FROM processed_cids`)
	if err != nil {
		return nil, fmt.Errorf("querying processed compounds: %w", err)
	}
	defer rows.Close()

	processed := make(map[int]bool)
	for rows.Next() {
		var cid int
		if err := rows.Scan(&cid); err != nil {
			return nil, fmt.Errorf("scanning processed compound: %w", err)
		}
		processed[cid] = true
	}
	return processed, rows.Err()
}

// MarkProcessed durably records one completed compound.
func (s *Store) MarkProcessed(cid int, runID string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO processed_cids (cid, run_id, processed_at) VALUES (?, ?, ?)`,
		cid, runID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("marking CID %d processed: %w", cid, err)
	}
	return nil
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(runID string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}
	return nil
}

// FinishRun records a run's completion and its change summary.
func (s *Store) FinishRun(runID, changeSummary string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, change_summary = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), changeSummary, runID,
	)
	if err != nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run's id, start time, and
// change summary. ok is false when no run has been recorded.
func (s *Store) LastRun() (runID string, startedAt time.Time, changeSummary string, ok bool, err error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, COALESCE(change_summary, '') FROM runs ORDER BY started_at DESC LIMIT 1`)

	var started string
	if scanErr := row.Scan(&runID, &started, &changeSummary); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", time.Time{}, "", false, nil
		}
		return "", time.Time{}, "", false, fmt.Errorf("querying last run: %w", scanErr)
	}

	startedAt, err = time.Parse(time.RFC3339, started)
	if err != nil {
		return "", time.Time{}, "", false, fmt.Errorf("parsing run start time: %w", err)
	}
	return runID, startedAt, changeSummary, true, nil
}

// Reset clears the processed-compound set for a fresh-start run. Run
// history is kept.
func (s *Store) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM processed_cids`); err != nil {
		return fmt.Errorf("clearing processed compounds: %w", err)
	}
	return nil
}
