package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Store keeps the history of finished jobs
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; the job hooks call in from two workers
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		item_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL REFERENCES jobs(id),
		posted_at DATETIME NOT NULL,
		link TEXT NOT NULL,
		username TEXT,
		UNIQUE(job_id, link)
	);

	CREATE TABLE IF NOT EXISTS block_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL REFERENCES jobs(id),
		handle TEXT NOT NULL,
		outcome TEXT NOT NULL,
		UNIQUE(job_id, handle)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_finished_at ON jobs(finished_at);
	CREATE INDEX IF NOT EXISTS idx_records_job ON records(job_id);
	CREATE INDEX IF NOT EXISTS idx_block_outcomes_job ON block_outcomes(job_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveJob inserts or updates a job row. Times are stored in UTC.
func (s *Store) SaveJob(j JobRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, kind, status, error, item_count, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			item_count = excluded.item_count,
			finished_at = excluded.finished_at
	`, j.ID, j.Kind, j.Status, j.Error, j.ItemCount, j.CreatedAt.UTC(), j.FinishedAt.UTC())
	return err
}

// SaveRecords stores the records collected by a scrape job. Re-saving a link is a no-op.
// The driver cannot scan back times written in a fixed zone, so timestamps go in as UTC.
func (s *Store) SaveRecords(jobID string, records []types.Record) error {
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO records (job_id, posted_at, link, username)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(job_id, link) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			if _, err := stmt.Exec(jobID, r.Timestamp.UTC(), r.Link, r.Username); err != nil {
				return fmt.Errorf("save record %s: %w", r.Link, err)
			}
		}
		return nil
	})
}

// SaveBlockOutcomes stores the per-account outcomes of a block job
func (s *Store) SaveBlockOutcomes(jobID string, outcomes []types.HandleOutcome) error {
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO block_outcomes (job_id, handle, outcome)
			VALUES (?, ?, ?)
			ON CONFLICT(job_id, handle) DO UPDATE SET outcome = excluded.outcome
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, o := range outcomes {
			if _, err := stmt.Exec(jobID, o.Handle, string(o.Outcome)); err != nil {
				return fmt.Errorf("save outcome %s: %w", o.Handle, err)
			}
		}
		return nil
	})
}

// RecordsForJob returns a job's records in the order they were saved, timestamps in UTC
func (s *Store) RecordsForJob(jobID string) ([]types.Record, error) {
	rows, err := s.db.Query(`
		SELECT posted_at, link, username FROM records
		WHERE job_id = ?
		ORDER BY id
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var r types.Record
		var username sql.NullString
		if err := rows.Scan(&r.Timestamp, &r.Link, &username); err != nil {
			return nil, err
		}
		r.Username = username.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// OutcomesForJob returns a job's block outcomes in processing order
func (s *Store) OutcomesForJob(jobID string) ([]types.HandleOutcome, error) {
	rows, err := s.db.Query(`
		SELECT handle, outcome FROM block_outcomes
		WHERE job_id = ?
		ORDER BY id
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []types.HandleOutcome
	for rows.Next() {
		var o types.HandleOutcome
		var outcome string
		if err := rows.Scan(&o.Handle, &outcome); err != nil {
			return nil, err
		}
		o.Outcome = types.BlockOutcome(outcome)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// RecentJobs returns the most recently finished jobs, newest first
func (s *Store) RecentJobs(limit int) ([]JobRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, status, error, item_count, created_at, finished_at
		FROM jobs
		ORDER BY finished_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var j JobRecord
		var errText sql.NullString
		if err := rows.Scan(&j.ID, &j.Kind, &j.Status, &errText, &j.ItemCount, &j.CreatedAt, &j.FinishedAt); err != nil {
			return nil, err
		}
		j.Error = errText.String
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
