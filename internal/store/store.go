// Package store keeps a local journal of submissions sent to the platform.
// Drafts are never stored here.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/galaxy-admin/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		remote_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_digest ON submissions(digest);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordSubmission stores a submission outcome. A zero CreatedAt is set to now.
func (s *Store) RecordSubmission(sub model.Submission) (int64, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO submissions (kind, title, remote_id, status, message, digest, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.Kind, sub.Title, sub.RemoteID, sub.Status, sub.Message, sub.Digest, sub.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSubmission returns a submission by ID.
func (s *Store) GetSubmission(id int64) (model.Submission, error) {
	var sub model.Submission
	err := s.db.QueryRow(
		`SELECT id, kind, title, remote_id, status, message, digest, created_at FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.Kind, &sub.Title, &sub.RemoteID, &sub.Status, &sub.Message, &sub.Digest, &sub.CreatedAt)
	return sub, err
}

// ListSubmissions returns the most recent submissions first.
// A limit of zero or less returns all of them.
func (s *Store) ListSubmissions(limit int) ([]model.Submission, error) {
	query := `SELECT id, kind, title, remote_id, status, message, digest, created_at FROM submissions ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.Kind, &sub.Title, &sub.RemoteID, &sub.Status, &sub.Message, &sub.Digest, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SubmissionCount returns the number of journal entries.
func (s *Store) SubmissionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submissions`).Scan(&count)
	return count, err
}
