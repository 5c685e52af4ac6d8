package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// DB represents a database connection
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the sqlite database at path.
func New(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; one connection keeps pragmas consistent.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.initialize(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates the necessary tables if they don't exist
func (db *DB) initialize() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS recruiters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS credentials (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recruiter_id INTEGER NOT NULL REFERENCES recruiters(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			db_name TEXT NOT NULL,
			login TEXT NOT NULL,
			secret TEXT NOT NULL,
			remote_user_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS companies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER,
			recruiter_id INTEGER NOT NULL REFERENCES recruiters(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT 1,
			UNIQUE (recruiter_id, name),
			UNIQUE (recruiter_id, external_id)
		);
		CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER,
			company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'open',
			active BOOLEAN NOT NULL DEFAULT 1,
			posted_at DATETIME,
			expires_at DATETIME,
			UNIQUE (company_id, external_id)
		);
		CREATE TABLE IF NOT EXISTS candidates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER,
			job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'applied',
			stage_changed_at DATETIME,
			applied_at DATETIME,
			UNIQUE (job_id, external_id)
		);
		CREATE TABLE IF NOT EXISTS attachments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_id INTEGER NOT NULL UNIQUE,
			candidate_id INTEGER NOT NULL REFERENCES candidates(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			original_filename TEXT NOT NULL DEFAULT '',
			storage_key TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			sync_status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sync_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recruiter_id INTEGER NOT NULL REFERENCES recruiters(id) ON DELETE CASCADE,
			scope TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			report TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_credentials_recruiter ON credentials(recruiter_id);
		CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company_id);
		CREATE INDEX IF NOT EXISTS idx_candidates_job ON candidates(job_id);
		CREATE INDEX IF NOT EXISTS idx_attachments_candidate ON attachments(candidate_id, sync_status);
		CREATE INDEX IF NOT EXISTS idx_sync_runs_recruiter ON sync_runs(recruiter_id, started_at);
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA temp_store=MEMORY;
	`)
	return err
}

// GetStats returns statistics about the data synced for a recruiter
func (db *DB) GetStats(ctx context.Context, recruiterID int64) (*models.Stats, error) {
	var stats models.Stats
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN active THEN 1 END)
		FROM companies
		WHERE recruiter_id = ?
	`, recruiterID).Scan(&stats.TotalCompanies, &stats.ActiveCompanies)
	if err != nil {
		return nil, fmt.Errorf("failed to get company stats: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN j.state IN ('open', 'recruiting') AND j.active THEN 1 END)
		FROM jobs j
		JOIN companies c ON c.id = j.company_id
		WHERE c.recruiter_id = ?
	`, recruiterID).Scan(&stats.TotalJobs, &stats.OpenJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM candidates k
		JOIN jobs j ON j.id = k.job_id
		JOIN companies c ON c.id = j.company_id
		WHERE c.recruiter_id = ?
	`, recruiterID).Scan(&stats.TotalCandidates)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate stats: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN a.sync_status = 'completed' THEN 1 END),
			COUNT(CASE WHEN a.sync_status = 'failed' THEN 1 END),
			COALESCE(SUM(a.size), 0)
		FROM attachments a
		JOIN candidates k ON k.id = a.candidate_id
		JOIN jobs j ON j.id = k.job_id
		JOIN companies c ON c.id = j.company_id
		WHERE c.recruiter_id = ?
	`, recruiterID).Scan(
		&stats.TotalAttachments,
		&stats.CompletedAttachments,
		&stats.FailedAttachments,
		&stats.AttachmentBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment stats: %w", err)
	}
	return &stats, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
