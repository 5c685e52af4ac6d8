package db

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// SaveSyncRun persists a sync report.
func (db *DB) SaveSyncRun(ctx context.Context, report *models.SyncReport) (int64, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to encode report: %w", err)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO sync_runs (recruiter_id, scope, started_at, finished_at, report)
		VALUES (?, ?, ?, ?, ?)
	`, report.RecruiterID, report.Scope, report.StartedAt.UTC(), report.FinishedAt.UTC(), string(payload))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestSyncRun returns the most recent sync run of a recruiter.
func (db *DB) LatestSyncRun(ctx context.Context, recruiterID int64) (*models.SyncRun, error) {
	var (
		run     models.SyncRun
		payload string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, recruiter_id, scope, started_at, finished_at, report
		FROM sync_runs
		WHERE recruiter_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`, recruiterID).Scan(&run.ID, &run.RecruiterID, &run.Scope, &run.StartedAt, &run.FinishedAt, &payload)
	if err != nil {
		return nil, notFound(err, "sync run")
	}
	if err := json.Unmarshal([]byte(payload), &run.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report of run %d: %w", run.ID, err)
	}
	return &run, nil
}
