package db

import (
	"context"
	"database/sql"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

const jobColumns = `id, external_id, company_id, title, description, state, active, posted_at, expires_at`

// ListJobs returns every job of a company, including closed ones.
func (db *DB) ListJobs(ctx context.Context, companyID int64) ([]models.Job, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE company_id = ?
		ORDER BY id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// GetJob retrieves a job by id
func (db *DB) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	row := db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// CreateJob inserts a job and fills in its id.
func (db *DB) CreateJob(ctx context.Context, j *models.Job) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO jobs (external_id, company_id, title, description, state, active, posted_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt64(j.ExternalID),
		j.CompanyID,
		j.Title,
		j.Description,
		string(j.State),
		j.Active,
		nullTime(j.PostedAt),
		nullTime(j.ExpiresAt),
	)
	if err != nil {
		return err
	}
	j.ID, err = res.LastInsertId()
	return err
}

// UpdateJob writes the mutable fields of a job.
func (db *DB) UpdateJob(ctx context.Context, j *models.Job) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs
		SET external_id = ?, title = ?, description = ?, state = ?, active = ?, posted_at = ?, expires_at = ?
		WHERE id = ?
	`,
		nullInt64(j.ExternalID),
		j.Title,
		j.Description,
		string(j.State),
		j.Active,
		nullTime(j.PostedAt),
		nullTime(j.ExpiresAt),
		j.ID,
	)
	return err
}

// CloseJob marks a job closed and inactive.
func (db *DB) CloseJob(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, active = 0 WHERE id = ?
	`, string(models.JobClosed), id)
	return err
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		j               models.Job
		ext             sql.NullInt64
		state           string
		posted, expires sql.NullTime
	)
	err := row.Scan(&j.ID, &ext, &j.CompanyID, &j.Title, &j.Description, &state, &j.Active, &posted, &expires)
	if err != nil {
		return nil, notFound(err, "job")
	}
	j.ExternalID = int64Ptr(ext)
	j.State = models.JobState(state)
	j.PostedAt = timePtr(posted)
	j.ExpiresAt = timePtr(expires)
	return &j, nil
}
