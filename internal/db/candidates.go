package db

import (
	"context"
	"database/sql"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

const candidateColumns = `id, external_id, job_id, name, email, phone, state, stage_changed_at, applied_at`

// ListCandidates returns the candidates of a job
func (db *DB) ListCandidates(ctx context.Context, jobID int64) ([]models.Candidate, error) {
	return db.queryCandidates(ctx, `
		SELECT `+candidateColumns+`
		FROM candidates
		WHERE job_id = ?
		ORDER BY id
	`, jobID)
}

// ListCompanyCandidates returns the candidates of every job of a company
func (db *DB) ListCompanyCandidates(ctx context.Context, companyID int64) ([]models.Candidate, error) {
	return db.queryCandidates(ctx, `
		SELECT k.id, k.external_id, k.job_id, k.name, k.email, k.phone, k.state, k.stage_changed_at, k.applied_at
		FROM candidates k
		JOIN jobs j ON j.id = k.job_id
		WHERE j.company_id = ?
		ORDER BY k.id
	`, companyID)
}

func (db *DB) queryCandidates(ctx context.Context, query string, args ...any) ([]models.Candidate, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// GetCandidate retrieves a candidate by id
func (db *DB) GetCandidate(ctx context.Context, id int64) (*models.Candidate, error) {
	row := db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	return scanCandidate(row)
}

// CreateCandidate inserts a candidate and fills in its id.
func (db *DB) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO candidates (external_id, job_id, name, email, phone, state, stage_changed_at, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt64(c.ExternalID),
		c.JobID,
		c.Name,
		c.Email,
		c.Phone,
		string(c.State),
		nullTime(c.StageChangedAt),
		nullTime(c.AppliedAt),
	)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

// UpdateCandidate writes the mutable fields of a candidate.
func (db *DB) UpdateCandidate(ctx context.Context, c *models.Candidate) error {
	_, err := db.ExecContext(ctx, `
		UPDATE candidates
		SET external_id = ?, name = ?, email = ?, phone = ?, state = ?, stage_changed_at = ?, applied_at = ?
		WHERE id = ?
	`,
		nullInt64(c.ExternalID),
		c.Name,
		c.Email,
		c.Phone,
		string(c.State),
		nullTime(c.StageChangedAt),
		nullTime(c.AppliedAt),
		c.ID,
	)
	return err
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var (
		c              models.Candidate
		ext            sql.NullInt64
		state          string
		staged, opened sql.NullTime
	)
	err := row.Scan(&c.ID, &ext, &c.JobID, &c.Name, &c.Email, &c.Phone, &state, &staged, &opened)
	if err != nil {
		return nil, notFound(err, "candidate")
	}
	c.ExternalID = int64Ptr(ext)
	c.State = models.CandidateState(state)
	c.StageChangedAt = timePtr(staged)
	c.AppliedAt = timePtr(opened)
	return &c, nil
}
