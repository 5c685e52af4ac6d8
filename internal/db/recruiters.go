package db

import (
	"context"
	"time"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// CreateRecruiter inserts a recruiter and fills in its id.
func (db *DB) CreateRecruiter(ctx context.Context, r *models.Recruiter) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO recruiters (email, name, created_at)
		VALUES (?, ?, ?)
	`, r.Email, r.Name, r.CreatedAt)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

// GetRecruiter retrieves a recruiter by id
func (db *DB) GetRecruiter(ctx context.Context, id int64) (*models.Recruiter, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, email, name, created_at FROM recruiters WHERE id = ?
	`, id)
	return scanRecruiter(row)
}

// GetRecruiterByEmail retrieves a recruiter by email
func (db *DB) GetRecruiterByEmail(ctx context.Context, email string) (*models.Recruiter, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, email, name, created_at FROM recruiters WHERE email = ?
	`, email)
	return scanRecruiter(row)
}

// ListRecruiters returns all recruiters ordered by id
func (db *DB) ListRecruiters(ctx context.Context) ([]models.Recruiter, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, email, name, created_at FROM recruiters ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recruiters []models.Recruiter
	for rows.Next() {
		r, err := scanRecruiter(rows)
		if err != nil {
			return nil, err
		}
		recruiters = append(recruiters, *r)
	}
	return recruiters, rows.Err()
}

func scanRecruiter(row rowScanner) (*models.Recruiter, error) {
	var r models.Recruiter
	if err := row.Scan(&r.ID, &r.Email, &r.Name, &r.CreatedAt); err != nil {
		return nil, notFound(err, "recruiter")
	}
	return &r, nil
}

// SaveCredential stores a credential, replacing the one of the same recruiter
// for the same remote database and user. The replacement gets a new id, so
// the credential saved last is always the most recent.
func (db *DB) SaveCredential(ctx context.Context, c *models.Credential) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM credentials
		WHERE recruiter_id = ? AND db_name = ? AND remote_user_id = ?
	`, c.RecruiterID, c.DBName, c.RemoteUserID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (recruiter_id, url, db_name, login, secret, remote_user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		c.RecruiterID,
		c.URL,
		c.DBName,
		c.Login,
		c.Secret,
		c.RemoteUserID,
		c.CreatedAt,
	)
	if err != nil {
		return err
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return tx.Commit()
}

// LatestCredential returns the most recently stored credential for a recruiter.
func (db *DB) LatestCredential(ctx context.Context, recruiterID int64) (*models.Credential, error) {
	var c models.Credential
	err := db.QueryRowContext(ctx, `
		SELECT id, recruiter_id, url, db_name, login, secret, remote_user_id, created_at
		FROM credentials
		WHERE recruiter_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, recruiterID).Scan(
		&c.ID,
		&c.RecruiterID,
		&c.URL,
		&c.DBName,
		&c.Login,
		&c.Secret,
		&c.RemoteUserID,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "credential")
	}
	return &c, nil
}
