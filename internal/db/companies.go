package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

const companyColumns = `id, external_id, recruiter_id, name, active`

// ListCompanies returns every company of a recruiter, active or not.
func (db *DB) ListCompanies(ctx context.Context, recruiterID int64) ([]models.Company, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+companyColumns+`
		FROM companies
		WHERE recruiter_id = ?
		ORDER BY id
	`, recruiterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

// GetCompany retrieves a company by id
func (db *DB) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	row := db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	return scanCompany(row)
}

// CreateCompany inserts a company and fills in its id.
func (db *DB) CreateCompany(ctx context.Context, c *models.Company) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO companies (external_id, recruiter_id, name, active)
		VALUES (?, ?, ?, ?)
	`, nullInt64(c.ExternalID), c.RecruiterID, c.Name, c.Active)
	if err != nil {
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

// UpdateCompany writes the mutable fields of a company. When another company
// of the same recruiter already holds the new name, that company is first
// moved to DisplacedCompanyName so that renames which swap or reuse names
// succeed; its next sync gives it the remote name again.
func (db *DB) UpdateCompany(ctx context.Context, c *models.Company) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var holder int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM companies
		WHERE recruiter_id = (SELECT recruiter_id FROM companies WHERE id = ?)
			AND name = ? AND id != ?
	`, c.ID, c.Name, c.ID).Scan(&holder)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `UPDATE companies SET name = ? WHERE id = ?`,
			DisplacedCompanyName(c.Name, holder), holder); err != nil {
			return fmt.Errorf("failed to move company %d out of the way: %w", holder, err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE companies
		SET external_id = ?, name = ?, active = ?
		WHERE id = ?
	`, nullInt64(c.ExternalID), c.Name, c.Active, c.ID); err != nil {
		return err
	}
	return tx.Commit()
}

// DisplacedCompanyName is the temporary name of a company whose name was
// taken by another company of the same recruiter.
func DisplacedCompanyName(name string, id int64) string {
	return fmt.Sprintf("%s (#%d)", name, id)
}

// SetCompanyActive flips the active flag of a company
func (db *DB) SetCompanyActive(ctx context.Context, id int64, active bool) error {
	_, err := db.ExecContext(ctx, `UPDATE companies SET active = ? WHERE id = ?`, active, id)
	return err
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var (
		c   models.Company
		ext sql.NullInt64
	)
	if err := row.Scan(&c.ID, &ext, &c.RecruiterID, &c.Name, &c.Active); err != nil {
		return nil, notFound(err, "company")
	}
	c.ExternalID = int64Ptr(ext)
	return &c, nil
}
