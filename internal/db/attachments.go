package db

import (
	"context"
	"time"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

const attachmentColumns = `id, external_id, candidate_id, name, original_filename, storage_key, mime_type, size, sync_status, created_at`

// AttachmentExists reports whether an attachment with the given external id
// was already stored, whatever its status.
func (db *DB) AttachmentExists(ctx context.Context, externalID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attachments WHERE external_id = ?)
	`, externalID).Scan(&exists)
	return exists, err
}

// CreateAttachment inserts an attachment record and fills in its id.
func (db *DB) CreateAttachment(ctx context.Context, a *models.Attachment) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = models.AttachmentPending
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO attachments (external_id, candidate_id, name, original_filename, storage_key, mime_type, size, sync_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ExternalID,
		a.CandidateID,
		a.Name,
		a.OriginalFilename,
		a.StorageKey,
		a.MimeType,
		a.Size,
		string(a.Status),
		a.CreatedAt,
	)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	return err
}

// ListAttachments returns the attachments of a candidate
func (db *DB) ListAttachments(ctx context.Context, candidateID int64) ([]models.Attachment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+attachmentColumns+`
		FROM attachments
		WHERE candidate_id = ?
		ORDER BY id
	`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []models.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, *a)
	}
	return attachments, rows.Err()
}

// GetAttachment retrieves an attachment by id
func (db *DB) GetAttachment(ctx context.Context, id int64) (*models.Attachment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	return scanAttachment(row)
}

func scanAttachment(row rowScanner) (*models.Attachment, error) {
	var (
		a      models.Attachment
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.ExternalID,
		&a.CandidateID,
		&a.Name,
		&a.OriginalFilename,
		&a.StorageKey,
		&a.MimeType,
		&a.Size,
		&status,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, "attachment")
	}
	a.Status = models.AttachmentStatus(status)
	return &a, nil
}
