package sync

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chmdznr/odoo-recruit-sync/internal/blob"
	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

var errEmptyContent = errors.New("attachment has no content")

// SyncAttachments downloads the attachments of a linked candidate that were
// never stored before. Already known external ids are skipped without
// fetching content. A failed download still leaves a record with status
// failed, and the remaining attachments are processed.
func (s *Syncer) SyncAttachments(ctx context.Context, candidateID int64) ([]models.Attachment, *models.SyncReport, error) {
	candidate, err := s.db.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.db.GetJob(ctx, candidate.JobID)
	if err != nil {
		return nil, nil, err
	}
	company, err := s.db.GetCompany(ctx, job.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.open(ctx, company.RecruiterID, "attachments")
	if err != nil {
		return nil, nil, err
	}
	defer s.close(sess)

	attachments, err := s.syncAttachments(ctx, sess, *candidate)
	return attachments, sess.report, err
}

func (s *Syncer) syncAttachments(ctx context.Context, sess *session, candidate models.Candidate) ([]models.Attachment, error) {
	ext, ok := models.ExternalIDOf(candidate.ExternalID)
	if !ok {
		return nil, fmt.Errorf("candidate %d: %w", candidate.ID, ErrCandidateNotLinked)
	}
	if s.blobs == nil {
		return nil, errors.New("no blob store configured")
	}
	metas, err := sess.remote.Attachments(ctx, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments of candidate %d: %w", candidate.ID, err)
	}

	counts := &sess.report.Attachments
	var created []models.Attachment
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		exists, err := s.db.AttachmentExists(ctx, meta.ID)
		if err != nil {
			counts.Failed++
			sess.report.Skip(EntityAttachment, meta.ID, err)
			continue
		}
		if exists {
			counts.Skipped++
			continue
		}

		att, cause := s.download(ctx, sess, candidate, meta)
		if cause != nil && ctx.Err() != nil {
			return created, ctx.Err()
		}
		if err := s.db.CreateAttachment(ctx, &att); err != nil {
			counts.Failed++
			sess.report.Skip(EntityAttachment, meta.ID, fmt.Errorf("failed to save attachment: %w", err))
			continue
		}
		created = append(created, att)
		if cause != nil {
			counts.Failed++
			sess.report.Skip(EntityAttachment, meta.ID, cause)
			s.logger.Warn("attachment download failed", "attachment", meta.ID, "candidate", candidate.ID, "error", cause)
			continue
		}
		counts.Created++
		s.logger.Debug("attachment stored", "attachment", meta.ID, "key", att.StorageKey, "size", att.Size)
	}
	return created, nil
}

// download fetches, decodes and stores one attachment. The returned record
// is always usable: on failure it has status failed, size 0 and no key.
func (s *Syncer) download(ctx context.Context, sess *session, candidate models.Candidate, meta odoo.Attachment) (models.Attachment, error) {
	att := models.Attachment{
		ExternalID:       meta.ID,
		CandidateID:      candidate.ID,
		Name:             meta.Name.String(),
		OriginalFilename: meta.Name.String(),
		MimeType:         meta.Mimetype.String(),
		Status:           models.AttachmentFailed,
		CreatedAt:        s.now().UTC(),
	}

	content, err := sess.remote.AttachmentContent(ctx, meta.ID)
	if err != nil {
		return att, fmt.Errorf("fetch content: %w", err)
	}
	payload := strings.Join(strings.Fields(content.Datas.String()), "")
	if payload == "" {
		return att, errEmptyContent
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return att, fmt.Errorf("decode content: %w", err)
	}

	declared := content.Mimetype.String()
	if declared == "" {
		declared = meta.Mimetype.String()
	}
	mime := blob.DetectMime(declared, data)
	key := blob.NewObjectKey(s.now(), meta.ID, att.Name, blob.Extension(att.OriginalFilename, mime, data))

	err = s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), blob.PutOptions{
		ContentType: mime,
		Metadata: map[string]string{
			"original-filename": att.OriginalFilename,
			"odoo-attachment":   strconv.FormatInt(meta.ID, 10),
		},
	})
	if err != nil {
		return att, fmt.Errorf("store content: %w", err)
	}

	att.MimeType = mime
	att.StorageKey = key
	att.Size = int64(len(data))
	att.Status = models.AttachmentCompleted
	return att, nil
}
