package models

import "time"

// AttachmentStatus tracks whether the binary content of an attachment made it
// into blob storage.
type AttachmentStatus string

const (
	AttachmentPending   AttachmentStatus = "pending"
	AttachmentCompleted AttachmentStatus = "completed"
	AttachmentFailed    AttachmentStatus = "failed"
)

// Attachment represents a candidate file mirrored from the remote system.
// Records are only ever created, never updated.
type Attachment struct {
	ID               int64
	ExternalID       int64
	CandidateID      int64
	Name             string
	OriginalFilename string
	StorageKey       string
	MimeType         string
	Size             int64
	Status           AttachmentStatus
	CreatedAt        time.Time
}
