package models

import "time"

// Stats represents store statistics for a recruiter
type Stats struct {
	TotalCompanies       int64
	ActiveCompanies      int64
	TotalJobs            int64
	OpenJobs             int64
	TotalCandidates      int64
	TotalAttachments     int64
	CompletedAttachments int64
	FailedAttachments    int64
	AttachmentBytes      int64
}

// Counts summarises what a reconciliation pass did to one entity kind.
type Counts struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Unchanged   int `json:"unchanged"`
	Deactivated int `json:"deactivated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Synced is the number of records that exist locally after the pass.
func (c Counts) Synced() int {
	return c.Created + c.Updated + c.Unchanged
}

// SkipReason explains why a single remote record was not synced.
type SkipReason struct {
	Entity     string `json:"entity"`
	ExternalID int64  `json:"external_id"`
	Reason     string `json:"reason"`
}

// SyncReport is the partial-success report of one sync invocation.
type SyncReport struct {
	RecruiterID int64        `json:"recruiter_id"`
	Scope       string       `json:"scope"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Companies   Counts       `json:"companies"`
	Jobs        Counts       `json:"jobs"`
	Candidates  Counts       `json:"candidates"`
	Attachments Counts       `json:"attachments"`
	Skipped     []SkipReason `json:"skipped,omitempty"`
}

// Skip records a skipped remote record.
func (r *SyncReport) Skip(entity string, externalID int64, err error) {
	r.Skipped = append(r.Skipped, SkipReason{
		Entity:     entity,
		ExternalID: externalID,
		Reason:     err.Error(),
	})
}

// SyncRun is a persisted sync report.
type SyncRun struct {
	ID          int64
	RecruiterID int64
	Scope       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Report      SyncReport
}
