package models

import "time"

// JobState is the local lifecycle of a job posting.
type JobState string

const (
	JobOpen       JobState = "open"
	JobRecruiting JobState = "recruiting"
	JobPaused     JobState = "paused"
	JobClosed     JobState = "closed"
	JobCancelled  JobState = "cancelled"
)

// CandidateState is the local recruitment pipeline stage.
type CandidateState string

const (
	CandidateApplied   CandidateState = "applied"
	CandidateQualified CandidateState = "qualified"
	CandidateInterview CandidateState = "interview"
	CandidateOffer     CandidateState = "offer"
	CandidateHired     CandidateState = "hired"
	CandidateRejected  CandidateState = "rejected"
)

type Recruiter struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

// Credential is a stored Odoo connection for a recruiter. Secret holds the
// sealed value; it is only opened when a sync session starts.
type Credential struct {
	ID           int64
	RecruiterID  int64
	URL          string
	DBName       string
	Login        string
	Secret       string
	RemoteUserID int64
	CreatedAt    time.Time
}

type Company struct {
	ID          int64
	ExternalID  *int64
	RecruiterID int64
	Name        string
	Active      bool
}

type Job struct {
	ID          int64
	ExternalID  *int64
	CompanyID   int64
	Title       string
	Description string
	State       JobState
	Active      bool
	PostedAt    *time.Time
	ExpiresAt   *time.Time
}

type Candidate struct {
	ID             int64
	ExternalID     *int64
	JobID          int64
	Name           string
	Email          string
	Phone          string
	State          CandidateState
	StageChangedAt *time.Time
	AppliedAt      *time.Time
}

// ExternalIDOf returns the value behind an optional external id.
func ExternalIDOf(id *int64) (int64, bool) {
	if id == nil {
		return 0, false
	}
	return *id, true
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
