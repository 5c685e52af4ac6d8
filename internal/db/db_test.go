package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRecruiter(t *testing.T, db *DB) *models.Recruiter {
	t.Helper()
	r := &models.Recruiter{Email: "jane@example.com", Name: "Jane"}
	require.NoError(t, db.CreateRecruiter(context.Background(), r))
	return r
}

func TestLatestCredential(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := seedRecruiter(t, db)

	_, err := db.LatestCredential(ctx, r.ID)
	require.ErrorIs(t, err, ErrNotFound)

	save := func(login, dbName string, uid int64) {
		require.NoError(t, db.SaveCredential(ctx, &models.Credential{
			RecruiterID:  r.ID,
			URL:          "https://odoo.example.com",
			DBName:       dbName,
			Login:        login,
			Secret:       "sealed",
			RemoteUserID: uid,
		}))
	}
	countCredentials := func() int {
		var n int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials WHERE recruiter_id = ?`, r.ID).Scan(&n))
		return n
	}

	save("old@example.com", "prod", 2)
	save("new@example.com", "prod", 3)
	cred, err := db.LatestCredential(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", cred.Login)
	assert.Equal(t, 2, countCredentials())

	// Same remote user again: replaced, and now the most recent.
	save("old+renamed@example.com", "prod", 2)
	cred, err = db.LatestCredential(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "old+renamed@example.com", cred.Login)
	assert.Equal(t, 2, countCredentials())

	// Same user id on another database is a different account.
	save("old@example.com", "staging", 2)
	assert.Equal(t, 3, countCredentials())
}

func TestCompanyUniqueness(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := seedRecruiter(t, db)

	require.NoError(t, db.CreateCompany(ctx, &models.Company{RecruiterID: r.ID, Name: "Acme", ExternalID: models.Ptr[int64](10), Active: true}))

	tests := []struct {
		name    string
		company models.Company
		wantErr bool
	}{
		{
			name:    "duplicate name",
			company: models.Company{RecruiterID: r.ID, Name: "Acme", Active: true},
			wantErr: true,
		},
		{
			name:    "duplicate external id",
			company: models.Company{RecruiterID: r.ID, Name: "Other", ExternalID: models.Ptr[int64](10), Active: true},
			wantErr: true,
		},
		{
			name:    "unlinked companies may share a null external id",
			company: models.Company{RecruiterID: r.ID, Name: "Local only", Active: true},
		},
		{
			name:    "second unlinked company",
			company: models.Company{RecruiterID: r.ID, Name: "Local only 2", Active: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.company
			err := db.CreateCompany(ctx, &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestJobRoundTripAndClose(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := seedRecruiter(t, db)
	company := &models.Company{RecruiterID: r.ID, Name: "Acme", Active: true}
	require.NoError(t, db.CreateCompany(ctx, company))

	posted := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	job := &models.Job{
		ExternalID:  models.Ptr[int64](100),
		CompanyID:   company.ID,
		Title:       "Backend Engineer",
		Description: "Go",
		State:       models.JobRecruiting,
		Active:      true,
		PostedAt:    &posted,
	}
	require.NoError(t, db.CreateJob(ctx, job))

	got, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), *got.ExternalID)
	assert.Equal(t, models.JobRecruiting, got.State)
	require.NotNil(t, got.PostedAt)
	assert.True(t, posted.Equal(*got.PostedAt))
	assert.Nil(t, got.ExpiresAt)

	require.NoError(t, db.CloseJob(ctx, job.ID))
	got, err = db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobClosed, got.State)
	assert.False(t, got.Active)

	dup := &models.Job{ExternalID: models.Ptr[int64](100), CompanyID: company.ID, Title: "Dup", State: models.JobOpen}
	assert.Error(t, db.CreateJob(ctx, dup))
}

func TestAttachmentExistsAndCascade(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := seedRecruiter(t, db)
	company := &models.Company{RecruiterID: r.ID, Name: "Acme", Active: true}
	require.NoError(t, db.CreateCompany(ctx, company))
	job := &models.Job{CompanyID: company.ID, Title: "Designer", State: models.JobOpen, Active: true}
	require.NoError(t, db.CreateJob(ctx, job))
	cand := &models.Candidate{ExternalID: models.Ptr[int64](7), JobID: job.ID, Name: "Ann", State: models.CandidateApplied}
	require.NoError(t, db.CreateCandidate(ctx, cand))

	exists, err := db.AttachmentExists(ctx, 555)
	require.NoError(t, err)
	assert.False(t, exists)

	att := &models.Attachment{ExternalID: 555, CandidateID: cand.ID, Name: "cv.pdf", Status: models.AttachmentCompleted, Size: 42}
	require.NoError(t, db.CreateAttachment(ctx, att))

	exists, err = db.AttachmentExists(ctx, 555)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, db.CreateAttachment(ctx, &models.Attachment{ExternalID: 555, CandidateID: cand.ID}))

	_, err = db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, company.ID)
	require.NoError(t, err)
	_, err = db.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetCandidate(ctx, cand.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetAttachment(ctx, att.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := seedRecruiter(t, db)

	active := &models.Company{RecruiterID: r.ID, Name: "Acme", Active: true}
	require.NoError(t, db.CreateCompany(ctx, active))
	require.NoError(t, db.CreateCompany(ctx, &models.Company{RecruiterID: r.ID, Name: "Gone", Active: false}))

	open := &models.Job{CompanyID: active.ID, Title: "Open", State: models.JobOpen, Active: true}
	require.NoError(t, db.CreateJob(ctx, open))
	require.NoError(t, db.CreateJob(ctx, &models.Job{CompanyID: active.ID, Title: "Closed", State: models.JobClosed}))

	cand := &models.Candidate{JobID: open.ID, Name: "Ann", State: models.CandidateApplied}
	require.NoError(t, db.CreateCandidate(ctx, cand))
	require.NoError(t, db.CreateAttachment(ctx, &models.Attachment{ExternalID: 1, CandidateID: cand.ID, Status: models.AttachmentCompleted, Size: 1000}))
	require.NoError(t, db.CreateAttachment(ctx, &models.Attachment{ExternalID: 2, CandidateID: cand.ID, Status: models.AttachmentFailed}))

	stats, err := db.GetStats(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{
		TotalCompanies:       2,
		ActiveCompanies:      1,
		TotalJobs:            2,
		OpenJobs:             1,
		TotalCandidates:      1,
		TotalAttachments:     2,
		CompletedAttachments: 1,
		FailedAttachments:    1,
		AttachmentBytes:      1000,
	}, *stats)
}

func TestSyncRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := seedRecruiter(t, db)

	start := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	report := &models.SyncReport{
		RecruiterID: r.ID,
		Scope:       "companies",
		StartedAt:   start,
		FinishedAt:  start.Add(time.Minute),
		Companies:   models.Counts{Created: 2},
	}
	report.Skip("job", 100, assert.AnError)

	_, err := db.SaveSyncRun(ctx, report)
	require.NoError(t, err)

	run, err := db.LatestSyncRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "companies", run.Scope)
	assert.Equal(t, 2, run.Report.Companies.Created)
	require.Len(t, run.Report.Skipped, 1)
	assert.Equal(t, int64(100), run.Report.Skipped[0].ExternalID)
}

func TestUpdateCompanyTakesNameOfAnother(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := seedRecruiter(t, db)
	other := &models.Recruiter{Email: "sam@example.com", Name: "Sam"}
	require.NoError(t, db.CreateRecruiter(ctx, other))

	a := &models.Company{RecruiterID: r.ID, Name: "A", ExternalID: models.Ptr[int64](10), Active: true}
	b := &models.Company{RecruiterID: r.ID, Name: "B", ExternalID: models.Ptr[int64](20), Active: true}
	foreign := &models.Company{RecruiterID: other.ID, Name: "B", Active: true}
	for _, c := range []*models.Company{a, b, foreign} {
		require.NoError(t, db.CreateCompany(ctx, c))
	}

	a.Name = "B"
	require.NoError(t, db.UpdateCompany(ctx, a))

	got, err := db.GetCompany(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, DisplacedCompanyName("B", b.ID), got.Name)
	got, err = db.GetCompany(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)
	got, err = db.GetCompany(ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name, "other recruiters are not touched")

	b.Name = "A"
	require.NoError(t, db.UpdateCompany(ctx, b))
	got, err = db.GetCompany(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
}
