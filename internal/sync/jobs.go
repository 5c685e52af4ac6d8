package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
	"github.com/chmdznr/odoo-recruit-sync/internal/reconcile"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// SyncJobs reconciles the jobs of a linked company. Jobs Odoo no longer
// reports are closed. With Options.SyncCandidates the candidates of every
// synced job are reconciled too.
func (s *Syncer) SyncJobs(ctx context.Context, companyID int64) ([]models.Job, *models.SyncReport, error) {
	company, err := s.db.GetCompany(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.open(ctx, company.RecruiterID, "jobs")
	if err != nil {
		return nil, nil, err
	}
	defer s.close(sess)

	jobs, err := s.syncJobs(ctx, sess, *company)
	return jobs, sess.report, err
}

func (s *Syncer) syncJobs(ctx context.Context, sess *session, company models.Company) ([]models.Job, error) {
	ext, ok := models.ExternalIDOf(company.ExternalID)
	if !ok {
		return nil, fmt.Errorf("company %d: %w", company.ID, ErrCompanyNotLinked)
	}
	remote, err := sess.remote.Jobs(ctx, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs of company %d: %w", company.ID, err)
	}
	local, err := s.db.ListJobs(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	res, err := reconcile.Run(ctx, s.jobStrategy(company.ID), remote, local)
	tally(sess.report, &sess.report.Jobs, EntityJob, res)
	for _, j := range res.Deactivated {
		s.logger.Info("job closed", "job", j.ID, "title", j.Title)
	}
	if err != nil {
		return res.Synced, err
	}

	if !s.opts.SyncCandidates {
		return res.Synced, nil
	}
	bar := newStepProgress(s.progress, company.Name, len(res.Synced))
	defer bar.finish()
	for _, job := range res.Synced {
		if _, err := s.syncCandidates(ctx, sess, job); err != nil {
			if ctx.Err() != nil {
				return res.Synced, ctx.Err()
			}
			jobExt, _ := models.ExternalIDOf(job.ExternalID)
			sess.report.Skip(EntityJob, jobExt, fmt.Errorf("sync candidates: %w", err))
			s.logger.Warn("candidate sync failed", "job", job.ID, "error", err)
		}
		bar.increment()
	}
	return res.Synced, nil
}

// jobFields maps a remote job onto j, keeping local-only fields.
func (s *Syncer) jobFields(r odoo.Job, j models.Job) models.Job {
	j.ExternalID = models.Ptr(r.ID)
	j.Title = r.Name.String()
	j.Description = r.Description.String()
	j.State = MapJobState(r.State.String())
	j.Active = r.Active == nil || *r.Active
	posted, err := parseRemoteDate(r.CreateDate.String())
	s.logMalformed(EntityJob, r.ID, "create_date", err)
	if posted != nil || err == nil {
		j.PostedAt = posted
	}
	expires, err := parseRemoteDate(r.DateTo.String())
	s.logMalformed(EntityJob, r.ID, "date_to", err)
	if expires != nil || err == nil {
		j.ExpiresAt = expires
	}
	return j
}

func (s *Syncer) jobStrategy(companyID int64) reconcile.Strategy[odoo.Job, models.Job] {
	return reconcile.Strategy[odoo.Job, models.Job]{
		RemoteKey: func(r odoo.Job) int64 { return r.ID },
		LocalKey: func(l models.Job) (int64, bool) {
			return models.ExternalIDOf(l.ExternalID)
		},
		Fallback: func(r odoo.Job, l models.Job) bool {
			return l.ExternalID == nil && l.Title == r.Name.String()
		},
		Create: func(ctx context.Context, r odoo.Job) (models.Job, error) {
			j := s.jobFields(r, models.Job{CompanyID: companyID})
			err := s.db.CreateJob(ctx, &j)
			return j, err
		},
		Update: func(ctx context.Context, r odoo.Job, l models.Job) (models.Job, bool, error) {
			j := s.jobFields(r, l)
			if sameJob(j, l) {
				return l, false, nil
			}
			return j, true, s.db.UpdateJob(ctx, &j)
		},
		Active: func(l models.Job) bool {
			return l.Active || l.State != models.JobClosed
		},
		Deactivate: func(ctx context.Context, l models.Job) (models.Job, error) {
			l.State = models.JobClosed
			l.Active = false
			return l, s.db.CloseJob(ctx, l.ID)
		},
	}
}

func sameJob(a, b models.Job) bool {
	aExt, _ := models.ExternalIDOf(a.ExternalID)
	bExt, _ := models.ExternalIDOf(b.ExternalID)
	return aExt == bExt &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.State == b.State &&
		a.Active == b.Active &&
		sameTime(a.PostedAt, b.PostedAt) &&
		sameTime(a.ExpiresAt, b.ExpiresAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
