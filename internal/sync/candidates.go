package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
	"github.com/chmdznr/odoo-recruit-sync/internal/reconcile"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// UnassignedJobTitle names the placeholder job for applicants without a job.
const UnassignedJobTitle = "Unassigned"

// SyncCandidates reconciles the candidates of a linked job and, unless
// Options.SkipAttachments is set, their attachments.
func (s *Syncer) SyncCandidates(ctx context.Context, jobID int64) ([]models.Candidate, *models.SyncReport, error) {
	job, err := s.db.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	company, err := s.db.GetCompany(ctx, job.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.open(ctx, company.RecruiterID, "candidates")
	if err != nil {
		return nil, nil, err
	}
	defer s.close(sess)

	candidates, err := s.syncCandidates(ctx, sess, *job)
	return candidates, sess.report, err
}

// SyncCompanyCandidates fetches every applicant of a linked company and files
// each one under a local job: by remote job id, then exact title, then
// case-insensitive title containment, else a placeholder job created on the
// fly.
func (s *Syncer) SyncCompanyCandidates(ctx context.Context, companyID int64) ([]models.Candidate, *models.SyncReport, error) {
	company, err := s.db.GetCompany(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.open(ctx, company.RecruiterID, "company-candidates")
	if err != nil {
		return nil, nil, err
	}
	defer s.close(sess)

	candidates, err := s.syncCompanyCandidates(ctx, sess, *company)
	return candidates, sess.report, err
}

func (s *Syncer) syncCandidates(ctx context.Context, sess *session, job models.Job) ([]models.Candidate, error) {
	ext, ok := models.ExternalIDOf(job.ExternalID)
	if !ok {
		return nil, fmt.Errorf("job %d: %w", job.ID, ErrJobNotLinked)
	}
	remote, err := sess.remote.Applicants(ctx, odoo.ApplicantFilter{JobID: ext})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applicants of job %d: %w", job.ID, err)
	}
	return s.reconcileCandidates(ctx, sess, job, remote)
}

func (s *Syncer) syncCompanyCandidates(ctx context.Context, sess *session, company models.Company) ([]models.Candidate, error) {
	ext, ok := models.ExternalIDOf(company.ExternalID)
	if !ok {
		return nil, fmt.Errorf("company %d: %w", company.ID, ErrCompanyNotLinked)
	}
	remote, err := sess.remote.Applicants(ctx, odoo.ApplicantFilter{CompanyID: ext})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applicants of company %d: %w", company.ID, err)
	}
	jobs, err := s.db.ListJobs(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	resolver := &jobResolver{syncer: s, company: company, jobs: jobs}
	var (
		order  []int64
		byJob  = make(map[int64][]odoo.Applicant)
		jobFor = make(map[int64]models.Job)
	)
	for _, a := range remote {
		job, err := resolver.resolve(ctx, sess, a.JobID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sess.report.Candidates.Failed++
			sess.report.Skip(EntityCandidate, a.ID, fmt.Errorf("resolve job: %w", err))
			continue
		}
		if _, seen := byJob[job.ID]; !seen {
			order = append(order, job.ID)
			jobFor[job.ID] = job
		}
		byJob[job.ID] = append(byJob[job.ID], a)
	}

	var synced []models.Candidate
	for _, jobID := range order {
		candidates, err := s.reconcileCandidates(ctx, sess, jobFor[jobID], byJob[jobID])
		synced = append(synced, candidates...)
		if err != nil {
			return synced, err
		}
	}
	return synced, nil
}

func (s *Syncer) reconcileCandidates(ctx context.Context, sess *session, job models.Job, remote []odoo.Applicant) ([]models.Candidate, error) {
	local, err := s.db.ListCandidates(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	res, err := reconcile.Run(ctx, s.candidateStrategy(job.ID), remote, local)
	tally(sess.report, &sess.report.Candidates, EntityCandidate, res)
	if err != nil {
		return res.Synced, err
	}

	if s.opts.SkipAttachments {
		return res.Synced, nil
	}
	for _, c := range res.Synced {
		if _, err := s.syncAttachments(ctx, sess, c); err != nil {
			if ctx.Err() != nil {
				return res.Synced, ctx.Err()
			}
			ext, _ := models.ExternalIDOf(c.ExternalID)
			sess.report.Skip(EntityCandidate, ext, fmt.Errorf("sync attachments: %w", err))
			s.logger.Warn("attachment sync failed", "candidate", c.ID, "error", err)
		}
	}
	return res.Synced, nil
}

// candidateFields maps a remote applicant onto c.
func (s *Syncer) candidateFields(r odoo.Applicant, c models.Candidate) models.Candidate {
	c.ExternalID = models.Ptr(r.ID)
	c.Name = r.PartnerName.String()
	if c.Name == "" {
		c.Name = r.Name.String()
	}
	c.Email = strings.TrimSpace(r.EmailFrom.String())
	c.Phone = strings.TrimSpace(r.PartnerPhone.String())
	c.State = MapCandidateStage(r.StageID.Name)

	changed, err := parseRemoteDate(r.DateLastStageUpdate.String())
	s.logMalformed(EntityCandidate, r.ID, "date_last_stage_update", err)
	c.StageChangedAt = changed
	applied, err := parseRemoteDate(r.DateOpen.String())
	s.logMalformed(EntityCandidate, r.ID, "date_open", err)
	c.AppliedAt = applied
	return c
}

func (s *Syncer) candidateStrategy(jobID int64) reconcile.Strategy[odoo.Applicant, models.Candidate] {
	return reconcile.Strategy[odoo.Applicant, models.Candidate]{
		RemoteKey: func(r odoo.Applicant) int64 { return r.ID },
		LocalKey: func(l models.Candidate) (int64, bool) {
			return models.ExternalIDOf(l.ExternalID)
		},
		Fallback: func(r odoo.Applicant, l models.Candidate) bool {
			email := strings.TrimSpace(r.EmailFrom.String())
			return l.ExternalID == nil && email != "" && strings.EqualFold(l.Email, email)
		},
		Create: func(ctx context.Context, r odoo.Applicant) (models.Candidate, error) {
			c := s.candidateFields(r, models.Candidate{JobID: jobID})
			err := s.db.CreateCandidate(ctx, &c)
			return c, err
		},
		Update: func(ctx context.Context, r odoo.Applicant, l models.Candidate) (models.Candidate, bool, error) {
			c := s.candidateFields(r, l)
			if sameCandidate(c, l) {
				return l, false, nil
			}
			return c, true, s.db.UpdateCandidate(ctx, &c)
		},
	}
}

func sameCandidate(a, b models.Candidate) bool {
	aExt, _ := models.ExternalIDOf(a.ExternalID)
	bExt, _ := models.ExternalIDOf(b.ExternalID)
	return aExt == bExt &&
		a.Name == b.Name &&
		a.Email == b.Email &&
		a.Phone == b.Phone &&
		a.State == b.State &&
		sameTime(a.StageChangedAt, b.StageChangedAt) &&
		sameTime(a.AppliedAt, b.AppliedAt)
}

// jobResolver files applicants of a company-wide fetch under local jobs.
type jobResolver struct {
	syncer  *Syncer
	company models.Company
	jobs    []models.Job
}

func (r *jobResolver) resolve(ctx context.Context, sess *session, ref odoo.Many2One) (models.Job, error) {
	if ref.Valid() {
		for _, j := range r.jobs {
			if ext, ok := models.ExternalIDOf(j.ExternalID); ok && ext == ref.ID {
				return j, nil
			}
		}
	}

	label := strings.TrimSpace(ref.Name)
	if !ref.Valid() || label == "" {
		label = UnassignedJobTitle
	}
	for _, j := range r.jobs {
		if j.Title == label {
			return j, nil
		}
	}
	if label != UnassignedJobTitle {
		lower := strings.ToLower(label)
		for _, j := range r.jobs {
			title := strings.ToLower(strings.TrimSpace(j.Title))
			if title != "" && (strings.Contains(title, lower) || strings.Contains(lower, title)) {
				return j, nil
			}
		}
	}

	job := models.Job{
		CompanyID: r.company.ID,
		Title:     label,
		State:     models.JobOpen,
		Active:    true,
	}
	if err := r.syncer.db.CreateJob(ctx, &job); err != nil {
		return models.Job{}, fmt.Errorf("failed to create placeholder job %q: %w", label, err)
	}
	r.jobs = append(r.jobs, job)
	sess.report.Jobs.Created++
	r.syncer.logger.Info("placeholder job created", "company", r.company.ID, "job", job.ID, "title", label)
	return job, nil
}
