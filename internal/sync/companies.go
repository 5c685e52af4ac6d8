package sync

import (
	"context"
	"fmt"

	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
	"github.com/chmdznr/odoo-recruit-sync/internal/reconcile"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// SyncCompanies reconciles the recruiter's companies with the companies of
// the Odoo user. Companies Odoo no longer reports are deactivated. With
// Options.SyncJobs the jobs of every synced company are reconciled too; a
// failing company does not stop the others.
func (s *Syncer) SyncCompanies(ctx context.Context, recruiterID int64) ([]models.Company, *models.SyncReport, error) {
	sess, err := s.open(ctx, recruiterID, "companies")
	if err != nil {
		return nil, nil, err
	}
	defer s.close(sess)

	companies, err := s.syncCompanies(ctx, sess)
	return companies, sess.report, err
}

func (s *Syncer) syncCompanies(ctx context.Context, sess *session) ([]models.Company, error) {
	remote, err := sess.remote.Companies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch companies: %w", err)
	}
	local, err := s.db.ListCompanies(ctx, sess.recruiterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	res, err := reconcile.Run(ctx, s.companyStrategy(sess.recruiterID), remote, local)
	tally(sess.report, &sess.report.Companies, EntityCompany, res)
	for _, c := range res.Deactivated {
		s.logger.Info("company deactivated", "company", c.ID, "name", c.Name)
	}
	if err != nil {
		return res.Synced, err
	}
	s.logger.Debug("companies reconciled",
		"recruiter", sess.recruiterID,
		"remote", len(remote),
		"created", res.Created,
		"updated", res.Updated,
		"deactivated", len(res.Deactivated),
	)

	if !s.opts.SyncJobs {
		return res.Synced, nil
	}
	bar := newStepProgress(s.progress, "companies", len(res.Synced))
	defer bar.finish()
	for _, company := range res.Synced {
		if _, err := s.syncJobs(ctx, sess, company); err != nil {
			if ctx.Err() != nil {
				return res.Synced, ctx.Err()
			}
			ext, _ := models.ExternalIDOf(company.ExternalID)
			sess.report.Skip(EntityCompany, ext, fmt.Errorf("sync jobs: %w", err))
			s.logger.Warn("job sync failed", "company", company.ID, "error", err)
		}
		bar.increment()
	}
	return res.Synced, nil
}

func (s *Syncer) companyStrategy(recruiterID int64) reconcile.Strategy[odoo.Company, models.Company] {
	return reconcile.Strategy[odoo.Company, models.Company]{
		RemoteKey: func(r odoo.Company) int64 { return r.ID },
		LocalKey: func(l models.Company) (int64, bool) {
			return models.ExternalIDOf(l.ExternalID)
		},
		Fallback: func(r odoo.Company, l models.Company) bool {
			return l.Name == r.Name.String()
		},
		Create: func(ctx context.Context, r odoo.Company) (models.Company, error) {
			c := models.Company{
				ExternalID:  models.Ptr(r.ID),
				RecruiterID: recruiterID,
				Name:        r.Name.String(),
				Active:      true,
			}
			err := s.db.CreateCompany(ctx, &c)
			return c, err
		},
		Update: func(ctx context.Context, r odoo.Company, l models.Company) (models.Company, bool, error) {
			ext, _ := models.ExternalIDOf(l.ExternalID)
			if ext == r.ID && l.Name == r.Name.String() && l.Active {
				return l, false, nil
			}
			l.ExternalID = models.Ptr(r.ID)
			l.Name = r.Name.String()
			l.Active = true
			return l, true, s.db.UpdateCompany(ctx, &l)
		},
		Active: func(l models.Company) bool { return l.Active },
		Deactivate: func(ctx context.Context, l models.Company) (models.Company, error) {
			l.Active = false
			return l, s.db.SetCompanyActive(ctx, l.ID, false)
		},
	}
}
