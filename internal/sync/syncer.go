// Package sync reconciles a recruiter's local companies, jobs, candidates and
// attachments with their Odoo instance. Every pass upserts what Odoo reports
// and deactivates what it no longer reports; nothing is deleted.
package sync

import (
	"context"
	"errors"
	"fmt"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chmdznr/odoo-recruit-sync/internal/blob"
	"github.com/chmdznr/odoo-recruit-sync/internal/db"
	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
	"github.com/chmdznr/odoo-recruit-sync/internal/reconcile"
	"github.com/chmdznr/odoo-recruit-sync/internal/secret"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// Remote is the part of the Odoo client used by the sync.
type Remote interface {
	Authenticate(ctx context.Context) (bool, error)
	UserInfo(ctx context.Context) (*odoo.UserInfo, error)
	Companies(ctx context.Context) ([]odoo.Company, error)
	Jobs(ctx context.Context, companyID int64) ([]odoo.Job, error)
	Applicants(ctx context.Context, filter odoo.ApplicantFilter) ([]odoo.Applicant, error)
	Attachments(ctx context.Context, applicantID int64) ([]odoo.Attachment, error)
	AttachmentContent(ctx context.Context, id int64) (*odoo.Attachment, error)
}

// DialFunc creates a Remote for a stored credential.
type DialFunc func(cfg odoo.Config) Remote

// Options control how far a sync cascades.
type Options struct {
	// SyncJobs makes a company sync also sync the jobs of every company.
	SyncJobs bool
	// SyncCandidates makes a job sync also sync the candidates of every job.
	SyncCandidates bool
	// SkipAttachments stops candidate syncs from fetching attachments.
	SkipAttachments bool
}

// DefaultOptions cascades companies into jobs and candidates into
// attachments.
func DefaultOptions() Options {
	return Options{SyncJobs: true}
}

// Syncer runs reconciliation passes. Passes for the same recruiter are
// serialised; different recruiters may sync concurrently.
type Syncer struct {
	db       *db.DB
	cipher   *secret.Cipher
	blobs    blob.Store
	logger   *slog.Logger
	progress io.Writer
	dial     DialFunc
	http     *http.Client
	timeout  time.Duration
	now      func() time.Time
	opts     Options
	locks    recruiterLocks
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// WithDialer replaces how Odoo clients are created.
func WithDialer(dial DialFunc) Option {
	return func(s *Syncer) {
		s.dial = dial
	}
}

// WithHTTPTimeout sets the request timeout of the default dialer.
func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Syncer) {
		s.timeout = d
	}
}

// WithProgress draws progress bars for cascades on w.
func WithProgress(w io.Writer) Option {
	return func(s *Syncer) {
		s.progress = w
	}
}

// WithOptions sets the cascade options.
func WithOptions(opts Options) Option {
	return func(s *Syncer) {
		s.opts = opts
	}
}

// WithClock replaces time.Now, used for report timestamps and storage keys.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// NewSyncer creates a Syncer. cipher may be nil for read-only use, in which
// case every operation touching credentials fails with ErrNoEncryptionKey.
func NewSyncer(store *db.DB, cipher *secret.Cipher, blobs blob.Store, opts ...Option) *Syncer {
	s := &Syncer{
		db:      store,
		cipher:  cipher,
		blobs:   blobs,
		logger:  slog.Default(),
		timeout: odoo.DefaultTimeout,
		now:     time.Now,
		opts:    DefaultOptions(),
		locks:   recruiterLocks{held: make(map[int64]chan struct{})},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dial == nil {
		s.http = &http.Client{Transport: newTransport()}
		s.dial = func(cfg odoo.Config) Remote {
			return odoo.New(cfg,
				odoo.WithHTTPClient(s.http),
				odoo.WithTimeout(s.timeout),
				odoo.WithLogger(s.logger),
			)
		}
	}
	return s
}

// newTransport is shared by every Odoo client of a Syncer so that sessions
// reuse connections.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// session is one authenticated pass for one recruiter.
type session struct {
	recruiterID int64
	remote      Remote
	report      *models.SyncReport
	release     func()
}

// open takes the recruiter lock, loads the latest credential and logs in.
func (s *Syncer) open(ctx context.Context, recruiterID int64, scope string) (*session, error) {
	release, err := s.locks.acquire(ctx, recruiterID)
	if err != nil {
		return nil, err
	}

	remote, err := s.dialRecruiter(ctx, recruiterID)
	if err != nil {
		release()
		return nil, err
	}
	ok, err := remote.Authenticate(ctx)
	if err != nil {
		release()
		return nil, err
	}
	if !ok {
		release()
		return nil, fmt.Errorf("recruiter %d: %w", recruiterID, odoo.ErrAuthenticationFailed)
	}

	return &session{
		recruiterID: recruiterID,
		remote:      remote,
		report: &models.SyncReport{
			RecruiterID: recruiterID,
			Scope:       scope,
			StartedAt:   s.now().UTC(),
		},
		release: release,
	}, nil
}

func (s *Syncer) dialRecruiter(ctx context.Context, recruiterID int64) (Remote, error) {
	cred, err := s.db.LatestCredential(ctx, recruiterID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("recruiter %d: %w", recruiterID, ErrCredentialsNotFound)
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if s.cipher == nil {
		return nil, ErrNoEncryptionKey
	}
	apiKey, err := s.cipher.Open(cred.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential %d: %w", cred.ID, err)
	}
	return s.dial(odoo.Config{
		URL:    cred.URL,
		DB:     cred.DBName,
		Login:  cred.Login,
		Secret: apiKey,
	}), nil
}

func (s *Syncer) close(sess *session) *models.SyncReport {
	sess.report.FinishedAt = s.now().UTC()
	sess.release()
	r := sess.report
	s.logger.Info("sync finished",
		"recruiter", r.RecruiterID,
		"scope", r.Scope,
		"companies", r.Companies.Synced(),
		"jobs", r.Jobs.Synced(),
		"candidates", r.Candidates.Synced(),
		"attachments", r.Attachments.Created,
		"skipped", len(r.Skipped),
		"elapsed", r.FinishedAt.Sub(r.StartedAt),
	)
	return r
}

// tally adds a reconciliation result to counts and records its failures.
func tally[L any](report *models.SyncReport, counts *models.Counts, entity string, res *reconcile.Result[L]) {
	counts.Created += res.Created
	counts.Updated += res.Updated
	counts.Unchanged += res.Unchanged
	counts.Deactivated += len(res.Deactivated)
	counts.Failed += len(res.Failures)
	for _, f := range res.Failures {
		report.Skip(entity, f.Key, f.Err)
	}
}

// logMalformed records a remote value that was replaced by a default.
func (s *Syncer) logMalformed(entity string, externalID int64, field string, err error) {
	if err != nil {
		s.logger.Debug("ignoring remote value", "entity", entity, "external_id", externalID, "field", field, "error", err)
	}
}

// recruiterLocks hands out one lock per recruiter.
type recruiterLocks struct {
	mu   sync.Mutex
	held map[int64]chan struct{}
}

func (l *recruiterLocks) acquire(ctx context.Context, recruiterID int64) (func(), error) {
	l.mu.Lock()
	ch, ok := l.held[recruiterID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.held[recruiterID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for running sync of recruiter %d: %w", recruiterID, ctx.Err())
	}
}
