package sync

import "errors"

var (
	// ErrCredentialsNotFound means the recruiter never stored Odoo credentials.
	ErrCredentialsNotFound = errors.New("no Odoo credentials found for recruiter")
	// ErrCompanyNotLinked means a local company has no remote counterpart.
	ErrCompanyNotLinked = errors.New("company is not linked to an Odoo company")
	// ErrJobNotLinked means a local job has no remote counterpart.
	ErrJobNotLinked = errors.New("job is not linked to an Odoo job")
	// ErrCandidateNotLinked means a local candidate has no remote applicant.
	ErrCandidateNotLinked = errors.New("candidate is not linked to an Odoo applicant")
	// ErrMalformedRemoteData marks remote values that were replaced by a
	// default. It is logged, never returned by a sync.
	ErrMalformedRemoteData = errors.New("malformed remote data")
	// ErrNoEncryptionKey is returned when credentials must be sealed or
	// opened but no cipher was configured.
	ErrNoEncryptionKey = errors.New("encryption key not configured")
)

// Entity names used in skip reasons.
const (
	EntityCompany    = "company"
	EntityJob        = "job"
	EntityCandidate  = "candidate"
	EntityAttachment = "attachment"
)
