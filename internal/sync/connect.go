package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/chmdznr/odoo-recruit-sync/internal/odoo"
	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// ConnectParams identify an Odoo account.
type ConnectParams struct {
	URL    string
	DB     string
	Login  string
	Secret string
}

func (p ConnectParams) validate() error {
	var missing []string
	for _, f := range [][2]string{{"url", p.URL}, {"db", p.DB}, {"login", p.Login}, {"secret", p.Secret}} {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing connection parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Verify logs in with p and returns the remote user. A rejected login is
// ErrAuthenticationFailed.
func (s *Syncer) Verify(ctx context.Context, p ConnectParams) (*odoo.UserInfo, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	remote := s.dial(odoo.Config{URL: p.URL, DB: p.DB, Login: p.Login, Secret: p.Secret})
	ok, err := remote.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s on %s: %w", p.Login, p.URL, odoo.ErrAuthenticationFailed)
	}
	return remote.UserInfo(ctx)
}

// Connect verifies p and stores it, secret encrypted, as the recruiter's most
// recent credential.
func (s *Syncer) Connect(ctx context.Context, recruiterID int64, p ConnectParams) (*models.Credential, error) {
	if s.cipher == nil {
		return nil, ErrNoEncryptionKey
	}
	if _, err := s.db.GetRecruiter(ctx, recruiterID); err != nil {
		return nil, err
	}
	user, err := s.Verify(ctx, p)
	if err != nil {
		return nil, err
	}
	sealed, err := s.cipher.Seal(p.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}
	cred := &models.Credential{
		RecruiterID:  recruiterID,
		URL:          strings.TrimRight(p.URL, "/"),
		DBName:       p.DB,
		Login:        p.Login,
		Secret:       sealed,
		RemoteUserID: user.ID,
	}
	if err := s.db.SaveCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}
	s.logger.Info("odoo account connected", "recruiter", recruiterID, "url", cred.URL, "uid", user.ID)
	return cred, nil
}
