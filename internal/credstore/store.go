package credstore

import (
	"context"
	"fmt"

	"github.com/example/schoolsoft-sync/internal/persistence"
)

// Credential is a stored login with the app key already unsealed. It carries
// the server user id and organization so a restored session can fetch lessons
// without replaying the login exchange.
type Credential struct {
	ID       int64
	Username string
	AppKey   string
	UserID   int
	UserType int
	URL      string
	OrgID    int
	OrgName  string
	Active   bool
}

// Store saves and retrieves credentials, sealing app keys on the way into the
// login repository and unsealing them on the way out.
type Store struct {
	logins persistence.LoginRepository
	sealer *Sealer
}

// NewStore wires a credential store over the given repository and sealer.
func NewStore(logins persistence.LoginRepository, sealer *Sealer) *Store {
	return &Store{logins: logins, sealer: sealer}
}

// Save seals the app key and upserts the credential, marking it active.
func (s *Store) Save(ctx context.Context, cred Credential) (Credential, error) {
	sealed, err := s.sealer.Seal([]byte(cred.AppKey))
	if err != nil {
		return Credential{}, err
	}
	saved, err := s.logins.SaveLogin(ctx, persistence.Login{
		Username: cred.Username,
		AppKey:   sealed,
		UserID:   cred.UserID,
		UserType: cred.UserType,
		URL:      cred.URL,
		OrgID:    cred.OrgID,
		OrgName:  cred.OrgName,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("credstore: saving login: %w", err)
	}
	cred.ID = saved.ID
	cred.Active = saved.Active
	return cred, nil
}

// Active returns the credential marked active, with its app key unsealed.
func (s *Store) Active(ctx context.Context) (Credential, error) {
	login, err := s.logins.ActiveLogin(ctx)
	if err != nil {
		return Credential{}, err
	}
	appKey, err := s.sealer.Open(login.AppKey)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		ID:       login.ID,
		Username: login.Username,
		AppKey:   string(appKey),
		UserID:   login.UserID,
		UserType: login.UserType,
		URL:      login.URL,
		OrgID:    login.OrgID,
		OrgName:  login.OrgName,
		Active:   login.Active,
	}, nil
}

// SetActive switches the active credential.
func (s *Store) SetActive(ctx context.Context, id int64) error {
	return s.logins.SetActiveLogin(ctx, id)
}

// Delete removes a stored credential.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.logins.DeleteLogin(ctx, id)
}
