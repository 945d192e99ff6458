// Package session owns the authentication state machine: unauthenticated,
// authenticated (app key held), token valid (usable session token held).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/schoolsoft-sync/internal/schoolsoft"
	"github.com/example/schoolsoft-sync/internal/timetable"
)

var (
	// ErrInvalidCredentials is returned when the service rejects a login.
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	// ErrNotAuthenticated is returned when a token is requested without an
	// app key.
	ErrNotAuthenticated = errors.New("session: not authenticated")
)

// State enumerates the manager's authentication states.
type State int

const (
	// Unauthenticated means no app key is held.
	Unauthenticated State = iota
	// Authenticated means an app key is held but no usable token.
	Authenticated
	// TokenValid means a session token with remaining lifetime is held.
	TokenValid
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case TokenValid:
		return "token-valid"
	default:
		return "unauthenticated"
	}
}

// DefaultRefreshThreshold is how much remaining token lifetime triggers an
// early refresh.
const DefaultRefreshThreshold = time.Hour

// API is the subset of the wire client the manager drives.
type API interface {
	Login(ctx context.Context, schoolURL, identification, verification string, userType int) (schoolsoft.LoginResponse, error)
	RequestToken(ctx context.Context, schoolURL, appKey string) (schoolsoft.TokenResponse, error)
}

// Credentials are the inputs to a login attempt.
type Credentials struct {
	School         timetable.School
	Identification string
	Verification   string
	UserType       timetable.UserType
}

// Manager holds the session credentials in memory and decides when the cached
// token is still serviceable: a refresh is issued whenever the remaining
// lifetime is at or below the threshold, and a token whose expiry has passed
// is never handed out.
type Manager struct {
	api       API
	now       func() time.Time
	threshold time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	school timetable.School
	user   timetable.User
	appKey string
	token  timetable.Token
	epoch  uint64
}

// NewManager constructs a Manager. A zero threshold gets the default; nil now
// falls back to time.Now.
func NewManager(client API, threshold time.Duration, now func() time.Time, logger *slog.Logger) *Manager {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{api: client, now: now, threshold: threshold, logger: logger}
}

// Login exchanges credentials for an app key and moves the manager to the
// authenticated state. A failed login leaves the state untouched.
func (m *Manager) Login(ctx context.Context, creds Credentials) (timetable.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp, err := m.api.Login(ctx, creds.School.URL, creds.Identification, creds.Verification, int(creds.UserType))
	if err != nil {
		if errors.Is(err, schoolsoft.ErrInvalidAuth) {
			err = fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		m.logger.Error("login failed", "school", creds.School.URL, "user", creds.Identification, "error", err)
		return timetable.User{}, err
	}

	user := timetable.User{
		ID:       resp.UserID,
		Username: creds.Identification,
		School:   creds.School,
		Type:     creds.UserType,
	}
	if len(resp.Orgs) > 0 {
		user.Organization = timetable.Organization{
			OrgID:  resp.Orgs[0].OrgID,
			School: creds.School,
			Name:   resp.Orgs[0].Name,
		}
	}

	m.school = creds.School
	m.user = user
	m.appKey = resp.AppKey
	m.token = timetable.Token{}
	m.epoch++

	m.logger.Info("login succeeded", "school", creds.School.URL, "user", creds.Identification, "org", user.Organization.Name)
	return user, nil
}

// Restore seeds the manager from a previously saved login so a restart can
// resume without re-entering credentials.
func (m *Manager) Restore(user timetable.User, appKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.school = user.School
	m.user = user
	m.appKey = appKey
	m.token = timetable.Token{}
	m.epoch++
}

// EnsureToken returns a usable session token, requesting a fresh one when
// none is held or the held token's remaining lifetime is at or below the
// refresh threshold. The returned token's expiry is always in the future.
func (m *Manager) EnsureToken(ctx context.Context) (timetable.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appKey == "" {
		return timetable.Token{}, ErrNotAuthenticated
	}

	now := m.now()
	if m.token.Value != "" && m.token.Expiry.Sub(now) > m.threshold {
		return m.token, nil
	}

	resp, err := m.api.RequestToken(ctx, m.school.URL, m.appKey)
	if err != nil {
		m.logger.Error("token refresh failed", "school", m.school.URL, "error", err)
		return timetable.Token{}, err
	}

	expiry, err := resp.Expiry()
	if err != nil {
		return timetable.Token{}, err
	}
	if !expiry.After(m.now()) {
		return timetable.Token{}, fmt.Errorf("session: service issued an already expired token (expiry %v)", expiry)
	}

	m.token = timetable.Token{Value: resp.Token, Expiry: expiry}
	m.logger.Debug("token refreshed", "expiry", expiry)
	return m.token, nil
}

// Logout clears all session state from memory. It never touches the network.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.school = timetable.School{}
	m.user = timetable.User{}
	m.appKey = ""
	m.token = timetable.Token{}
	m.epoch++
	m.logger.Info("logged out")
}

// State reports the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.appKey == "":
		return Unauthenticated
	case m.token.Value == "" || !m.token.Expiry.After(m.now()):
		return Authenticated
	default:
		return TokenValid
	}
}

// ActiveUser returns the logged-in user, if any.
func (m *Manager) ActiveUser() (timetable.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user, m.appKey != ""
}

// AppKey returns the held app key for persistence by the credential store.
func (m *Manager) AppKey() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appKey, m.appKey != ""
}

// Epoch increments on every login, restore and logout. Long-running
// operations capture it before starting and discard their completion when it
// has moved, so work finished after a logout is never applied.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}
