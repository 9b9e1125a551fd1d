package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Role is the account role carried by a session.
type Role string

const (
	// RoleStandard is a regular account.
	RoleStandard Role = "standard"
	// RolePrivileged is an ops account.
	RolePrivileged Role = "privileged"
	// RoleUnknown marks a session restored from storage, where the role is
	// not known until the first authorized call validates the token.
	RoleUnknown Role = "unknown"
)

// ErrNotLoggedIn is returned when an operation needs a session and none is
// current.
var ErrNotLoggedIn = errors.New("session: not logged in")

// Session is the authenticated identity currently active for the client.
// At most one session is current at a time. Values handed out by Current()
// are copies; only the Manager mutates session state.
type Session struct {
	Token         string
	Identifier    string
	Role          Role
	EstablishedAt time.Time
}

// Authenticator is the credential-exchange surface the Manager needs from
// the API client.
type Authenticator interface {
	Login(ctx context.Context, identifier, secret string) (string, error)
	Signup(ctx context.Context, identifier, secret string, privileged bool) error
}

// Manager owns the session lifecycle: restore on start, login, signup,
// logout. Every mutating operation writes through to the Store in the same
// critical section as the in-memory change, so the two are never
// observably inconsistent.
type Manager struct {
	store  Store
	auth   Authenticator
	logger *slog.Logger

	mu      sync.RWMutex
	current *Session
}

// NewManager creates a session manager. The store is the single persistence
// slot; the Manager is its only writer.
func NewManager(store Store, auth Authenticator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:  store,
		auth:   auth,
		logger: logger,
	}
}

// SetAuthenticator installs the credential-exchange client after
// construction. The manager and the API client reference each other (the
// manager is the client's token source), so one side has to be wired late.
// Must be called before Login or Signup.
func (m *Manager) SetAuthenticator(a Authenticator) {
	m.auth = a
}

// Restore loads a previously stored session, if any. The stored token is
// trusted optimistically — no network validation happens here; a stale or
// revoked token surfaces as unauthorized on the first authorized call.
// Restore is idempotent and never fails: an absent or unreadable record
// leaves the session anonymous.
func (m *Manager) Restore() {
	rec, err := m.store.Load()
	if err != nil {
		m.logger.Warn("stored session unreadable, starting anonymous",
			slog.String("error", err.Error()),
		)

		return
	}

	if rec == nil {
		m.logger.Debug("no stored session")

		return
	}

	s := &Session{
		Token:      rec.Token.AccessToken,
		Identifier: rec.Meta[MetaIdentifier],
		Role:       RoleUnknown,
	}

	if r := Role(rec.Meta[MetaRole]); r == RoleStandard || r == RolePrivileged {
		s.Role = r
	}

	if ts := rec.Meta[MetaEstablishedAt]; ts != "" {
		if t, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
			s.EstablishedAt = t
		}
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.logger.Info("session restored",
		slog.String("identifier", s.Identifier),
		slog.String("role", string(s.Role)),
	)
}

// Login exchanges credentials for a token, persists it, and makes the
// session current. On failure the session is left unchanged — there is no
// partial session state.
func (m *Manager) Login(ctx context.Context, identifier, secret string) (Session, error) {
	token, err := m.auth.Login(ctx, identifier, secret)
	if err != nil {
		return Session{}, err
	}

	s := &Session{
		Token:         token,
		Identifier:    identifier,
		Role:          RoleStandard,
		EstablishedAt: time.Now().UTC(),
	}

	rec := &Record{
		Token: &oauth2.Token{AccessToken: token},
		Meta: map[string]string{
			MetaIdentifier:    identifier,
			MetaRole:          string(s.Role),
			MetaEstablishedAt: s.EstablishedAt.Format(time.RFC3339),
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if saveErr := m.store.Save(rec); saveErr != nil {
		return Session{}, fmt.Errorf("persisting session: %w", saveErr)
	}

	m.current = s

	m.logger.Info("session established",
		slog.String("identifier", identifier),
	)

	return *s, nil
}

// Signup registers a new account. It does not establish a session —
// registration and login are separate steps.
func (m *Manager) Signup(ctx context.Context, identifier, secret string, role Role) error {
	return m.auth.Signup(ctx, identifier, secret, role == RolePrivileged)
}

// Logout clears the session from storage and memory. It never calls the
// network and always succeeds; a failed store removal is logged but does
// not keep the in-memory session alive — a dead credential must not stay
// current.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Remove(); err != nil {
		m.logger.Warn("removing stored session failed",
			slog.String("error", err.Error()),
		)
	}

	if m.current != nil {
		m.logger.Info("session cleared",
			slog.String("identifier", m.current.Identifier),
		)
	}

	m.current = nil
}

// Current returns a copy of the active session, or nil when anonymous.
// It never blocks on I/O.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}

	s := *m.current

	return &s
}

// Token implements the api.TokenSource interface: it returns the bearer
// credential of the current session, or ErrNotLoggedIn when anonymous.
func (m *Manager) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return "", ErrNotLoggedIn
	}

	return m.current.Token, nil
}
