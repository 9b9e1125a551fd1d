package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func mustToken(access string) *oauth2.Token {
	return &oauth2.Token{AccessToken: access}
}

// fakeAuth is a scripted Authenticator.
type fakeAuth struct {
	token     string
	loginErr  error
	signupErr error

	gotIdentifier string
	gotPrivileged bool
}

func (f *fakeAuth) Login(_ context.Context, identifier, _ string) (string, error) {
	f.gotIdentifier = identifier

	if f.loginErr != nil {
		return "", f.loginErr
	}

	return f.token, nil
}

func (f *fakeAuth) Signup(_ context.Context, identifier, _ string, privileged bool) error {
	f.gotIdentifier = identifier
	f.gotPrivileged = privileged

	return f.signupErr
}

func newTestManager(t *testing.T, auth Authenticator) (*Manager, *FileStore) {
	t.Helper()

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	return NewManager(store, auth, slog.New(slog.DiscardHandler)), store
}

func TestLoginEstablishesAndPersistsSession(t *testing.T) {
	auth := &fakeAuth{token: "abc123"}
	m, store := newTestManager(t, auth)

	s, err := m.Login(context.Background(), "user@x.com", "goodpass")
	require.NoError(t, err)

	assert.Equal(t, "abc123", s.Token)
	assert.Equal(t, RoleStandard, s.Role)
	assert.WithinDuration(t, time.Now(), s.EstablishedAt, time.Minute)

	current := m.Current()
	require.NotNil(t, current)
	assert.Equal(t, "abc123", current.Token)

	// Persisted token matches the in-memory session.
	rec, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc123", rec.Token.AccessToken)
	assert.Equal(t, "user@x.com", rec.Meta[MetaIdentifier])
}

func TestLoginFailureLeavesSessionUnchanged(t *testing.T) {
	auth := &fakeAuth{loginErr: errors.New("401 unauthorized")}
	m, store := newTestManager(t, auth)

	_, err := m.Login(context.Background(), "user@x.com", "wrongpass")
	require.Error(t, err)

	assert.Nil(t, m.Current())

	rec, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, rec)
}

func TestLogoutClearsSessionAndStore(t *testing.T) {
	auth := &fakeAuth{token: "abc123"}
	m, store := newTestManager(t, auth)

	_, err := m.Login(context.Background(), "user@x.com", "goodpass")
	require.NoError(t, err)

	m.Logout()

	assert.Nil(t, m.Current())

	rec, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, rec)
}

func TestLogoutWhenAnonymousIsNoop(t *testing.T) {
	m, _ := newTestManager(t, &fakeAuth{})

	m.Logout()
	assert.Nil(t, m.Current())
}

func TestRestoreTrustsStoredToken(t *testing.T) {
	auth := &fakeAuth{token: "abc123"}
	m1, store := newTestManager(t, auth)

	_, err := m1.Login(context.Background(), "user@x.com", "goodpass")
	require.NoError(t, err)

	// A fresh manager over the same store restores without any network.
	m2 := NewManager(store, nil, slog.New(slog.DiscardHandler))
	m2.Restore()

	s := m2.Current()
	require.NotNil(t, s)
	assert.Equal(t, "abc123", s.Token)
	assert.Equal(t, "user@x.com", s.Identifier)
	// The persisted role round-trips.
	assert.Equal(t, RoleStandard, s.Role)
}

func TestRestoreNoStoredSession(t *testing.T) {
	m, _ := newTestManager(t, &fakeAuth{})

	m.Restore()
	assert.Nil(t, m.Current())
}

func TestRestoreIsIdempotent(t *testing.T) {
	auth := &fakeAuth{token: "abc123"}
	m, _ := newTestManager(t, auth)

	_, err := m.Login(context.Background(), "user@x.com", "goodpass")
	require.NoError(t, err)

	m.Restore()
	m.Restore()

	s := m.Current()
	require.NotNil(t, s)
	assert.Equal(t, "abc123", s.Token)
}

func TestRestoreUnknownRole(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	// A record persisted without role metadata restores with the role
	// unknown until the first authorized call validates the token.
	require.NoError(t, store.Save(&Record{
		Token: mustToken("tok-x"),
		Meta:  map[string]string{MetaIdentifier: "user@x.com"},
	}))

	m := NewManager(store, nil, slog.New(slog.DiscardHandler))
	m.Restore()

	s := m.Current()
	require.NotNil(t, s)
	assert.Equal(t, RoleUnknown, s.Role)
}

func TestSignupDoesNotEstablishSession(t *testing.T) {
	auth := &fakeAuth{}
	m, _ := newTestManager(t, auth)

	require.NoError(t, m.Signup(context.Background(), "new@x.com", "pw", RolePrivileged))

	assert.True(t, auth.gotPrivileged)
	assert.Nil(t, m.Current())
}

func TestTokenSource(t *testing.T) {
	auth := &fakeAuth{token: "abc123"}
	m, _ := newTestManager(t, auth)

	_, err := m.Token()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = m.Login(context.Background(), "user@x.com", "goodpass")
	require.NoError(t, err)

	tok, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)
}

func TestCurrentReturnsCopy(t *testing.T) {
	auth := &fakeAuth{token: "abc123"}
	m, _ := newTestManager(t, auth)

	_, err := m.Login(context.Background(), "user@x.com", "goodpass")
	require.NoError(t, err)

	s := m.Current()
	s.Token = "tampered"

	assert.Equal(t, "abc123", m.Current().Token)
}
