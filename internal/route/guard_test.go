package route

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filedrop/filedrop-go/internal/session"
)

func authed() *session.Session {
	return &session.Session{Token: "tok", Identifier: "user@x.com", Role: session.RoleStandard}
}

func TestAnonymousProtectedRouteRedirectsToLogin(t *testing.T) {
	for _, r := range []Route{RouteDashboard, RouteUpload} {
		d := Decide(r, nil)

		assert.Equal(t, RedirectLogin, d.Action)
		assert.Equal(t, RouteLogin, d.Target)
		// The requested route rides along so post-login can restore it.
		assert.Equal(t, r, d.ReturnTo)
	}
}

func TestAuthenticatedAnonymousOnlyRouteRedirectsToLanding(t *testing.T) {
	for _, r := range []Route{RouteLogin, RouteSignup} {
		d := Decide(r, authed())

		assert.Equal(t, RedirectLanding, d.Action)
		assert.Equal(t, DefaultLanding, d.Target)
	}
}

func TestRenderCases(t *testing.T) {
	tests := []struct {
		name      string
		requested Route
		sess      *session.Session
	}{
		{"anonymous public", RouteHome, nil},
		{"anonymous login", RouteLogin, nil},
		{"anonymous signup", RouteSignup, nil},
		{"authenticated protected", RouteDashboard, authed()},
		{"authenticated public", RouteHome, authed()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.requested, tt.sess)

			assert.Equal(t, Render, d.Action)
			assert.Equal(t, tt.requested, d.Target)
			assert.Empty(t, d.ReturnTo)
		})
	}
}

func TestUnknownRouteRendersForAnyone(t *testing.T) {
	d := Decide(Route("nonexistent"), nil)
	assert.Equal(t, Render, d.Action)

	d = Decide(Route("nonexistent"), authed())
	assert.Equal(t, Render, d.Action)
}

func TestGuardIsPureAcrossSessionChange(t *testing.T) {
	// Same inputs, same verdict — the guard holds no state between calls.
	first := Decide(RouteDashboard, nil)
	second := Decide(RouteDashboard, nil)
	assert.Equal(t, first, second)

	// A restored-but-unvalidated session still counts as authenticated.
	unvalidated := &session.Session{Token: "tok", Role: session.RoleUnknown}
	d := Decide(RouteDashboard, unvalidated)
	assert.Equal(t, Render, d.Action)
}

func TestProtected(t *testing.T) {
	assert.True(t, Protected(RouteDashboard))
	assert.True(t, Protected(RouteUpload))
	assert.False(t, Protected(RouteLogin))
	assert.False(t, Protected(RouteHome))
}
