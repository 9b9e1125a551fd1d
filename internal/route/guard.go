// Package route holds the pure navigation guard: the one decision function
// that maps (session state, requested route) to render-or-redirect. It
// keeps no state of its own, so routing can never diverge from session
// truth.
package route

import "github.com/filedrop/filedrop-go/internal/session"

// Route names a navigable view.
type Route string

// Known routes.
const (
	RouteHome      Route = "home"
	RouteLogin     Route = "login"
	RouteSignup    Route = "signup"
	RouteDashboard Route = "dashboard"
	RouteUpload    Route = "upload"
)

// DefaultLanding is where authenticated users land when they hit an
// anonymous-only route.
const DefaultLanding = RouteDashboard

// Action is the guard's verdict.
type Action int

const (
	// Render shows the requested route unchanged.
	Render Action = iota
	// RedirectLogin sends the visitor to the login route, carrying the
	// originally requested route as the post-login return target.
	RedirectLogin
	// RedirectLanding sends an authenticated visitor away from an
	// anonymous-only route to the default landing route.
	RedirectLanding
)

// Decision is the result of a guard evaluation.
type Decision struct {
	Action Action
	// Target is the route to show: the requested route for Render, the
	// login route for RedirectLogin, the landing route for RedirectLanding.
	Target Route
	// ReturnTo is set on RedirectLogin so a post-login redirect can restore
	// the originally requested route.
	ReturnTo Route
}

// protected routes require a session; anonymous-only routes bounce
// authenticated visitors. Everything else renders for anyone.
var (
	protectedRoutes = map[Route]bool{
		RouteDashboard: true,
		RouteUpload:    true,
	}

	anonymousOnlyRoutes = map[Route]bool{
		RouteLogin:  true,
		RouteSignup: true,
	}
)

// Protected reports whether a route requires an authenticated session.
func Protected(r Route) bool {
	return protectedRoutes[r]
}

// Decide is recomputed on every navigation and on every session change;
// it reads nothing but its arguments.
func Decide(requested Route, s *session.Session) Decision {
	authenticated := s != nil

	switch {
	case !authenticated && protectedRoutes[requested]:
		return Decision{Action: RedirectLogin, Target: RouteLogin, ReturnTo: requested}
	case authenticated && anonymousOnlyRoutes[requested]:
		return Decision{Action: RedirectLanding, Target: DefaultLanding}
	default:
		return Decision{Action: Render, Target: requested}
	}
}
