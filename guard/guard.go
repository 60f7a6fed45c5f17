// Package guard decides whether a page may render for the current session.
//
// Decisions are pure: they read the session and never mutate it, except
// that CheckValid clears an expired token as a side effect.
package guard

import (
	"sync"

	portal "github.com/chimerakang/portal-go"
)

// Session is the part of the session state the guards read.
// *session.Manager satisfies it.
type Session interface {
	CheckValid() bool
	Identity() *portal.Identity
}

// Routes are the redirect targets.
type Routes struct {
	Landing      string // invalid session
	Unauthorized string // valid session, role not allowed
	Dashboard    string // public page visited while logged in
}

// DefaultRoutes are used when no Routes are given.
var DefaultRoutes = Routes{
	Landing:      "/",
	Unauthorized: "/unauthorized",
	Dashboard:    "/dashboard",
}

// Decision is the outcome of a guard.
type Decision struct {
	// Redirect is empty when the page may render.
	Redirect string

	// Identity is the session identity when one is valid.
	Identity *portal.Identity
}

// Allowed reports whether the page may render.
func (d Decision) Allowed() bool { return d.Redirect == "" }

// Guard evaluates decisions against fixed routes.
type Guard struct {
	routes Routes
}

// New returns a guard redirecting to routes. Empty fields take DefaultRoutes.
func New(routes Routes) *Guard {
	if routes.Landing == "" {
		routes.Landing = DefaultRoutes.Landing
	}
	if routes.Unauthorized == "" {
		routes.Unauthorized = DefaultRoutes.Unauthorized
	}
	if routes.Dashboard == "" {
		routes.Dashboard = DefaultRoutes.Dashboard
	}
	return &Guard{routes: routes}
}

// Routes returns the configured routes.
func (g *Guard) Routes() Routes { return g.routes }

// Protected allows a valid session whose role is in allowed. An empty
// allowed list accepts any role. An invalid session goes to the landing
// route; a wrong role goes to the unauthorized route.
func (g *Guard) Protected(sess Session, allowed ...portal.Role) Decision {
	id, ok := valid(sess)
	if !ok {
		return Decision{Redirect: g.routes.Landing}
	}
	if !id.HasRole(allowed...) {
		return Decision{Redirect: g.routes.Unauthorized, Identity: id}
	}
	return Decision{Identity: id}
}

// Public allows only visitors without a valid session; logged-in users go
// to the dashboard.
func (g *Guard) Public(sess Session) Decision {
	if id, ok := valid(sess); ok {
		return Decision{Redirect: g.routes.Dashboard, Identity: id}
	}
	return Decision{}
}

// PublicOnce returns a Public check that evaluates on its first call and
// then keeps answering the same, so a page does not bounce while the
// session is still being validated.
func (g *Guard) PublicOnce(sess Session) func() Decision {
	var (
		once sync.Once
		d    Decision
	)
	return func() Decision {
		once.Do(func() { d = g.Public(sess) })
		return d
	}
}

var defaultGuard = New(DefaultRoutes)

// Protected evaluates Guard.Protected with DefaultRoutes.
func Protected(sess Session, allowed ...portal.Role) Decision {
	return defaultGuard.Protected(sess, allowed...)
}

// Public evaluates Guard.Public with DefaultRoutes.
func Public(sess Session) Decision { return defaultGuard.Public(sess) }

// PublicOnce evaluates Guard.PublicOnce with DefaultRoutes.
func PublicOnce(sess Session) func() Decision { return defaultGuard.PublicOnce(sess) }

func valid(sess Session) (*portal.Identity, bool) {
	if sess == nil || !sess.CheckValid() {
		return nil, false
	}
	id := sess.Identity()
	return id, id != nil
}
