// Package ginguard exposes the route guards as Gin middleware for
// server-rendered front ends.
//
// Each request resolves its own session (usually from a cookie); a denied
// request is answered with a 302 to the guard's route.
package ginguard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/guard"
)

// KeyIdentity is the gin.Context key of the allowed request's identity.
const KeyIdentity = "portal_identity"

// Resolver returns the session of a request, or nil for an anonymous visitor.
type Resolver func(c *gin.Context) guard.Session

// Static resolves every request to sess, for single-user front ends.
func Static(sess guard.Session) Resolver {
	return func(*gin.Context) guard.Session { return sess }
}

// Option configures the middleware.
type Option func(*config)

type config struct {
	routes        guard.Routes
	excludedPaths map[string]bool
}

// WithRoutes sets the redirect targets. Empty fields take guard.DefaultRoutes.
func WithRoutes(r guard.Routes) Option {
	return func(cfg *config) { cfg.routes = r }
}

// WithExcludedPaths sets paths that skip the guard (e.g. health checks).
func WithExcludedPaths(paths ...string) Option {
	return func(cfg *config) {
		for _, p := range paths {
			cfg.excludedPaths[p] = true
		}
	}
}

// Guard builds Gin middleware around guard decisions.
type Guard struct {
	g        *guard.Guard
	resolve  Resolver
	excluded map[string]bool
}

// New returns middleware factories resolving sessions with resolve.
func New(resolve Resolver, opts ...Option) *Guard {
	cfg := &config{routes: guard.DefaultRoutes, excludedPaths: make(map[string]bool)}
	for _, o := range opts {
		o(cfg)
	}
	return &Guard{g: guard.New(cfg.routes), resolve: resolve, excluded: cfg.excludedPaths}
}

// Protected allows requests whose session is valid and whose role is in
// allowed (any role when empty). The identity is stored under KeyIdentity
// and in the request context (portal.IdentityFromContext).
func (g *Guard) Protected(allowed ...portal.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.excluded[c.Request.URL.Path] {
			c.Next()
			return
		}
		g.apply(c, g.g.Protected(g.resolve(c), allowed...))
	}
}

// Public allows only requests without a valid session.
//
// Unlike guard.PublicOnce this is evaluated on every request: each request
// is a fresh mount.
func (g *Guard) Public() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.excluded[c.Request.URL.Path] {
			c.Next()
			return
		}
		g.apply(c, g.g.Public(g.resolve(c)))
	}
}

func (g *Guard) apply(c *gin.Context, d guard.Decision) {
	if !d.Allowed() {
		c.Redirect(http.StatusFound, d.Redirect)
		c.Abort()
		return
	}
	if d.Identity != nil {
		c.Set(KeyIdentity, d.Identity)
		c.Request = c.Request.WithContext(portal.WithIdentity(c.Request.Context(), d.Identity))
	}
	c.Next()
}

// GetIdentity returns the identity stored by Protected, or nil.
func GetIdentity(c *gin.Context) *portal.Identity {
	v, _ := c.Get(KeyIdentity)
	id, _ := v.(*portal.Identity)
	return id
}
