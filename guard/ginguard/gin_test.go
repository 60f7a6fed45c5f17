package ginguard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/guard"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedSession struct{ id *portal.Identity }

func (s fixedSession) CheckValid() bool           { return s.id != nil }
func (s fixedSession) Identity() *portal.Identity { return s.id }

// byHeader resolves the session from an X-Role header; no header is anonymous.
func byHeader(c *gin.Context) guard.Session {
	role := c.GetHeader("X-Role")
	if role == "" {
		return fixedSession{}
	}
	return fixedSession{id: &portal.Identity{Token: "t", UserID: "7", Role: portal.Role(role)}}
}

func newRouter(g *Guard) *gin.Engine {
	r := gin.New()
	echo := func(c *gin.Context) {
		fromCtx := portal.IdentityFromContext(c.Request.Context())
		id := GetIdentity(c)
		if id == nil || fromCtx != id {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, id.UserID)
	}
	r.GET("/admin", g.Protected(portal.RoleAdmin), echo)
	r.GET("/profile", g.Protected(), echo)
	r.GET("/login", g.Public(), echo)
	r.GET("/healthz", g.Protected(), echo)
	return r
}

func TestMiddleware(t *testing.T) {
	r := newRouter(New(byHeader, WithExcludedPaths("/healthz")))

	tests := []struct {
		name     string
		path     string
		role     string
		status   int
		location string
		body     string
	}{
		{"anonymous to protected", "/profile", "", http.StatusFound, "/", ""},
		{"user to profile", "/profile", "user", http.StatusOK, "", "7"},
		{"user to admin", "/admin", "user", http.StatusFound, "/unauthorized", ""},
		{"admin to admin", "/admin", "admin", http.StatusOK, "", "7"},
		{"anonymous to login", "/login", "", http.StatusOK, "", "anonymous"},
		{"user to login", "/login", "user", http.StatusFound, "/dashboard", ""},
		{"excluded path", "/healthz", "", http.StatusOK, "", "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.role != "" {
				req.Header.Set("X-Role", tt.role)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if got := w.Header().Get("Location"); got != tt.location {
				t.Errorf("Location = %q, want %q", got, tt.location)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestWithRoutes(t *testing.T) {
	r := newRouter(New(Static(fixedSession{}), WithRoutes(guard.Routes{Landing: "/signin"})))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/signin" {
		t.Errorf("got %d %q", w.Code, w.Header().Get("Location"))
	}
}
