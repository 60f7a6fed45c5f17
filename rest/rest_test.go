package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
	"github.com/chimerakang/portal-go/audit"
	"github.com/chimerakang/portal-go/fake"
	"github.com/chimerakang/portal-go/notify"
	"github.com/chimerakang/portal-go/session"
	"github.com/chimerakang/portal-go/store"
)

func quiet() Option { return WithLogger(slog.New(slog.DiscardHandler)) }

func TestNew_SessionSurvivesRestart(t *testing.T) {
	srv := fake.New(fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleAdmin))
	defer srv.Close()
	ctx := context.Background()
	cfg := portal.Config{APIURL: srv.URL, TokenFile: filepath.Join(t.TempDir(), "session.json")}

	first, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	resp, err := first.Session().Login(ctx, "ana@example.com", "pw")
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, quiet())
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, session.Authenticated, second.Session().State())
	assert.Equal(t, "Ana", second.Sessions().Identity().Name)

	_, u, err := second.Users().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
}

func TestNew_DiscardsExpiredPersistedToken(t *testing.T) {
	srv := fake.New(fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleUser))
	defer srv.Close()
	ctx := context.Background()

	tokens := store.NewMemory()
	require.NoError(t, tokens.Save(ctx, srv.IssueToken(1, -time.Minute)))

	c, err := New(ctx, portal.Config{APIURL: srv.URL}, quiet(), WithTokenStore(tokens))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, session.Anonymous, c.Session().State())
	tok, _ := tokens.Load(ctx)
	assert.Empty(t, tok)
}

func TestNew_CorruptTokenFileStartsAnonymous(t *testing.T) {
	srv := fake.New(fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleUser))
	defer srv.Close()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	c, err := New(ctx, portal.Config{APIURL: srv.URL, TokenFile: path}, quiet())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, session.Anonymous, c.Session().State())

	resp, err := c.Session().Login(ctx, "ana@example.com", "pw")
	require.NoError(t, err)
	require.True(t, resp.OK())
	assert.Equal(t, session.Authenticated, c.Session().State())
}

type stuckStore struct{ token string }

func (s stuckStore) Load(context.Context) (string, error) { return s.token, nil }
func (stuckStore) Save(context.Context, string) error       { return errors.New("read-only") }
func (stuckStore) Clear(context.Context) error              { return errors.New("read-only") }

func TestNew_FailureClosesOwnedAudit(t *testing.T) {
	var owned *audit.Logger
	orig := newAudit
	newAudit = func(l *slog.Logger) *audit.Logger {
		owned = orig(l)
		return owned
	}
	t.Cleanup(func() { newAudit = orig })

	_, err := New(context.Background(), portal.Config{APIURL: "http://127.0.0.1:1"}, quiet(),
		WithTokenStore(stuckStore{token: "not-a-jwt"}))
	require.Error(t, err)
	require.NotNil(t, owned)
	select {
	case <-owned.Done():
	default:
		t.Fatal("audit logger left running after New failed")
	}
}

func TestNew_KeepsCallerAuditOpen(t *testing.T) {
	mine := audit.New(1)
	defer mine.Close()

	_, err := New(context.Background(), portal.Config{APIURL: "http://127.0.0.1:1"}, quiet(),
		WithTokenStore(stuckStore{token: "not-a-jwt"}), WithAudit(mine))
	require.Error(t, err)
	select {
	case <-mine.Done():
		t.Fatal("caller-owned audit logger was closed")
	default:
	}
}

func TestNew_ValidateDropsRejectedSession(t *testing.T) {
	srv := fake.New(fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleUser))
	defer srv.Close()
	ctx := context.Background()

	tokens := store.NewMemory()
	require.NoError(t, tokens.Save(ctx, srv.IssueToken(1, time.Hour)))
	c, err := New(ctx, portal.Config{APIURL: srv.URL}, quiet(), WithTokenStore(tokens))
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, session.Authenticated, c.Session().State())

	srv.Fail(http.MethodGet, "/users/me", http.StatusUnauthorized, "Unauthorized")
	ok, err := c.Session().Validate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, session.Anonymous, c.Session().State())
}

func TestNew_MissingAPIURL(t *testing.T) {
	c, err := New(context.Background(), portal.Config{}, quiet())
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Session().Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, api.StatusMissingBaseURL, resp.StatusCode)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), portal.Config{PageSize: -1}, quiet())
	assert.Error(t, err)
}

func TestUserList_UsesConfigAndMetrics(t *testing.T) {
	srv := fake.New(
		fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleAdmin),
		fake.WithUser("Ben", "ben@example.com", "pw", portal.RoleUser),
		fake.WithUser("Cy", "cy@example.com", "pw", portal.RoleUser),
	)
	defer srv.Close()
	ctx := context.Background()
	reg := prometheus.NewRegistry()

	c, err := New(ctx, portal.Config{APIURL: srv.URL, PageSize: 2}, quiet(), WithRegisterer(reg))
	require.NoError(t, err)
	defer c.Close()

	var toasts notify.Recorder
	users, err := c.UserList(&toasts)
	require.NoError(t, err)
	defer users.Close()

	require.NoError(t, users.Reload(ctx))
	s := users.State()
	assert.Len(t, s.List.Items, 2)
	assert.Equal(t, 2, s.List.TotalPages)

	docs, err := c.DocumentList("1", &toasts)
	require.NoError(t, err)
	defer docs.Close()
	require.NoError(t, docs.Reload(ctx))
	assert.Empty(t, docs.State().List.Items)
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/documents"))

	loads, err := testutil.GatherAndCount(reg, "portal_list_loads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "one series per list")
	requests, err := testutil.GatherAndCount(reg, "portal_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, requests, "GET 200")
	assert.Empty(t, toasts.Entries())
}

func TestNewLogger_Level(t *testing.T) {
	assert.True(t, newLogger("DEBUG").Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, newLogger("WARN").Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, newLogger("bogus").Enabled(context.Background(), slog.LevelInfo))
}
