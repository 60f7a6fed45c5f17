// Package session provides the SessionService implementation.
//
// A Manager holds the current bearer token and the identity decoded from it.
// Only the token is persisted; the identity is always re-derived by decoding.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
	"github.com/chimerakang/portal-go/audit"
	"github.com/chimerakang/portal-go/metrics"
	"github.com/chimerakang/portal-go/token"
	"golang.org/x/sync/singleflight"
)

// State is the authentication state of a Manager.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

var (
	// ErrTokenDecode is returned by Login and Register when the server issued
	// a token that cannot be decoded.
	ErrTokenDecode = errors.New("portal/session: token cannot be decoded")

	// ErrNotAuthenticated is returned by profile operations without a session.
	ErrNotAuthenticated = errors.New("portal/session: not authenticated")
)

// Manager implements portal.SessionService.
type Manager struct {
	api     api.Doer
	tokens  portal.TokenStore
	decoder portal.TokenDecoder
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Logger
	now     func() time.Time

	mu       sync.RWMutex
	identity *portal.Identity
	subs     []func(State)

	group singleflight.Group
}

var _ portal.SessionService = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithDecoder sets the token decoder. Default: token.NewUnverified().
func WithDecoder(d portal.TokenDecoder) Option {
	return func(m *Manager) { m.decoder = d }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithAudit sets the audit logger for session transitions.
func WithAudit(a *audit.Logger) Option {
	return func(m *Manager) { m.audit = a }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates an anonymous Manager. Call Init to restore a persisted session.
func New(doer api.Doer, tokens portal.TokenStore, opts ...Option) *Manager {
	m := &Manager{
		api:     doer,
		tokens:  tokens,
		decoder: token.NewUnverified(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Init restores the persisted token. An absent, unreadable, undecodable or
// expired token leaves the manager anonymous; a discarded token is removed
// from the store.
func (m *Manager) Init(ctx context.Context) error {
	raw, err := m.tokens.Load(ctx)
	if err != nil {
		m.logger.Warn("portal/session: discarding unreadable token", "error", err)
		m.record(ctx, audit.ActionDecodeFailed, audit.ResultFailure, nil, err)
		if err := m.discard(ctx); err != nil {
			m.logger.Warn("portal/session: clear unreadable token", "error", err)
		}
		return nil
	}
	if raw == "" {
		return nil
	}

	claims, err := m.decoder.Decode(ctx, raw)
	if err != nil {
		m.logger.Warn("portal/session: discarding undecodable token", "error", err)
		m.record(ctx, audit.ActionDecodeFailed, audit.ResultFailure, nil, err)
		return m.discard(ctx)
	}
	id := portal.NewIdentity(raw, claims)
	if !id.ValidAt(m.now()) {
		m.logger.Info("portal/session: discarding expired token", "user_id", id.UserID, "expired_at", id.ExpiresAt)
		m.record(ctx, audit.ActionExpired, audit.ResultSuccess, id, nil)
		return m.discard(ctx)
	}

	m.set(id)
	return nil
}

func (m *Manager) discard(ctx context.Context) error {
	if err := m.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("portal/session: clear token: %w", err)
	}
	return nil
}

// authPayload is the data member of login and register responses.
// The session token is carried in "id", or in "token" on newer servers.
type authPayload struct {
	ID    any    `json:"id"`
	Token string `json:"token"`
}

func (p authPayload) token() string {
	if s, ok := p.ID.(string); ok && s != "" {
		return s
	}
	return p.Token
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) (*portal.Response, error) {
	resp := m.api.Do(ctx, api.Request{
		Path:   "/users/login",
		Method: http.MethodPost,
		Body:   credentials{Email: email, Password: password},
	})
	if !resp.OK() {
		m.record(ctx, audit.ActionLogin, audit.ResultFailure, &portal.Identity{Email: email}, statusErr(resp))
		return resp, nil
	}

	var p authPayload
	if err := resp.Decode(&p); err != nil || p.token() == "" {
		m.clearLocal(ctx)
		m.logger.Error("portal/session: login response carried no token", "status", resp.StatusCode)
		m.record(ctx, audit.ActionDecodeFailed, audit.ResultFailure, &portal.Identity{Email: email}, ErrTokenDecode)
		return resp, ErrTokenDecode
	}
	if err := m.adopt(ctx, p.token(), audit.ActionLogin); err != nil {
		return resp, err
	}
	return resp, nil
}

// Register creates an account. When the server answers with a token the
// manager is authenticated without a separate login.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*portal.Response, error) {
	resp := m.api.Do(ctx, api.Request{
		Path:   "/users/register",
		Method: http.MethodPost,
		Body:   credentials{Email: email, Password: password, Name: name},
	})
	if !resp.OK() {
		m.record(ctx, audit.ActionRegister, audit.ResultFailure, &portal.Identity{Email: email}, statusErr(resp))
		return resp, nil
	}

	var p authPayload
	if err := resp.Decode(&p); err != nil || p.token() == "" {
		m.record(ctx, audit.ActionRegister, audit.ResultSuccess, &portal.Identity{Email: email}, nil)
		return resp, nil
	}
	if err := m.adopt(ctx, p.token(), audit.ActionRegister); err != nil {
		return resp, err
	}
	return resp, nil
}

// adopt decodes and persists raw, then switches to Authenticated.
func (m *Manager) adopt(ctx context.Context, raw, action string) error {
	claims, err := m.decoder.Decode(ctx, raw)
	if err != nil {
		m.clearLocal(ctx)
		m.logger.Error("portal/session: cannot decode issued token", "error", err)
		m.record(ctx, audit.ActionDecodeFailed, audit.ResultFailure, nil, err)
		return fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}
	if err := m.tokens.Save(ctx, raw); err != nil {
		return fmt.Errorf("portal/session: save token: %w", err)
	}
	id := portal.NewIdentity(raw, claims)
	m.set(id)
	m.record(ctx, action, audit.ResultSuccess, id, nil)
	return nil
}

// CheckValid reports whether a token is held whose expiry is strictly after
// now. An expired session is cleared, so a second call returns false cheaply.
func (m *Manager) CheckValid() bool {
	m.mu.RLock()
	id := m.identity
	m.mu.RUnlock()

	if id == nil {
		return false
	}
	if id.ValidAt(m.now()) {
		return true
	}

	ctx := context.Background()
	if m.clearIf(ctx, id) {
		m.logger.Info("portal/session: session expired", "user_id", id.UserID)
		m.record(ctx, audit.ActionExpired, audit.ResultSuccess, id, nil)
	}
	return false
}

// Validate re-checks the session with the server. A 401 or 403 clears it.
// Concurrent callers share one request.
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	v, err, _ := m.group.Do("validate", func() (any, error) {
		if !m.CheckValid() {
			return false, nil
		}
		id := m.Identity()

		resp := m.api.Do(ctx, api.Request{Path: "/users/me", Auth: true})
		switch {
		case resp.OK():
			return true, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			if m.clearIf(ctx, id) {
				m.logger.Info("portal/session: session rejected by server", "status", resp.StatusCode)
				m.record(ctx, audit.ActionRevoked, audit.ResultSuccess, id, nil)
			}
			return false, nil
		default:
			return true, fmt.Errorf("portal/session: validate: %w", statusErr(resp))
		}
	})
	return v.(bool), err
}

// Logout invalidates the session on the server (best effort) and clears it
// locally. It always returns true.
func (m *Manager) Logout(ctx context.Context) bool {
	id := m.Identity()
	if id != nil {
		resp := m.api.Do(ctx, api.Request{Path: "/users/logout", Method: http.MethodPost, Auth: true})
		if !resp.OK() {
			m.logger.Warn("portal/session: remote logout failed", "status", resp.StatusCode, "message", resp.Message)
		}
	}
	m.clearLocal(ctx)
	m.record(ctx, audit.ActionLogout, audit.ResultSuccess, id, nil)
	return true
}

// UpdateProfile changes the name and email of the current user. A token in the
// response replaces the current one so the identity reflects the change.
func (m *Manager) UpdateProfile(ctx context.Context, name, email string) (*portal.Response, error) {
	id := m.Identity()
	if id == nil {
		return nil, ErrNotAuthenticated
	}
	resp := m.api.Do(ctx, api.Request{
		Path:   "/users/" + id.UserID,
		Method: http.MethodPut,
		Auth:   true,
		Body:   map[string]string{"name": name, "email": email},
	})
	if !resp.OK() {
		return resp, nil
	}
	var p authPayload
	if err := resp.Decode(&p); err == nil && p.Token != "" {
		if err := m.adopt(ctx, p.Token, audit.ActionLogin); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// UpdatePassword changes the password of the current user.
func (m *Manager) UpdatePassword(ctx context.Context, password, newPassword string) (*portal.Response, error) {
	id := m.Identity()
	if id == nil {
		return nil, ErrNotAuthenticated
	}
	return m.api.Do(ctx, api.Request{
		Path:   "/users/" + id.UserID + "/password",
		Method: http.MethodPatch,
		Auth:   true,
		Body:   map[string]string{"id": id.UserID, "password": password, "newPassword": newPassword},
	}), nil
}

// DeleteAccount deletes the current user after confirming the password.
// On success the session is cleared.
func (m *Manager) DeleteAccount(ctx context.Context, password string) (*portal.Response, error) {
	id := m.Identity()
	if id == nil {
		return nil, ErrNotAuthenticated
	}
	resp := m.api.Do(ctx, api.Request{
		Path:   "/users/" + id.UserID,
		Method: http.MethodDelete,
		Auth:   true,
		Body:   map[string]string{"id": id.UserID, "password": password},
	})
	if resp.OK() {
		m.clearLocal(ctx)
		m.record(ctx, audit.ActionAccountDeleted, audit.ResultSuccess, id, nil)
	} else {
		m.record(ctx, audit.ActionAccountDeleted, audit.ResultFailure, id, statusErr(resp))
	}
	return resp, nil
}

// Identity returns the current identity, or nil when anonymous.
func (m *Manager) Identity() *portal.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// Token returns the current raw token, or "".
func (m *Manager) Token() string {
	if id := m.Identity(); id != nil {
		return id.Token
	}
	return ""
}

// State returns the current state without checking expiry.
func (m *Manager) State() State {
	if m.Identity() != nil {
		return Authenticated
	}
	return Anonymous
}

// Subscribe registers fn to be called after every state transition.
func (m *Manager) Subscribe(fn func(State)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

func (m *Manager) set(id *portal.Identity) {
	m.mu.Lock()
	m.identity = id
	subs := append([]func(State){}, m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(Authenticated)
	}
}

// clearLocal drops the identity and the persisted token.
func (m *Manager) clearLocal(ctx context.Context) {
	m.mu.Lock()
	had := m.identity != nil
	m.identity = nil
	subs := append([]func(State){}, m.subs...)
	m.mu.Unlock()

	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.Warn("portal/session: clear token", "error", err)
	}
	if had {
		for _, fn := range subs {
			fn(Anonymous)
		}
	}
}

// clearIf clears the session only if id is still current. It reports whether
// it cleared anything.
func (m *Manager) clearIf(ctx context.Context, id *portal.Identity) bool {
	m.mu.Lock()
	if m.identity != id {
		m.mu.Unlock()
		return false
	}
	m.identity = nil
	subs := append([]func(State){}, m.subs...)
	m.mu.Unlock()

	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.Warn("portal/session: clear token", "error", err)
	}
	for _, fn := range subs {
		fn(Anonymous)
	}
	return true
}

func (m *Manager) record(ctx context.Context, action, result string, id *portal.Identity, err error) {
	m.metrics.RecordSessionEvent(action)
	e := audit.Event{Action: action, Result: result}
	if id != nil {
		e.UserID = id.UserID
		e.Email = id.Email
	}
	if err != nil {
		e.Error = err.Error()
	}
	m.audit.Log(ctx, e)
}

func statusErr(resp *portal.Response) error {
	return fmt.Errorf("status %d: %s", resp.StatusCode, resp.Message)
}
