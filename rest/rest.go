// Package rest wires the HTTP-backed implementations into a portal.Client.
//
// Usage:
//
//	client, err := rest.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Session().Login(ctx, "a@b.com", "pw")
//	users, _ := client.UserList(nil)
//
// New restores the persisted session from the token alone. Front ends that
// want the server's view on start call client.Session().Validate(ctx), which
// clears the session when the server no longer accepts the token.
package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
	"github.com/chimerakang/portal-go/audit"
	"github.com/chimerakang/portal-go/document"
	"github.com/chimerakang/portal-go/image"
	"github.com/chimerakang/portal-go/jwks"
	"github.com/chimerakang/portal-go/listctl"
	"github.com/chimerakang/portal-go/metrics"
	"github.com/chimerakang/portal-go/session"
	"github.com/chimerakang/portal-go/store"
	"github.com/chimerakang/portal-go/token"
	"github.com/chimerakang/portal-go/user"
)

const auditBuffer = 64

var newAudit = func(logger *slog.Logger) *audit.Logger {
	return audit.New(auditBuffer, audit.WithSlog(logger))
}

// Option overrides a collaborator New would otherwise build from Config.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	registerer prometheus.Registerer
	tokens     portal.TokenStore
	decoder    portal.TokenDecoder
	audit      *audit.Logger
}

// WithHTTPClient sets the HTTP client. Default: one with Config.RequestTimeout.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

// WithLogger sets the logger. Default: text to stderr at Config.LogLevel.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers metrics on reg. Without it metrics are enabled
// only by Config.MetricsEnabled, on the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTokenStore sets the token store. Default: a file store at
// Config.TokenFile, or memory when unset.
func WithTokenStore(s portal.TokenStore) Option {
	return func(o *options) { o.tokens = s }
}

// WithDecoder sets the token decoder. Default: JWKS verification when
// Config.JWKSUrl is set, unverified decoding otherwise.
func WithDecoder(d portal.TokenDecoder) Option {
	return func(o *options) { o.decoder = d }
}

// WithAudit sets the audit logger. The caller keeps ownership of it.
func WithAudit(a *audit.Logger) Option {
	return func(o *options) { o.audit = a }
}

// Client is a portal.Client with typed access to the HTTP-backed parts.
type Client struct {
	*portal.Client

	api     *api.Client
	session *session.Manager
	metrics *metrics.Metrics
}

// New builds every service, restores the persisted session and returns the client.
func New(ctx context.Context, cfg portal.Config, opts ...Option) (_ *Client, err error) {
	cfg, err = cfg.Resolved()
	if err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = newLogger(cfg.LogLevel)
	}
	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.RequestTimeout}
	}
	reg := o.registerer
	if reg == nil && cfg.MetricsEnabled {
		reg = prometheus.DefaultRegisterer
	}
	m := metrics.New(reg)

	tokens := o.tokens
	if tokens == nil {
		if cfg.TokenFile != "" {
			tokens = store.NewFile(cfg.TokenFile, store.WithKey(cfg.TokenKey))
		} else {
			tokens = store.NewMemory()
		}
	}
	decoder := o.decoder
	if decoder == nil {
		if cfg.JWKSUrl != "" {
			decoder = jwks.New(cfg.JWKSUrl, jwks.WithHTTPClient(hc), jwks.WithLogger(logger))
		} else {
			decoder = token.NewUnverified()
		}
	}

	clientOpts := []portal.Option{portal.WithLogger(logger), portal.WithTokenStore(tokens)}
	auditLog := o.audit
	if auditLog == nil {
		owned := newAudit(logger)
		auditLog = owned
		clientOpts = append(clientOpts, portal.WithCloser(owned))
		defer func() {
			if err != nil {
				_ = owned.Close()
			}
		}()
	}

	apiClient := api.New(cfg.APIURL,
		api.WithHTTPClient(hc),
		api.WithTokenStore(tokens),
		api.WithLogger(logger),
		api.WithMetrics(m),
	)
	sess := session.New(apiClient, tokens,
		session.WithDecoder(decoder),
		session.WithLogger(logger),
		session.WithMetrics(m),
		session.WithAudit(auditLog),
	)
	if err := sess.Init(ctx); err != nil {
		return nil, fmt.Errorf("portal/rest: restore session: %w", err)
	}

	clientOpts = append(clientOpts,
		portal.WithSessionService(sess),
		portal.WithUserService(user.New(apiClient)),
		portal.WithDocumentService(document.New(apiClient)),
		portal.WithImageService(image.New(apiClient)),
	)
	pc, err := portal.NewClient(cfg, clientOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{Client: pc, api: apiClient, session: sess, metrics: m}, nil
}

// API returns the underlying HTTP client wrapper.
func (c *Client) API() *api.Client { return c.api }

// Session returns the session manager.
func (c *Client) Session() *session.Manager { return c.session }

// UserList returns a list controller over all accounts.
func (c *Client) UserList(n portal.Notifier) (*listctl.Controller[portal.User, int64], error) {
	return newList(c, listctl.Users(c.Users()), n)
}

// DocumentList returns a list controller over the documents of ownerID, or
// over every document when ownerID is empty.
func (c *Client) DocumentList(ownerID string, n portal.Notifier) (*listctl.Controller[portal.Document, int64], error) {
	return newList(c, listctl.Documents(c.Documents(), ownerID), n)
}

// ImageList works as DocumentList for images.
func (c *Client) ImageList(ownerID string, n portal.Notifier) (*listctl.Controller[portal.Image, int64], error) {
	return newList(c, listctl.Images(c.Images(), ownerID), n)
}

func newList[T any, ID comparable](c *Client, cfg listctl.Config[T, ID], n portal.Notifier) (*listctl.Controller[T, ID], error) {
	conf := c.Config()
	cfg.PageSize = conf.PageSize
	cfg.Debounce = conf.Debounce
	cfg.Notifier = n
	cfg.Metrics = c.metrics
	cfg.Logger = c.Logger()
	return listctl.New(cfg)
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}
