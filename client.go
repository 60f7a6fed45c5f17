// Package portal provides a Go client SDK for the media portal REST API.
//
// The SDK owns the client-side state a front end needs: the bearer-token
// session (decode, expiry, persistence), the resource API calls for users,
// images and documents, a generic paged-list controller and route guards.
// Concrete implementations are injected via Option functions; rest.New wires
// the HTTP-backed ones.
//
// Example usage:
//
//	cfg, _ := portal.LoadConfig()
//	client, err := rest.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Sessions().Login(ctx, "a@b.com", "pw")
package portal

import (
	"io"
	"log/slog"
)

// Client is the main entry point for portal operations.
// Service implementations are injected via Option functions.
type Client struct {
	config    Config
	logger    *slog.Logger
	tokens    TokenStore
	sessions  SessionService
	users     UserService
	documents DocumentService
	images    ImageService
	closers   []io.Closer
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenStore sets where the bearer token is persisted.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithSessionService sets the session implementation.
func WithSessionService(s SessionService) Option {
	return func(c *Client) { c.sessions = s }
}

// WithUserService sets the user administration implementation.
func WithUserService(u UserService) Option {
	return func(c *Client) { c.users = u }
}

// WithDocumentService sets the document implementation.
func WithDocumentService(d DocumentService) Option {
	return func(c *Client) { c.documents = d }
}

// WithImageService sets the image implementation.
func WithImageService(i ImageService) Option {
	return func(c *Client) { c.images = i }
}

// WithCloser registers a resource released by Close.
func WithCloser(cl io.Closer) Option {
	return func(c *Client) { c.closers = append(c.closers, cl) }
}

// NewClient creates a new portal client with the given configuration and options.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg, err := cfg.Resolved()
	if err != nil {
		return nil, err
	}

	c := &Client{config: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns the client configuration with defaults applied.
func (c *Client) Config() Config { return c.config }

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Tokens returns the token store, or nil if not configured.
func (c *Client) Tokens() TokenStore { return c.tokens }

// Sessions returns the session service, or nil if not configured.
func (c *Client) Sessions() SessionService { return c.sessions }

// Users returns the user service, or nil if not configured.
func (c *Client) Users() UserService { return c.users }

// Documents returns the document service, or nil if not configured.
func (c *Client) Documents() DocumentService { return c.documents }

// Images returns the image service, or nil if not configured.
func (c *Client) Images() ImageService { return c.images }

// Close releases all resources held by the client.
// Any injected service that implements io.Closer will be closed.
func (c *Client) Close() error {
	candidates := []any{c.tokens, c.sessions, c.users, c.documents, c.images}
	var firstErr error
	for _, svc := range candidates {
		if cl, ok := svc.(io.Closer); ok && cl != nil {
			if err := cl.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
