// Package api is the HTTP client wrapper shared by every resource module.
//
// Every call resolves to a *portal.Response envelope; transport failures,
// misconfiguration and server errors are folded into the envelope instead of
// being returned as Go errors.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/metrics"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Sentinel statuses for requests that never produced an HTTP response.
const (
	StatusMissingBaseURL = 998
	StatusNoResponse     = 599
)

// Fixed user-facing messages.
const (
	MsgMissingBaseURL = "API URL is not defined"
	MsgConnection     = "Error connecting to the server, check your internet connection"
	MsgServerError    = "Server error, contact support"
	MsgTimeout        = "Timeout, try again"

	statusTextNoResponse = "Initial State"
)

// HeaderRequestID carries a per-request correlation id.
const HeaderRequestID = "X-Request-ID"

var (
	_ Doer    = (*Client)(nil)
	_ RawDoer = (*Client)(nil)
)

// ErrMissingBaseURL is returned by RawDo when no base URL is configured.
var ErrMissingBaseURL = fmt.Errorf("portal/api: %s", MsgMissingBaseURL)

// Response is the envelope every call resolves to.
type Response = portal.Response

// Doer executes a request and returns its envelope. *Client implements it.
type Doer interface {
	Do(ctx context.Context, req Request) *Response
}

// RawDoer executes a request without decoding the body. *Client implements it.
type RawDoer interface {
	RawDo(ctx context.Context, req Request) (*http.Response, error)
}

// Request describes one API call.
type Request struct {
	Path   string
	Method string

	// Auth attaches the stored bearer token when one is available.
	Auth bool

	// Body is sent as JSON on POST, PUT, PATCH and DELETE.
	Body any

	// Form is sent as multipart/form-data on POST, PUT and PATCH when Body is nil.
	Form *Multipart

	Query url.Values
}

// Multipart is a multipart/form-data body.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

// FilePart is one file in a multipart body.
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// Client executes API requests against a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     portal.TokenStore
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTokenStore sets where bearer tokens are read from.
func WithTokenStore(s portal.TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates an API client. An empty baseURL is allowed; every request then
// short-circuits with StatusMissingBaseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: portal.DefaultRequestTimeout},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// envelope is the JSON body every endpoint answers with.
type envelope struct {
	Message     string              `json:"message"`
	RawData     rawJSON             `json:"data"`
	FieldErrors []portal.FieldError `json:"fieldErrors"`
}

// rawJSON keeps the data member undecoded.
type rawJSON []byte

func (r *rawJSON) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

// Do executes req and normalizes the outcome into an envelope.
func (c *Client) Do(ctx context.Context, req Request) *portal.Response {
	if c.baseURL == "" {
		return &portal.Response{
			Message:    MsgMissingBaseURL,
			StatusCode: StatusMissingBaseURL,
			StatusText: MsgMissingBaseURL,
		}
	}

	start := time.Now()
	out := &portal.Response{StatusCode: StatusNoResponse, StatusText: statusTextNoResponse}

	httpReq, err := c.build(ctx, req)
	if err != nil {
		c.logger.Error("portal/api: build request", "path", req.Path, "error", err)
		out.Message = MsgConnection
		return out
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("portal/api: request failed", "method", req.Method, "path", req.Path, "error", err)
		out.Message = MsgConnection
		c.metrics.RecordRequest(req.Method, out.StatusCode, time.Since(start))
		return out
	}
	defer func() { _ = resp.Body.Close() }()

	out.StatusCode = resp.StatusCode
	out.StatusText = http.StatusText(resp.StatusCode)
	out.Message = out.StatusText

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("portal/api: read body", "path", req.Path, "error", err)
		out.Message = MsgConnection
	} else if len(bytes.TrimSpace(body)) > 0 {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			c.logger.Error("portal/api: decode body", "path", req.Path, "status", resp.StatusCode, "error", err)
			out.Message = MsgConnection
		} else {
			if env.Message != "" {
				out.Message = env.Message
			}
			if len(env.RawData) > 0 {
				out.Data = []byte(env.RawData)
			}
			out.FieldErrors = env.FieldErrors
		}
	}

	switch resp.StatusCode {
	case http.StatusInternalServerError:
		out.Message = MsgServerError
	case http.StatusGatewayTimeout:
		out.Message = MsgTimeout
	}

	c.metrics.RecordRequest(req.Method, out.StatusCode, time.Since(start))
	c.logger.Debug("portal/api: request",
		"method", req.Method,
		"path", req.Path,
		"status", out.StatusCode,
		"duration", time.Since(start),
	)
	return out
}

// RawDo executes req and returns the undecoded response, e.g. for file downloads.
// The caller must close the response body.
func (c *Client) RawDo(ctx context.Context, req Request) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("portal/api: %w", err)
	}
	return resp, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.Body != nil && allowsJSONBody(method):
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("portal/api: marshal body: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	case req.Form != nil && allowsForm(method):
		buf, ct, err := encodeMultipart(req.Form)
		if err != nil {
			return nil, err
		}
		body = buf
		contentType = ct
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("portal/api: create request: %w", err)
	}
	httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if contentType == "application/json" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.Auth {
		c.attachToken(ctx, httpReq)
	}
	return httpReq, nil
}

func (c *Client) attachToken(ctx context.Context, httpReq *http.Request) {
	if c.tokens == nil {
		c.logger.Warn("portal/api: no token store configured for authenticated request", "path", httpReq.URL.Path)
		return
	}
	token, err := c.tokens.Load(ctx)
	if err != nil {
		c.logger.Warn("portal/api: load token", "path", httpReq.URL.Path, "error", err)
		return
	}
	if token == "" {
		c.logger.Warn("portal/api: no token available for authenticated request", "path", httpReq.URL.Path)
		return
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
}

func allowsJSONBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func allowsForm(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func encodeMultipart(form *Multipart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range form.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("portal/api: write field %q: %w", k, err)
		}
	}
	for _, f := range form.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", multipart.FileContentDisposition(f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("portal/api: create part %q: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("portal/api: copy part %q: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("portal/api: close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// DecodePage decodes the envelope data into a normalized page.
func DecodePage[T any](resp *portal.Response) (portal.PagedList[T], error) {
	var page portal.PagedList[T]
	if err := resp.Decode(&page); err != nil {
		return portal.PagedList[T]{}, fmt.Errorf("portal/api: decode page: %w", err)
	}
	page.Normalize()
	return page, nil
}
