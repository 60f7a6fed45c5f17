package portal

import (
	"context"
	"io"
)

// TokenStore persists the bearer token between runs.
// Implementations: store/ (memory, file), internal/mocks (testing).
type TokenStore interface {
	// Load returns the persisted token, or "" with a nil error when none is stored.
	Load(ctx context.Context) (string, error)

	// Save replaces the persisted token.
	Save(ctx context.Context, token string) error

	// Clear removes the persisted token.
	Clear(ctx context.Context) error
}

// TokenDecoder extracts claims from a bearer token.
// Implementations: token/ (unverified decode), jwks/ (signature-verified).
type TokenDecoder interface {
	Decode(ctx context.Context, token string) (*Claims, error)
}

// Severity classifies a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "default"
)

// Notifier shows short user-facing messages (toasts).
type Notifier interface {
	Notify(ctx context.Context, severity Severity, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, severity Severity, message string)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, severity Severity, message string) {
	f(ctx, severity, message)
}

// FieldErrorSink receives field-level validation errors for the form that issued a request.
type FieldErrorSink interface {
	SetFieldError(field, message string)
}

// FieldErrorSinkFunc adapts a function to FieldErrorSink.
type FieldErrorSinkFunc func(field, message string)

// SetFieldError calls f.
func (f FieldErrorSinkFunc) SetFieldError(field, message string) { f(field, message) }

// SessionService owns the current bearer token and the identity decoded from it.
type SessionService interface {
	// Login authenticates with email and password. Expected failures are
	// reported in the envelope; the error is non-nil only for a corrupt token.
	Login(ctx context.Context, email, password string) (*Response, error)

	// Register creates an account and authenticates with the returned token.
	Register(ctx context.Context, email, password, name string) (*Response, error)

	// Logout invalidates the session remotely (best effort) and always clears it locally.
	Logout(ctx context.Context) bool

	// CheckValid reports whether a non-expired token is held, clearing an expired one.
	CheckValid() bool

	// Validate re-checks the session with the server.
	Validate(ctx context.Context) (bool, error)

	// Identity returns the current identity, or nil when anonymous.
	Identity() *Identity
}

// UserService maps user administration operations to API calls.
type UserService interface {
	List(ctx context.Context, q ListQuery) (*Response, PagedList[User], error)
	Get(ctx context.Context, id int64) (*Response, *User, error)
	Add(ctx context.Context, name, email, password string) *Response
	Update(ctx context.Context, id int64, name, email string) *Response
	Delete(ctx context.Context, id int64) *Response
	BulkDelete(ctx context.Context, ids []int64) *Response
}

// DocumentService maps document operations to API calls.
type DocumentService interface {
	List(ctx context.Context, q ListQuery) (*Response, PagedList[Document], error)
	Upload(ctx context.Context, u Upload) (*Response, error)
	Update(ctx context.Context, id int64, fileName, description string) *Response
	Delete(ctx context.Context, id int64) *Response
	BulkDelete(ctx context.Context, ids []int64) *Response
	// Download streams the file at path (the item's Path). The body is nil
	// unless the response is 200.
	Download(ctx context.Context, path string) (io.ReadCloser, *Response, error)
}

// ImageService maps image operations to API calls.
type ImageService interface {
	List(ctx context.Context, q ListQuery) (*Response, PagedList[Image], error)
	Upload(ctx context.Context, u Upload) (*Response, error)
	Update(ctx context.Context, id int64, fileName, description string) *Response
	Delete(ctx context.Context, id int64) *Response
	BulkDelete(ctx context.Context, ids []int64) *Response
	// Download streams the file at path (the item's Path). The body is nil
	// unless the response is 200.
	Download(ctx context.Context, path string) (io.ReadCloser, *Response, error)
}
