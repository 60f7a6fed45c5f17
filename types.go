package portal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
)

// Role is the authorization role carried in the session token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Claims are the fields decoded from a bearer token.
type Claims struct {
	UserID    string
	Name      string
	Email     string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
	Extra     map[string]any
}

// Identity is the client-side view of an authenticated session.
// It is always derived from Token; only the token itself is ever persisted.
type Identity struct {
	Token     string
	UserID    string
	Name      string
	Email     string
	Role      Role
	ExpiresAt time.Time
}

// NewIdentity builds an Identity from a raw token and its decoded claims.
func NewIdentity(token string, c *Claims) *Identity {
	return &Identity{
		Token:     token,
		UserID:    c.UserID,
		Name:      c.Name,
		Email:     c.Email,
		Role:      c.Role,
		ExpiresAt: c.ExpiresAt,
	}
}

// ValidAt reports whether the identity has a token whose expiry is strictly after now.
func (i *Identity) ValidAt(now time.Time) bool {
	return i != nil && i.Token != "" && i.ExpiresAt.After(now)
}

// HasRole reports whether the identity's role is one of roles.
// An empty roles list allows any role.
func (i *Identity) HasRole(roles ...Role) bool {
	if len(roles) == 0 {
		return true
	}
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// FieldError is a validation failure for a single form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrNoData is returned by Response.Decode when the envelope carried no data.
var ErrNoData = errors.New("portal: response has no data")

// Response is the uniform envelope every API call resolves to, success or failure.
type Response struct {
	Message     string
	StatusCode  int
	StatusText  string
	Data        json.RawMessage
	FieldErrors []FieldError
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the envelope data into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 || string(r.Data) == "null" {
		return ErrNoData
	}
	return gojson.Unmarshal(r.Data, v)
}

// DefaultPageSize is the page size used when a list query does not set one.
const DefaultPageSize = 5

// PagedList is one page of a server-paginated collection.
type PagedList[T any] struct {
	Items      []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

// Normalize enforces len(Items) <= PageSize and TotalPages = ceil(Total/PageSize).
func (p *PagedList[T]) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if len(p.Items) > p.PageSize {
		p.Items = p.Items[:p.PageSize]
	}
	if p.Total < len(p.Items) {
		p.Total = len(p.Items)
	}
	p.TotalPages = (p.Total + p.PageSize - 1) / p.PageSize
}

// SortDirection is ASC or DESC.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SortOption selects a sort key and direction for a list.
type SortOption struct {
	Key       string
	Label     string
	Direction SortDirection
}

// Toggle returns a copy of s with the direction flipped.
func (s SortOption) Toggle() SortOption {
	if s.Direction == SortAsc {
		s.Direction = SortDesc
	} else {
		s.Direction = SortAsc
	}
	return s
}

// ListQuery holds pagination, search and sort parameters for list endpoints.
type ListQuery struct {
	Page        int
	PageSize    int
	Search      string
	Sort        *SortOption
	Role        Role
	UserID      string
	IncludeUser bool
}

// Values encodes q as list endpoint query parameters.
func (q ListQuery) Values() url.Values {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("pageSize", strconv.Itoa(size))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != nil {
		v.Set("sortBy", q.Sort.Key)
		v.Set("sortOrder", string(q.Sort.Direction))
	}
	if q.Role != "" {
		v.Set("role", string(q.Role))
	}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	if q.IncludeUser {
		v.Set("include_user", "true")
	}
	return v
}

// User is a registered account as returned by the users endpoints.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is an uploaded PDF.
type Document struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	FileType    string    `json:"file_type"`
	FileName    string    `json:"file_name"`
	CreatedAt   time.Time `json:"created_at"`
	User        *User     `json:"userData,omitempty"`
}

// Image is an uploaded picture.
type Image struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	FileType    string    `json:"file_type"`
	FileName    string    `json:"file_name"`
	CreatedAt   time.Time `json:"created_at"`
	User        *User     `json:"userData,omitempty"`
}

// BulkDeleteResult is the payload of a bulk delete call.
// DeletedIDs is nil when the server did not report per-id results.
type BulkDeleteResult struct {
	DeletedIDs    []int64 `json:"deletedIds"`
	NotDeletedIDs []int64 `json:"notDeletedIds"`
}

// Upload describes a file to send to an upload endpoint.
type Upload struct {
	FileName    string
	Description string
	UserID      string

	// Filename is the original name of the file on disk.
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// MaxUploadSize is the largest file the upload endpoints accept.
const MaxUploadSize = 10 << 20

var (
	// ErrFileType is returned when an upload's content type is not accepted.
	ErrFileType = errors.New("portal: file type not allowed")

	// ErrFileTooLarge is returned when an upload exceeds MaxUploadSize.
	ErrFileTooLarge = errors.New("portal: file exceeds 10MB")
)

// MediaType returns the upload's content type, guessed from the file
// extension when unset.
func (u Upload) MediaType() string {
	if u.ContentType != "" {
		return u.ContentType
	}
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(u.Filename)))
}

// Check rejects an upload whose media type fails accept or whose known size
// exceeds MaxUploadSize. A zero Size is left to the server.
func (u Upload) Check(accept func(mediaType string) bool) error {
	if u.Content == nil {
		return fmt.Errorf("portal: upload has no content")
	}
	mt, _, _ := mime.ParseMediaType(u.MediaType())
	if !accept(mt) {
		return fmt.Errorf("%w: %q", ErrFileType, u.MediaType())
	}
	if u.Size > MaxUploadSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, u.Size)
	}
	return nil
}
