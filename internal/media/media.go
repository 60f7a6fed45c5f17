// Package media holds the request logic shared by the document and image services.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
)

// Download failure messages.
const (
	MsgDownloadUnauthorized = "You do not have permission to download this file"
	MsgDownloadNotFound     = "File not found"
	MsgDownloadFailed       = "Error downloading file"
)

// ErrNoRawAccess is returned by Download when the Doer cannot stream bodies.
var ErrNoRawAccess = errors.New("doer does not support raw requests")

// Endpoints names the routes of one media kind.
type Endpoints struct {
	List   string // GET, paged
	Upload string // POST, multipart
	Item   string // prefix for PATCH and DELETE /{id}
	Bulk   string // DELETE {ids}
}

// Service issues the calls for one media kind.
type Service[T any] struct {
	api    api.Doer
	routes Endpoints
	accept func(mediaType string) bool
	pkg    string
}

// New returns a service for routes. accept decides which media types may be
// uploaded; pkg prefixes returned errors.
func New[T any](doer api.Doer, routes Endpoints, accept func(string) bool, pkg string) *Service[T] {
	return &Service[T]{api: doer, routes: routes, accept: accept, pkg: pkg}
}

// List returns one page.
func (s *Service[T]) List(ctx context.Context, q portal.ListQuery) (*portal.Response, portal.PagedList[T], error) {
	resp := s.api.Do(ctx, api.Request{Path: s.routes.List, Query: q.Values()})
	if !resp.OK() {
		return resp, portal.PagedList[T]{}, nil
	}
	page, err := api.DecodePage[T](resp)
	if err != nil {
		return resp, page, fmt.Errorf("portal/%s: %w", s.pkg, err)
	}
	return resp, page, nil
}

// Upload sends u as multipart form data. A file rejected by the precheck
// returns portal.ErrFileType or portal.ErrFileTooLarge without a request.
func (s *Service[T]) Upload(ctx context.Context, u portal.Upload) (*portal.Response, error) {
	if err := u.Check(s.accept); err != nil {
		return nil, fmt.Errorf("portal/%s: %w", s.pkg, err)
	}
	fields := map[string]string{"file_name": u.FileName, "description": u.Description}
	if u.UserID != "" {
		fields["user_id"] = u.UserID
	}
	return s.api.Do(ctx, api.Request{
		Path:   s.routes.Upload,
		Method: http.MethodPost,
		Auth:   true,
		Form: &api.Multipart{
			Fields: fields,
			Files: []api.FilePart{{
				Field:       "file",
				Filename:    u.Filename,
				ContentType: u.MediaType(),
				Content:     u.Content,
			}},
		},
	}), nil
}

// Update changes the display name and description.
func (s *Service[T]) Update(ctx context.Context, id int64, fileName, description string) *portal.Response {
	return s.api.Do(ctx, api.Request{
		Path:   s.item(id),
		Method: http.MethodPatch,
		Body:   map[string]string{"file_name": fileName, "description": description},
	})
}

// Delete removes one item.
func (s *Service[T]) Delete(ctx context.Context, id int64) *portal.Response {
	return s.api.Do(ctx, api.Request{Path: s.item(id), Method: http.MethodDelete})
}

// BulkDelete removes several items in one call.
func (s *Service[T]) BulkDelete(ctx context.Context, ids []int64) *portal.Response {
	return s.api.Do(ctx, api.Request{
		Path:   s.routes.Bulk,
		Method: http.MethodDelete,
		Body:   map[string][]int64{"ids": ids},
	})
}

// Download fetches the file stored at path (the item's Path). On 200 the
// caller must close the returned body. Any other outcome returns a nil body
// and an envelope whose message fits the status.
func (s *Service[T]) Download(ctx context.Context, path string) (io.ReadCloser, *portal.Response, error) {
	raw, ok := s.api.(api.RawDoer)
	if !ok {
		return nil, nil, fmt.Errorf("portal/%s: %w", s.pkg, ErrNoRawAccess)
	}
	resp, err := raw.RawDo(ctx, api.Request{Path: path, Auth: true})
	switch {
	case errors.Is(err, api.ErrMissingBaseURL):
		return nil, &portal.Response{
			StatusCode: api.StatusMissingBaseURL,
			StatusText: api.MsgMissingBaseURL,
			Message:    api.MsgMissingBaseURL,
		}, nil
	case err != nil:
		return nil, &portal.Response{StatusCode: api.StatusNoResponse, Message: MsgDownloadFailed}, nil
	}

	out := &portal.Response{StatusCode: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	if resp.StatusCode == http.StatusOK {
		out.Message = out.StatusText
		return resp.Body, out, nil
	}
	_ = resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		out.Message = MsgDownloadUnauthorized
	case http.StatusNotFound:
		out.Message = MsgDownloadNotFound
	default:
		out.Message = MsgDownloadFailed
	}
	return nil, out, nil
}

func (s *Service[T]) item(id int64) string {
	return s.routes.Item + "/" + strconv.FormatInt(id, 10)
}
