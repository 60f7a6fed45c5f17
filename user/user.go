// Package user provides the UserService implementation.
package user

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
)

// Service implements portal.UserService over the users endpoints.
type Service struct {
	api api.Doer
}

var _ portal.UserService = (*Service)(nil)

// New creates a UserService backed by doer.
func New(doer api.Doer) *Service {
	return &Service{api: doer}
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, q portal.ListQuery) (*portal.Response, portal.PagedList[portal.User], error) {
	resp := s.api.Do(ctx, api.Request{Path: "/users", Query: q.Values()})
	if !resp.OK() {
		return resp, portal.PagedList[portal.User]{}, nil
	}
	page, err := api.DecodePage[portal.User](resp)
	if err != nil {
		return resp, page, fmt.Errorf("portal/user: %w", err)
	}
	return resp, page, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id int64) (*portal.Response, *portal.User, error) {
	if id <= 0 {
		return nil, nil, fmt.Errorf("portal/user: invalid id %d", id)
	}
	resp := s.api.Do(ctx, api.Request{Path: path(id), Auth: true})
	if !resp.OK() {
		return resp, nil, nil
	}
	var u portal.User
	if err := resp.Decode(&u); err != nil {
		return resp, nil, fmt.Errorf("portal/user: %w", err)
	}
	return resp, &u, nil
}

// Add creates a user.
func (s *Service) Add(ctx context.Context, name, email, password string) *portal.Response {
	return s.api.Do(ctx, api.Request{
		Path:   "/users",
		Method: http.MethodPost,
		Body:   map[string]string{"name": name, "email": email, "password": password},
	})
}

// Update changes a user's name and email.
func (s *Service) Update(ctx context.Context, id int64, name, email string) *portal.Response {
	return s.api.Do(ctx, api.Request{
		Path:   path(id),
		Method: http.MethodPut,
		Body:   map[string]string{"name": name, "email": email},
	})
}

// Delete removes a user.
func (s *Service) Delete(ctx context.Context, id int64) *portal.Response {
	return s.api.Do(ctx, api.Request{Path: path(id), Method: http.MethodDelete})
}

// BulkDelete removes several users in one call.
func (s *Service) BulkDelete(ctx context.Context, ids []int64) *portal.Response {
	return s.api.Do(ctx, api.Request{
		Path:   "/users/bulk",
		Method: http.MethodDelete,
		Body:   map[string][]int64{"ids": ids},
	})
}

func path(id int64) string { return "/users/" + strconv.FormatInt(id, 10) }
