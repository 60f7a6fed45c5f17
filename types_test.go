package portal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	portal "github.com/chimerakang/portal-go"
)

func TestPagedList_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		in        portal.PagedList[int]
		wantItems int
		wantPages int
	}{
		{"exact", portal.PagedList[int]{Items: []int{1, 2}, Total: 4, PageSize: 2}, 2, 2},
		{"rounds up", portal.PagedList[int]{Items: []int{1, 2}, Total: 5, PageSize: 2}, 2, 3},
		{"truncates", portal.PagedList[int]{Items: []int{1, 2, 3}, Total: 9, PageSize: 2}, 2, 5},
		{"empty", portal.PagedList[int]{PageSize: 6}, 0, 0},
		{"default size", portal.PagedList[int]{Items: []int{1}, Total: 11}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in
			p.Normalize()
			if len(p.Items) != tt.wantItems {
				t.Errorf("len(Items) = %d, want %d", len(p.Items), tt.wantItems)
			}
			if p.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", p.TotalPages, tt.wantPages)
			}
			if p.Page != 1 {
				t.Errorf("Page = %d, want 1", p.Page)
			}
		})
	}
}

func TestListQuery_Values(t *testing.T) {
	sort := portal.SortOption{Key: "name", Direction: portal.SortDesc}
	v := portal.ListQuery{Page: 2, PageSize: 6, Search: "cat", Sort: &sort, IncludeUser: true}.Values()

	want := map[string]string{
		"page": "2", "pageSize": "6", "search": "cat",
		"sortBy": "name", "sortOrder": "DESC", "include_user": "true",
	}
	for k, w := range want {
		if got := v.Get(k); got != w {
			t.Errorf("%s = %q, want %q", k, got, w)
		}
	}
	if v.Has("role") || v.Has("user_id") {
		t.Errorf("unset fields should be omitted: %v", v)
	}
}

func TestListQuery_ValuesDefaults(t *testing.T) {
	v := portal.ListQuery{}.Values()
	if v.Get("page") != "1" || v.Get("pageSize") != "5" {
		t.Errorf("defaults = %v", v)
	}
}

func TestSortOption_Toggle(t *testing.T) {
	s := portal.SortOption{Key: "id", Direction: portal.SortDesc}
	if got := s.Toggle().Direction; got != portal.SortAsc {
		t.Errorf("Toggle() = %s, want ASC", got)
	}
	if got := s.Toggle().Toggle().Direction; got != portal.SortDesc {
		t.Errorf("double Toggle() = %s, want DESC", got)
	}
}

func TestIdentity_ValidAt(t *testing.T) {
	now := time.Now()
	var nilID *portal.Identity
	if nilID.ValidAt(now) {
		t.Error("nil identity should be invalid")
	}
	id := &portal.Identity{Token: "t", ExpiresAt: now}
	if id.ValidAt(now) {
		t.Error("expiry equal to now should be invalid")
	}
	id.ExpiresAt = now.Add(time.Second)
	if !id.ValidAt(now) {
		t.Error("future expiry should be valid")
	}
}

func TestIdentity_HasRole(t *testing.T) {
	id := &portal.Identity{Role: portal.RoleUser}
	if !id.HasRole() {
		t.Error("empty role list should allow")
	}
	if id.HasRole(portal.RoleAdmin) {
		t.Error("user should not match admin")
	}
	if !id.HasRole(portal.RoleAdmin, portal.RoleUser) {
		t.Error("user should match [admin user]")
	}
}

func TestResponse_Decode(t *testing.T) {
	r := &portal.Response{StatusCode: 200, Data: []byte(`{"deletedIds":[1,2],"notDeletedIds":[3]}`)}
	var res portal.BulkDeleteResult
	if err := r.Decode(&res); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(res.DeletedIDs) != 2 || len(res.NotDeletedIDs) != 1 {
		t.Errorf("Decode() = %+v", res)
	}

	empty := &portal.Response{StatusCode: 204}
	if err := empty.Decode(&res); !errors.Is(err, portal.ErrNoData) {
		t.Errorf("Decode() on empty data = %v, want ErrNoData", err)
	}
	bad := &portal.Response{StatusCode: 200, Data: []byte(`{"deletedIds":"x"}`)}
	if err := bad.Decode(&res); err == nil {
		t.Error("Decode() of mistyped data should fail")
	}
}

func TestResponse_OK(t *testing.T) {
	for code, want := range map[int]bool{200: true, 201: true, 204: true, 299: true, 199: false, 400: false, 998: false} {
		if got := (&portal.Response{StatusCode: code}).OK(); got != want {
			t.Errorf("OK() for %d = %v, want %v", code, got, want)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if portal.IdentityFromContext(ctx) != nil {
		t.Error("empty context should have no identity")
	}
	id := &portal.Identity{UserID: "7", Role: portal.RoleAdmin}
	ctx = portal.WithIdentity(ctx, id)
	if got := portal.IdentityFromContext(ctx); got != id {
		t.Errorf("IdentityFromContext() = %v, want %v", got, id)
	}
	if portal.RoleFromContext(ctx) != portal.RoleAdmin {
		t.Error("RoleFromContext() should be admin")
	}
}
