package document_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
	"github.com/chimerakang/portal-go/document"
	"github.com/chimerakang/portal-go/fake"
	"github.com/chimerakang/portal-go/internal/mocks"
)

func pdf(name string) portal.Upload {
	return portal.Upload{
		FileName:    "Report",
		Description: "Q3",
		Filename:    name,
		Content:     strings.NewReader("%PDF-1.4"),
		Size:        8,
	}
}

func TestUpload_Precheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	// No expectations: any request fails the test.
	svc := document.New(mocks.NewMockDoer(ctrl))

	tests := []struct {
		name   string
		upload portal.Upload
		want   error
	}{
		{"png by extension", pdf("scan.png"), portal.ErrFileType},
		{"explicit type", func() portal.Upload { u := pdf("a.pdf"); u.ContentType = "text/plain"; return u }(), portal.ErrFileType},
		{"too large", func() portal.Upload { u := pdf("a.pdf"); u.Size = portal.MaxUploadSize + 1; return u }(), portal.ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.Upload(context.Background(), tt.upload)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, resp)
		})
	}

	_, err := svc.Upload(context.Background(), portal.Upload{Filename: "a.pdf"})
	assert.Error(t, err, "nil content")
}

func TestRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	svc := document.New(doer)
	ctx := context.Background()

	var got []api.Request
	doer.EXPECT().Do(gomock.Any(), gomock.Any()).Times(4).DoAndReturn(
		func(_ context.Context, req api.Request) *portal.Response {
			got = append(got, req)
			return &portal.Response{StatusCode: http.StatusOK}
		})

	_, err := svc.Upload(ctx, pdf("report.PDF"))
	require.NoError(t, err)
	svc.Update(ctx, 7, "New", "desc")
	svc.Delete(ctx, 7)
	svc.BulkDelete(ctx, []int64{7, 8})

	require.Len(t, got, 4)
	assert.Equal(t, "/documents/upload", got[0].Path)
	assert.True(t, got[0].Auth)
	require.NotNil(t, got[0].Form)
	assert.Equal(t, "Report", got[0].Form.Fields["file_name"])
	assert.NotContains(t, got[0].Form.Fields, "user_id")
	assert.Equal(t, document.MediaType, got[0].Form.Files[0].ContentType)

	assert.Equal(t, http.MethodPatch, got[1].Method)
	assert.Equal(t, "/documents/7", got[1].Path)
	assert.Equal(t, http.MethodDelete, got[2].Method)
	assert.Equal(t, "/documents/7", got[2].Path)
	assert.Equal(t, "/documents/bulk", got[3].Path)
	assert.Equal(t, map[string][]int64{"ids": {7, 8}}, got[3].Body)
}

func TestList_QueryParams(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req api.Request) *portal.Response {
			assert.Equal(t, "/documents", req.Path)
			assert.Equal(t, "true", req.Query.Get("include_user"))
			assert.Equal(t, "5", req.Query.Get("user_id"))
			return &portal.Response{StatusCode: http.StatusBadGateway}
		})

	resp, page, err := document.New(doer).List(context.Background(), portal.ListQuery{UserID: "5", IncludeUser: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Empty(t, page.Items)
}

func TestAgainstFake(t *testing.T) {
	srv := fake.New(
		fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleAdmin),
		fake.WithDocument(1, "old.pdf", "seed"),
	)
	defer srv.Close()
	svc := document.New(api.New(srv.URL))
	ctx := context.Background()

	u := pdf("report.pdf")
	u.UserID = "1"
	resp, err := svc.Upload(ctx, u)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Message)
	var created portal.Document
	require.NoError(t, resp.Decode(&created))
	assert.Equal(t, "Report", created.FileName)
	assert.Equal(t, int64(1), created.UserID)

	resp, page, err := svc.List(ctx, portal.ListQuery{IncludeUser: true})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, 2, page.Total)
	require.NotNil(t, page.Items[0].User)
	assert.Equal(t, "Ana", page.Items[0].User.Name)

	resp = svc.Update(ctx, created.ID, " ", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, resp.FieldErrors)

	assert.Equal(t, http.StatusOK, svc.Update(ctx, created.ID, "Renamed", "").StatusCode)
	assert.Equal(t, http.StatusOK, svc.Delete(ctx, created.ID).StatusCode)
	assert.Equal(t, http.StatusNotFound, svc.Delete(ctx, created.ID).StatusCode)

	resp = svc.BulkDelete(ctx, []int64{2, 99})
	var res portal.BulkDeleteResult
	require.NoError(t, resp.Decode(&res))
	assert.Equal(t, []int64{2}, res.DeletedIDs)
	assert.Equal(t, []int64{99}, res.NotDeletedIDs)
}

func TestAgainstFake_RejectedTypeNeverSent(t *testing.T) {
	srv := fake.New()
	defer srv.Close()
	svc := document.New(api.New(srv.URL))

	_, err := svc.Upload(context.Background(), pdf("photo.jpg"))
	require.ErrorIs(t, err, portal.ErrFileType)
	assert.Zero(t, srv.Hits(http.MethodPost, "/documents/upload"))
}

func TestDownload(t *testing.T) {
	srv := fake.New(fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleUser))
	defer srv.Close()
	svc := document.New(api.New(srv.URL))
	ctx := context.Background()

	u := pdf("report.pdf")
	u.UserID = "1"
	resp, err := svc.Upload(ctx, u)
	require.NoError(t, err)
	var doc portal.Document
	require.NoError(t, resp.Decode(&doc))

	body, resp, err := svc.Download(ctx, doc.Path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "%PDF-1.4", string(b))

	srv.Fail(http.MethodGet, doc.Path, http.StatusUnauthorized, "Unauthorized")
	body, resp, err = svc.Download(ctx, doc.Path)
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, "You do not have permission to download this file", resp.Message)

	srv.Fail(http.MethodGet, doc.Path, http.StatusBadGateway, "")
	_, resp, _ = svc.Download(ctx, doc.Path)
	assert.Equal(t, "Error downloading file", resp.Message)

	srv.Fail(http.MethodGet, doc.Path, 0, "")
	require.True(t, svc.Delete(ctx, doc.ID).OK())
	body, resp, err = svc.Download(ctx, doc.Path)
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "File not found", resp.Message)
}

func TestDownload_NoBaseURL(t *testing.T) {
	body, resp, err := document.New(api.New("")).Download(context.Background(), "/uploads/documents/1.pdf")
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, api.StatusMissingBaseURL, resp.StatusCode)
}

func TestDownload_NeedsRawAccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, _, err := document.New(mocks.NewMockDoer(ctrl)).Download(context.Background(), "/uploads/documents/1.pdf")
	assert.Error(t, err)
}
