package image

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
	"github.com/chimerakang/portal-go/fake"
)

func TestAccept(t *testing.T) {
	for mt, want := range map[string]bool{
		"image/png":       true,
		"image/jpeg":      true,
		"image/svg+xml":   true,
		"application/pdf": false,
		"":                false,
		"imagefoo":        false,
	} {
		assert.Equal(t, want, Accept(mt), mt)
	}
}

func TestUpload_ContentTypeFromExtension(t *testing.T) {
	srv := fake.New()
	defer srv.Close()
	svc := New(api.New(srv.URL))

	resp, err := svc.Upload(context.Background(), portal.Upload{
		Filename: "Cat.PNG",
		Content:  strings.NewReader("\x89PNG"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Message)

	var im portal.Image
	require.NoError(t, resp.Decode(&im))
	assert.Equal(t, "image/png", im.FileType)
	assert.Equal(t, "Cat.PNG", im.FileName)
}

func TestUpload_Rejected(t *testing.T) {
	srv := fake.New()
	defer srv.Close()
	svc := New(api.New(srv.URL))
	ctx := context.Background()

	_, err := svc.Upload(ctx, portal.Upload{Filename: "doc.pdf", Content: strings.NewReader("x")})
	require.ErrorIs(t, err, portal.ErrFileType)

	_, err = svc.Upload(ctx, portal.Upload{Filename: "big.jpg", Size: portal.MaxUploadSize + 1, Content: strings.NewReader("x")})
	require.ErrorIs(t, err, portal.ErrFileTooLarge)

	assert.Zero(t, srv.Hits(http.MethodPost, "/documents/image"))
}

func TestAgainstFake(t *testing.T) {
	srv := fake.New(
		fake.WithUser("Ana", "ana@example.com", "pw", portal.RoleUser),
		fake.WithImage(1, "sunset.png", "beach"),
		fake.WithImage(1, "forest.png", ""),
	)
	defer srv.Close()
	svc := New(api.New(srv.URL))
	ctx := context.Background()

	resp, page, err := svc.List(ctx, portal.ListQuery{Search: "SUN"})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Len(t, page.Items, 1)
	assert.Equal(t, "sunset.png", page.Items[0].FileName)
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/documents/images"))

	resp = svc.Update(ctx, 2, "dusk.png", "beach")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, srv.Hits(http.MethodPatch, "/images/2"))

	assert.Equal(t, http.StatusNoContent, svc.Delete(ctx, 3).StatusCode)
	assert.Equal(t, http.StatusNotFound, svc.Delete(ctx, 3).StatusCode)

	resp = svc.BulkDelete(ctx, []int64{2})
	var res portal.BulkDeleteResult
	require.NoError(t, resp.Decode(&res))
	assert.Equal(t, []int64{2}, res.DeletedIDs)

	_, _, images := srv.Counts()
	assert.Zero(t, images)
}

func TestBulkDelete_Legacy(t *testing.T) {
	srv := fake.New(fake.WithImage(1, "a.png", ""), fake.WithLegacyBulk())
	defer srv.Close()

	resp := New(api.New(srv.URL)).BulkDelete(context.Background(), []int64{1})
	require.True(t, resp.OK())
	var res portal.BulkDeleteResult
	assert.ErrorIs(t, resp.Decode(&res), portal.ErrNoData)
}

func TestDownload_SeededImage(t *testing.T) {
	srv := fake.New(fake.WithImage(1, "sunset.png", ""))
	defer srv.Close()
	svc := New(api.New(srv.URL))
	ctx := context.Background()

	_, page, err := svc.List(ctx, portal.ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	body, resp, err := svc.Download(ctx, page.Items[0].Path)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer body.Close()
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "sunset.png", string(b))

	body, resp, err = svc.Download(ctx, "/uploads/images/404.png")
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, "File not found", resp.Message)
}
