package listctl

import (
	"context"
	"io"

	portal "github.com/chimerakang/portal-go"
)

// UserSortOptions are the sorts offered by the user administration list.
var UserSortOptions = []portal.SortOption{
	{Key: "id", Label: "ID", Direction: portal.SortDesc},
	{Key: "name", Label: "Name", Direction: portal.SortDesc},
	{Key: "email", Label: "Email", Direction: portal.SortDesc},
}

// FileSortOptions are the sorts offered by the document and image lists.
var FileSortOptions = []portal.SortOption{
	{Key: "created_at", Label: "Date", Direction: portal.SortDesc},
	{Key: "file_name", Label: "Name", Direction: portal.SortAsc},
}

// Users returns a Config listing accounts through svc.
func Users(svc portal.UserService) Config[portal.User, int64] {
	return Config[portal.User, int64]{
		Name:        "users",
		Fetch:       svc.List,
		IDOf:        func(u portal.User) int64 { return u.ID },
		SortOptions: UserSortOptions,
		EditFields:  []string{"name", "email"},
		Messages:    Messages{Noun: "user"},
	}
}

// Documents returns a Config listing documents through svc. A non-empty
// ownerID restricts the list to that user; an empty one is the admin view
// and includes each document's owner.
func Documents(svc portal.DocumentService, ownerID string) Config[portal.Document, int64] {
	return Config[portal.Document, int64]{
		Name:        "documents",
		Fetch:       svc.List,
		IDOf:        func(d portal.Document) int64 { return d.ID },
		SortOptions: FileSortOptions,
		Base:        ownerQuery(ownerID),
		EditFields:  []string{"file_name", "description"},
		Messages:    Messages{Noun: "document"},
	}
}

// Images returns a Config listing images through svc. ownerID works as in Documents.
func Images(svc portal.ImageService, ownerID string) Config[portal.Image, int64] {
	return Config[portal.Image, int64]{
		Name:        "images",
		Fetch:       svc.List,
		IDOf:        func(i portal.Image) int64 { return i.ID },
		SortOptions: FileSortOptions,
		Base:        ownerQuery(ownerID),
		EditFields:  []string{"file_name", "description"},
		Messages:    Messages{Noun: "image"},
	}
}

// DocumentFile adapts svc.Download for Controller.Download.
func DocumentFile(svc portal.DocumentService) func(context.Context, portal.Document) (io.ReadCloser, *portal.Response, error) {
	return func(ctx context.Context, d portal.Document) (io.ReadCloser, *portal.Response, error) {
		return svc.Download(ctx, d.Path)
	}
}

// ImageFile adapts svc.Download for Controller.Download.
func ImageFile(svc portal.ImageService) func(context.Context, portal.Image) (io.ReadCloser, *portal.Response, error) {
	return func(ctx context.Context, im portal.Image) (io.ReadCloser, *portal.Response, error) {
		return svc.Download(ctx, im.Path)
	}
}

func ownerQuery(ownerID string) portal.ListQuery {
	return portal.ListQuery{UserID: ownerID, IncludeUser: ownerID == ""}
}
