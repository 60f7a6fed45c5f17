// Package image provides the ImageService implementation.
package image

import (
	"strings"

	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
	"github.com/chimerakang/portal-go/internal/media"
)

// Listing and upload live under /documents; item routes under /images.
var routes = media.Endpoints{
	List:   "/documents/images",
	Upload: "/documents/image",
	Item:   "/images",
	Bulk:   "/images/bulk",
}

// Service implements portal.ImageService.
type Service struct {
	*media.Service[portal.Image]
}

var _ portal.ImageService = (*Service)(nil)

// New creates an ImageService backed by doer.
func New(doer api.Doer) *Service {
	return &Service{media.New[portal.Image](doer, routes, Accept, "image")}
}

// Accept reports whether mediaType is an image type.
func Accept(mediaType string) bool { return strings.HasPrefix(mediaType, "image/") }
