// Package document provides the DocumentService implementation.
//
// Only PDF files are accepted for upload.
package document

import (
	portal "github.com/chimerakang/portal-go"
	"github.com/chimerakang/portal-go/api"
	"github.com/chimerakang/portal-go/internal/media"
)

// MediaType is the only accepted upload type.
const MediaType = "application/pdf"

var routes = media.Endpoints{
	List:   "/documents",
	Upload: "/documents/upload",
	Item:   "/documents",
	Bulk:   "/documents/bulk",
}

// Service implements portal.DocumentService.
type Service struct {
	*media.Service[portal.Document]
}

var _ portal.DocumentService = (*Service)(nil)

// New creates a DocumentService backed by doer.
func New(doer api.Doer) *Service {
	return &Service{media.New[portal.Document](doer, routes, Accept, "document")}
}

// Accept reports whether mediaType may be uploaded as a document.
func Accept(mediaType string) bool { return mediaType == MediaType }
