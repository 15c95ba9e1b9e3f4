// Package search keeps a hosted search index in step with the link store.
//
// The index is a derived, eventually consistent copy: Mirror applies changes
// asynchronously after the primary write has committed and only logs failures.
// KeyIssuer hands clients a secured key that can only ever match their own links.
package search

import (
	"context"
	"time"

	"github.com/mmeshcher/shortlinks/internal/models"
)

// Document is the search record of a link. ObjectID is the link id.
type Document struct {
	ObjectID  string `json:"objectID"`
	Slug      string `json:"slug"`
	URL       string `json:"url"`
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
}

func DocumentFromLink(link models.ShortLink) Document {
	return Document{
		ObjectID:  link.ID,
		Slug:      link.Slug,
		URL:       link.URL,
		UserID:    link.UserID,
		CreatedAt: unixOrZero(link.CreatedAt),
	}
}

// Index is the write side of the search service.
type Index interface {
	SaveObject(ctx context.Context, doc Document) error
	SaveObjects(ctx context.Context, docs []Document) error
	PartialUpdateURL(ctx context.Context, objectID, url string) error
	DeleteObject(ctx context.Context, objectID string) error
	// ConfigureFaceting makes the owner attribute usable in filters.
	ConfigureFaceting(ctx context.Context) error
}

// NopIndex discards every change. It is used when no search service is configured.
type NopIndex struct{}

func (NopIndex) SaveObject(context.Context, Document) error             { return nil }
func (NopIndex) SaveObjects(context.Context, []Document) error          { return nil }
func (NopIndex) PartialUpdateURL(context.Context, string, string) error { return nil }
func (NopIndex) DeleteObject(context.Context, string) error             { return nil }
func (NopIndex) ConfigureFaceting(context.Context) error                { return nil }

var _ Index = NopIndex{}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
