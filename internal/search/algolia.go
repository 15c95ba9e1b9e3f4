package search

import (
	"context"
	"fmt"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
)

const ownerAttribute = "userId"

// AlgoliaIndex writes documents to an Algolia index using an admin key.
// Every write waits for the indexing task so a returned nil means the change is searchable.
type AlgoliaIndex struct {
	index *search.Index
}

func NewAlgoliaIndex(appID, adminAPIKey, indexName string) *AlgoliaIndex {
	client := search.NewClient(appID, adminAPIKey)
	return &AlgoliaIndex{index: client.InitIndex(indexName)}
}

func (a *AlgoliaIndex) SaveObject(ctx context.Context, doc Document) error {
	res, err := a.index.SaveObject(doc, ctx)
	if err != nil {
		return fmt.Errorf("save object %s: %w", doc.ObjectID, err)
	}
	if err := res.Wait(ctx); err != nil {
		return fmt.Errorf("wait save object %s: %w", doc.ObjectID, err)
	}
	return nil
}

func (a *AlgoliaIndex) SaveObjects(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	res, err := a.index.SaveObjects(docs, ctx)
	if err != nil {
		return fmt.Errorf("save %d objects: %w", len(docs), err)
	}
	if err := res.Wait(ctx); err != nil {
		return fmt.Errorf("wait save objects: %w", err)
	}
	return nil
}

// PartialUpdateURL changes only the url attribute. A missing record is not created,
// so a lost upsert is never replaced by a record without slug and owner.
func (a *AlgoliaIndex) PartialUpdateURL(ctx context.Context, objectID, url string) error {
	update := map[string]string{
		"objectID": objectID,
		"url":      url,
	}

	res, err := a.index.PartialUpdateObject(update, opt.CreateIfNotExists(false), ctx)
	if err != nil {
		return fmt.Errorf("partial update %s: %w", objectID, err)
	}
	if err := res.Wait(ctx); err != nil {
		return fmt.Errorf("wait partial update %s: %w", objectID, err)
	}
	return nil
}

func (a *AlgoliaIndex) DeleteObject(ctx context.Context, objectID string) error {
	res, err := a.index.DeleteObject(objectID, ctx)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", objectID, err)
	}
	if err := res.Wait(ctx); err != nil {
		return fmt.Errorf("wait delete object %s: %w", objectID, err)
	}
	return nil
}

func (a *AlgoliaIndex) ConfigureFaceting(ctx context.Context) error {
	res, err := a.index.SetSettings(search.Settings{
		AttributesForFaceting: opt.AttributesForFaceting("filterOnly(" + ownerAttribute + ")"),
	}, ctx)
	if err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	if err := res.Wait(ctx); err != nil {
		return fmt.Errorf("wait set settings: %w", err)
	}
	return nil
}

var _ Index = (*AlgoliaIndex)(nil)
