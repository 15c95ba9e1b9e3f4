package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shortlinks/internal/models"
)

type linkStore interface {
	Insert(ctx context.Context, link models.ShortLink) (models.ShortLink, error)
	FindBySlug(ctx context.Context, slug string) (models.ShortLink, error)
	FindOwnedBySlug(ctx context.Context, userID, slug string) (models.ShortLink, error)
	FindByOwner(ctx context.Context, userID string) ([]models.ShortLink, error)
	All(ctx context.Context, fn func([]models.ShortLink) error, pageSize int) error
	UpdateURL(ctx context.Context, id, userID, url string) error
	DeleteByID(ctx context.Context, id, userID string) error
	CountBySlug(ctx context.Context, slug string) (int, error)
	Ping(ctx context.Context) error
}

func newLink(slug, url, userID string) models.ShortLink {
	return models.ShortLink{
		ID:     uuid.NewString(),
		Slug:   slug,
		URL:    url,
		UserID: userID,
	}
}

// runStoreContract exercises behaviour every link store must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) linkStore) {
	ctx := context.Background()

	t.Run("insert and find by slug", func(t *testing.T) {
		store := newStore(t)

		created, err := store.Insert(ctx, newLink("abc1234", "https://example.com/page", "user-a"))
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		found, err := store.FindBySlug(ctx, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "https://example.com/page", found.URL)
		assert.Equal(t, "user-a", found.UserID)
	})

	t.Run("duplicate slug is rejected", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Insert(ctx, newLink("taken", "https://a.example", "user-a"))
		require.NoError(t, err)

		_, err = store.Insert(ctx, newLink("taken", "https://b.example", "user-b"))
		assert.ErrorIs(t, err, ErrSlugExists)

		found, err := store.FindBySlug(ctx, "taken")
		require.NoError(t, err)
		assert.Equal(t, "https://a.example", found.URL)
	})

	t.Run("concurrent inserts of one slug have a single winner", func(t *testing.T) {
		store := newStore(t)

		const n = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
			losers  int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.Insert(ctx, newLink("race", fmt.Sprintf("https://e.example/%d", i), "user-a"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case assert.ErrorIs(t, err, ErrSlugExists):
					losers++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		assert.Equal(t, n-1, losers)
	})

	t.Run("missing slug", func(t *testing.T) {
		store := newStore(t)

		_, err := store.FindBySlug(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)

		count, err := store.CountBySlug(ctx, "nope")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("find by owner keeps insertion order", func(t *testing.T) {
		store := newStore(t)

		for i, s := range []string{"first", "second", "third"} {
			_, err := store.Insert(ctx, newLink(s, fmt.Sprintf("https://o.example/%d", i), "owner"))
			require.NoError(t, err)
		}
		_, err := store.Insert(ctx, newLink("other", "https://o.example/x", "someone-else"))
		require.NoError(t, err)

		links, err := store.FindByOwner(ctx, "owner")
		require.NoError(t, err)
		require.Len(t, links, 3)
		assert.Equal(t, "first", links[0].Slug)
		assert.Equal(t, "second", links[1].Slug)
		assert.Equal(t, "third", links[2].Slug)

		none, err := store.FindByOwner(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("owner scoped update", func(t *testing.T) {
		store := newStore(t)

		link, err := store.Insert(ctx, newLink("upd", "https://old.example", "owner"))
		require.NoError(t, err)

		err = store.UpdateURL(ctx, link.ID, "intruder", "https://evil.example")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, store.UpdateURL(ctx, link.ID, "owner", "https://new.example"))

		found, err := store.FindBySlug(ctx, "upd")
		require.NoError(t, err)
		assert.Equal(t, "https://new.example", found.URL)
		assert.Equal(t, "upd", found.Slug)

		err = store.UpdateURL(ctx, uuid.NewString(), "owner", "https://new.example")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("owner scoped lookup", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Insert(ctx, newLink("mine", "https://m.example", "owner"))
		require.NoError(t, err)

		_, err = store.FindOwnedBySlug(ctx, "intruder", "mine")
		assert.ErrorIs(t, err, ErrNotFound)

		found, err := store.FindOwnedBySlug(ctx, "owner", "mine")
		require.NoError(t, err)
		assert.Equal(t, "https://m.example", found.URL)
	})

	t.Run("owner scoped delete", func(t *testing.T) {
		store := newStore(t)

		link, err := store.Insert(ctx, newLink("del", "https://d.example", "owner"))
		require.NoError(t, err)

		assert.ErrorIs(t, store.DeleteByID(ctx, link.ID, "intruder"), ErrNotFound)

		count, err := store.CountBySlug(ctx, "del")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, store.DeleteByID(ctx, link.ID, "owner"))
		assert.ErrorIs(t, store.DeleteByID(ctx, link.ID, "owner"), ErrNotFound)

		_, err = store.FindBySlug(ctx, "del")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = store.Insert(ctx, newLink("del", "https://again.example", "owner"))
		assert.NoError(t, err, "a deleted slug can be claimed again")
	})

	t.Run("all pages through every link", func(t *testing.T) {
		store := newStore(t)

		for i := 0; i < 7; i++ {
			_, err := store.Insert(ctx, newLink(fmt.Sprintf("s%d", i), "https://p.example", fmt.Sprintf("u%d", i%2)))
			require.NoError(t, err)
		}

		var pages, total int
		err := store.All(ctx, func(page []models.ShortLink) error {
			pages++
			total += len(page)
			return nil
		}, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, pages)
		assert.Equal(t, 7, total)
	})

	t.Run("ping", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Ping(ctx))
	})
}
