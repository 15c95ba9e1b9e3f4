package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/cache"
	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/search"
	"github.com/mmeshcher/shortlinks/internal/slug"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type recordingMirror struct {
	mu     sync.Mutex
	events []string
}

func (m *recordingMirror) LinkCreated(link models.ShortLink) {
	m.record("created:" + link.ID)
}

func (m *recordingMirror) LinkURLUpdated(id, url string) {
	m.record("updated:" + id + ":" + url)
}

func (m *recordingMirror) LinkDeleted(id string) {
	m.record("deleted:" + id)
}

func (m *recordingMirror) record(e string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *recordingMirror) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

type stubKeys struct {
	err error
}

func (k stubKeys) Issue(userID string) (search.ScopedKey, error) {
	if k.err != nil {
		return search.ScopedKey{}, k.err
	}
	return search.ScopedKey{Key: "key-for-" + userID, IndexName: "links", AppID: "APP"}, nil
}

// sequenceGenerator replays fixed candidates, then falls back to random ones.
type sequenceGenerator struct {
	mu    sync.Mutex
	seq   []string
	calls int
}

func (g *sequenceGenerator) Generate(length int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.seq) == 0 {
		return slug.Generate(length)
	}
	next := g.seq[0]
	g.seq = g.seq[1:]
	return next
}

type constantGenerator string

func (c constantGenerator) Generate(int) string { return string(c) }

// flakyStore reports uniqueness violations for the first n inserts even though the
// slug is free, as if another allocator had won a race in between.
type flakyStore struct {
	*repository.MemoryRepository
	conflicts atomic.Int32
	insertErr error
	inserts   atomic.Int32
}

func (f *flakyStore) Insert(ctx context.Context, link models.ShortLink) (models.ShortLink, error) {
	f.inserts.Add(1)
	if f.insertErr != nil {
		return models.ShortLink{}, f.insertErr
	}
	if f.conflicts.Load() > 0 {
		f.conflicts.Add(-1)
		return models.ShortLink{}, repository.ErrSlugExists
	}
	return f.MemoryRepository.Insert(ctx, link)
}

// slowStore blocks lookups until the context is done.
type slowStore struct {
	*repository.MemoryRepository
}

func (s slowStore) FindBySlug(ctx context.Context, _ string) (models.ShortLink, error) {
	<-ctx.Done()
	return models.ShortLink{}, ctx.Err()
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]cache.Entry
	gets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]cache.Entry)}
}

func (c *mapCache) Get(_ context.Context, s string) (cache.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	e, ok := c.entries[s]
	if !ok {
		return cache.Entry{}, cache.ErrMiss
	}
	return e, nil
}

func (c *mapCache) SetURL(_ context.Context, s, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s] = cache.Entry{URL: url}
	return nil
}

func (c *mapCache) SetMissing(_ context.Context, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s] = cache.Entry{Missing: true}
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, s)
	return nil
}

func newTestService(t *testing.T, store LinkStore, opts ...Option) (*LinkService, *recordingMirror) {
	t.Helper()
	mirror := &recordingMirror{}
	return NewLinkService(store, mirror, stubKeys{}, zap.NewNop(), opts...), mirror
}

func TestCreateLink_RandomSlug(t *testing.T) {
	svc, mirror := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		link, err := svc.CreateLink(ctx, "user-a", models.CreateLinkRequest{Link: "https://example.com/page"})
		require.NoError(t, err)

		assert.Len(t, link.Slug, slug.DefaultLength)
		for _, c := range link.Slug {
			assert.True(t, strings.ContainsRune(alphanumeric, c), "unexpected char %q in %s", c, link.Slug)
		}
		assert.NotEmpty(t, link.ID)
		assert.Equal(t, "user-a", link.UserID)
		assert.Equal(t, "https://example.com/page", link.URL)
	}

	assert.Len(t, mirror.Events(), 50)
}

func TestCreateLink_RequestedSlug(t *testing.T) {
	store := repository.NewMemoryRepository()
	svc, mirror := newTestService(t, store)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "user-a", models.CreateLinkRequest{Link: "https://example.com", Slug: "my-slug"})
	require.NoError(t, err)
	assert.Equal(t, "my-slug", link.Slug)

	_, err = svc.CreateLink(ctx, "user-b", models.CreateLinkRequest{Link: "https://other.example", Slug: "my-slug"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = svc.CreateLink(ctx, "user-a", models.CreateLinkRequest{Link: "https://other.example", Slug: "my-slug"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	userB, err := store.FindByOwner(ctx, "user-b")
	require.NoError(t, err)
	assert.Empty(t, userB, "a taken slug must not create a record")

	found, err := store.FindBySlug(ctx, "my-slug")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", found.URL)

	assert.Equal(t, []string{"created:" + link.ID}, mirror.Events())
}

func TestCreateLink_RequestedSlugIsNotRetried(t *testing.T) {
	store := &flakyStore{MemoryRepository: repository.NewMemoryRepository()}
	store.conflicts.Store(1)
	svc, _ := newTestService(t, store)

	_, err := svc.CreateLink(context.Background(), "u", models.CreateLinkRequest{Link: "https://example.com", Slug: "wanted"})

	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.Equal(t, int32(1), store.inserts.Load())
}

func TestCreateLink_Validation(t *testing.T) {
	svc, mirror := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  string
		req     models.CreateLinkRequest
		wantErr error
	}{
		{name: "empty url", userID: "u", req: models.CreateLinkRequest{}, wantErr: ErrEmptyURL},
		{name: "not a url", userID: "u", req: models.CreateLinkRequest{Link: "not a url"}, wantErr: ErrInvalidURL},
		{name: "relative url", userID: "u", req: models.CreateLinkRequest{Link: "/just/a/path"}, wantErr: ErrInvalidURL},
		{name: "slug with slash", userID: "u", req: models.CreateLinkRequest{Link: "https://e.example", Slug: "a/b"}, wantErr: ErrInvalidSlug},
		{name: "reserved slug", userID: "u", req: models.CreateLinkRequest{Link: "https://e.example", Slug: "api"}, wantErr: ErrInvalidSlug},
		{name: "no identity", userID: "", req: models.CreateLinkRequest{Link: "https://e.example"}, wantErr: ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLink(ctx, tt.userID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, mirror.Events())
}

func TestCreateLink_RetriesCollisions(t *testing.T) {
	store := repository.NewMemoryRepository()
	ctx := context.Background()

	svc, _ := newTestService(t, store)
	_, err := svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://taken.example", Slug: "AAAAAAA"})
	require.NoError(t, err)

	gen := &sequenceGenerator{seq: []string{"AAAAAAA", "AAAAAAA", "BBBBBBB"}}
	svc, _ = newTestService(t, store, WithGenerator(gen))

	link, err := svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "BBBBBBB", link.Slug)
	assert.Equal(t, 3, gen.calls)
}

func TestCreateLink_LateUniquenessViolationIsRetried(t *testing.T) {
	store := &flakyStore{MemoryRepository: repository.NewMemoryRepository()}
	store.conflicts.Store(3)
	svc, _ := newTestService(t, store)

	link, err := svc.CreateLink(context.Background(), "u", models.CreateLinkRequest{Link: "https://example.com"})

	require.NoError(t, err)
	assert.Len(t, link.Slug, slug.DefaultLength)
	assert.Equal(t, int32(4), store.inserts.Load())
}

func TestCreateLink_AllocationExhausted(t *testing.T) {
	store := repository.NewMemoryRepository()
	ctx := context.Background()

	svc, _ := newTestService(t, store)
	_, err := svc.CreateLink(ctx, "owner", models.CreateLinkRequest{Link: "https://taken.example", Slug: "Collide"})
	require.NoError(t, err)

	svc, mirror := newTestService(t, store, WithGenerator(constantGenerator("Collide")))

	_, err = svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://example.com"})
	assert.ErrorIs(t, err, ErrAllocationExhausted)

	links, err := store.FindByOwner(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, links, "no partial record may remain after exhaustion")
	assert.Empty(t, mirror.Events())
}

func TestCreateLink_AllocationUsesExactlyTenAttempts(t *testing.T) {
	store := &flakyStore{MemoryRepository: repository.NewMemoryRepository()}
	store.conflicts.Store(100)
	svc, _ := newTestService(t, store)

	_, err := svc.CreateLink(context.Background(), "u", models.CreateLinkRequest{Link: "https://example.com"})

	assert.ErrorIs(t, err, ErrAllocationExhausted)
	assert.Equal(t, int32(MaxAllocationAttempts), store.inserts.Load())
}

func TestCreateLink_StoreFailureIsNotRetried(t *testing.T) {
	boom := errors.New("connection reset")
	store := &flakyStore{MemoryRepository: repository.NewMemoryRepository(), insertErr: boom}
	svc, mirror := newTestService(t, store)

	_, err := svc.CreateLink(context.Background(), "u", models.CreateLinkRequest{Link: "https://example.com"})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrAllocationExhausted)
	assert.Equal(t, int32(1), store.inserts.Load())
	assert.Empty(t, mirror.Events())
}

func TestResolve_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://example.com/page"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		dest, err := svc.Resolve(ctx, link.Slug)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/page", dest)
	}

	_, err = svc.Resolve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_AfterUpdateAndDelete(t *testing.T) {
	for _, withCache := range []bool{false, true} {
		name := "store only"
		if withCache {
			name = "with cache"
		}

		t.Run(name, func(t *testing.T) {
			var opts []Option
			if withCache {
				opts = append(opts, WithCache(newMapCache()))
			}
			svc, mirror := newTestService(t, repository.NewMemoryRepository(), opts...)
			ctx := context.Background()

			link, err := svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://example.com/old"})
			require.NoError(t, err)

			dest, err := svc.Resolve(ctx, link.Slug)
			require.NoError(t, err)
			require.Equal(t, "https://example.com/old", dest)

			require.NoError(t, svc.UpdateLinkURL(ctx, "u", models.UpdateLinkRequest{Slug: link.Slug, URL: "https://example.com/new"}))

			dest, err = svc.Resolve(ctx, link.Slug)
			require.NoError(t, err)
			assert.Equal(t, "https://example.com/new", dest)

			require.NoError(t, svc.DeleteLink(ctx, "u", models.DeleteLinkRequest{Slug: link.Slug}))

			_, err = svc.Resolve(ctx, link.Slug)
			assert.ErrorIs(t, err, ErrNotFound)

			assert.Equal(t, []string{
				"created:" + link.ID,
				"updated:" + link.ID + ":https://example.com/new",
				"deleted:" + link.ID,
			}, mirror.Events())
		})
	}
}

func TestResolve_CacheServesHitsAndMisses(t *testing.T) {
	c := newMapCache()
	store := repository.NewMemoryRepository()
	svc, _ := newTestService(t, store, WithCache(c))
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "later")
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, c.entries["later"].Missing)

	_, err = svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://example.com/later", Slug: "later"})
	require.NoError(t, err)

	dest, err := svc.Resolve(ctx, "later")
	require.NoError(t, err, "creating a link must clear a cached miss")
	assert.Equal(t, "https://example.com/later", dest)
	assert.Equal(t, cache.Entry{URL: "https://example.com/later"}, c.entries["later"])
}

func TestResolve_TimesOut(t *testing.T) {
	store := slowStore{MemoryRepository: repository.NewMemoryRepository()}
	svc, _ := newTestService(t, store, WithResolveTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := svc.Resolve(context.Background(), "anything")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestOwnershipIsolation(t *testing.T) {
	store := repository.NewMemoryRepository()
	svc, mirror := newTestService(t, store)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "owner", models.CreateLinkRequest{Link: "https://example.com/mine"})
	require.NoError(t, err)

	err = svc.UpdateLinkURL(ctx, "intruder", models.UpdateLinkRequest{Slug: link.Slug, URL: "https://evil.example"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteLink(ctx, "intruder", models.DeleteLinkRequest{Slug: link.Slug})
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteLink(ctx, "intruder", models.DeleteLinkRequest{Slug: "does-not-exist"})
	assert.ErrorIs(t, err, ErrNotFound, "missing and foreign links look the same")

	dest, err := svc.Resolve(ctx, link.Slug)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/mine", dest)

	assert.Equal(t, []string{"created:" + link.ID}, mirror.Events())
}

func TestUpdateLinkURL_Validation(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	err := svc.UpdateLinkURL(ctx, "u", models.UpdateLinkRequest{Slug: "x", URL: "nope"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	err = svc.UpdateLinkURL(ctx, "u", models.UpdateLinkRequest{Slug: "x"})
	assert.ErrorIs(t, err, ErrEmptyURL)

	err = svc.UpdateLinkURL(ctx, "u", models.UpdateLinkRequest{URL: "https://example.com"})
	assert.ErrorIs(t, err, ErrInvalidSlug)

	err = svc.DeleteLink(ctx, "u", models.DeleteLinkRequest{})
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestListLinks(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	for _, s := range []string{"one", "two", "three"} {
		_, err := svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://example.com/" + s, Slug: s})
		require.NoError(t, err)
	}
	_, err := svc.CreateLink(ctx, "other", models.CreateLinkRequest{Link: "https://example.com/x"})
	require.NoError(t, err)

	links, err := svc.ListLinks(ctx, "u")
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, "one", links[0].Slug)
	assert.Equal(t, "three", links[2].Slug)

	_, err = svc.ListLinks(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSlugAvailable(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())
	ctx := context.Background()

	ok, err := svc.SlugAvailable(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.CreateLink(ctx, "u", models.CreateLinkRequest{Link: "https://example.com", Slug: "fresh"})
	require.NoError(t, err)

	ok, err = svc.SlugAvailable(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SlugAvailable(ctx, "auth")
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestSearchKey(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository())

	key, err := svc.SearchKey("user-1")
	require.NoError(t, err)
	assert.Equal(t, "key-for-user-1", key.Key)

	_, err = svc.SearchKey("")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	failing := NewLinkService(repository.NewMemoryRepository(), &recordingMirror{}, stubKeys{err: errors.New("no key")}, zap.NewNop())
	_, err = failing.SearchKey("user-1")
	assert.Error(t, err)
}

func TestShortURL(t *testing.T) {
	svc, _ := newTestService(t, repository.NewMemoryRepository(), WithBaseURL("https://sho.rt"))
	assert.Equal(t, "https://sho.rt/abc1234", svc.ShortURL("abc1234"))
}
