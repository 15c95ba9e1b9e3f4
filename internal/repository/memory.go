package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mmeshcher/shortlinks/internal/models"
)

// MemoryRepository keeps links in process memory. The slug map under a single mutex
// plays the role of the unique constraint.
type MemoryRepository struct {
	mu     sync.RWMutex
	bySlug map[string]*memoryRecord
	byID   map[string]*memoryRecord
	seq    int64
	now    func() time.Time
}

type memoryRecord struct {
	seq  int64
	link models.ShortLink
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bySlug: make(map[string]*memoryRecord),
		byID:   make(map[string]*memoryRecord),
		now:    time.Now,
	}
}

func (m *MemoryRepository) Insert(ctx context.Context, link models.ShortLink) (models.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return models.ShortLink{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySlug[link.Slug]; exists {
		return models.ShortLink{}, ErrSlugExists
	}

	m.seq++
	link.CreatedAt = m.now().UTC()
	rec := &memoryRecord{seq: m.seq, link: link}
	m.bySlug[link.Slug] = rec
	m.byID[link.ID] = rec

	return link, nil
}

func (m *MemoryRepository) FindBySlug(ctx context.Context, slug string) (models.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return models.ShortLink{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.bySlug[slug]
	if !ok {
		return models.ShortLink{}, ErrNotFound
	}
	return rec.link, nil
}

func (m *MemoryRepository) FindOwnedBySlug(ctx context.Context, userID, slug string) (models.ShortLink, error) {
	link, err := m.FindBySlug(ctx, slug)
	if err != nil {
		return models.ShortLink{}, err
	}
	if link.UserID != userID {
		return models.ShortLink{}, ErrNotFound
	}
	return link, nil
}

func (m *MemoryRepository) FindByOwner(ctx context.Context, userID string) ([]models.ShortLink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	links := make([]models.ShortLink, 0)
	for _, rec := range m.sorted() {
		if rec.link.UserID == userID {
			links = append(links, rec.link)
		}
	}
	return links, nil
}

func (m *MemoryRepository) All(ctx context.Context, fn func([]models.ShortLink) error, pageSize int) error {
	if pageSize <= 0 {
		pageSize = 1000
	}

	m.mu.RLock()
	records := m.sorted()
	links := make([]models.ShortLink, 0, len(records))
	for _, rec := range records {
		links = append(links, rec.link)
	}
	m.mu.RUnlock()

	for start := 0; start < len(links); start += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+pageSize, len(links))
		if err := fn(links[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryRepository) UpdateURL(ctx context.Context, id, userID, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok || rec.link.UserID != userID {
		return ErrNotFound
	}
	rec.link.URL = url
	return nil
}

func (m *MemoryRepository) DeleteByID(ctx context.Context, id, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok || rec.link.UserID != userID {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.bySlug, rec.link.Slug)
	return nil
}

func (m *MemoryRepository) CountBySlug(ctx context.Context, slug string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.bySlug[slug]; ok {
		return 1, nil
	}
	return 0, nil
}

func (m *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryRepository) Close() error {
	return nil
}

// sorted returns records in insertion order. Callers must hold mu.
func (m *MemoryRepository) sorted() []*memoryRecord {
	records := make([]*memoryRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *memoryRecord) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return records
}
