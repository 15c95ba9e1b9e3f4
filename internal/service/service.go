package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/cache"
	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/search"
	"github.com/mmeshcher/shortlinks/internal/slug"
)

const (
	MaxAllocationAttempts = 10
	DefaultResolveTimeout = 500 * time.Millisecond
)

var (
	ErrEmptyURL            = errors.New("empty url")
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidSlug         = errors.New("invalid slug")
	ErrSlugTaken           = errors.New("slug already exists")
	ErrAllocationExhausted = errors.New("failed to generate unique slug")
	ErrNotFound            = errors.New("short link not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
)

// LinkStore is the primary, authoritative storage of links.
type LinkStore interface {
	Insert(ctx context.Context, link models.ShortLink) (models.ShortLink, error)
	FindBySlug(ctx context.Context, slug string) (models.ShortLink, error)
	FindOwnedBySlug(ctx context.Context, userID, slug string) (models.ShortLink, error)
	FindByOwner(ctx context.Context, userID string) ([]models.ShortLink, error)
	UpdateURL(ctx context.Context, id, userID, url string) error
	DeleteByID(ctx context.Context, id, userID string) error
	CountBySlug(ctx context.Context, slug string) (int, error)
	Ping(ctx context.Context) error
}

type RedirectCache interface {
	Get(ctx context.Context, slug string) (cache.Entry, error)
	SetURL(ctx context.Context, slug, url string) error
	SetMissing(ctx context.Context, slug string) error
	Invalidate(ctx context.Context, slug string) error
}

// Mirror receives committed changes. Implementations must not block.
type Mirror interface {
	LinkCreated(link models.ShortLink)
	LinkURLUpdated(id, url string)
	LinkDeleted(id string)
}

type KeyIssuer interface {
	Issue(userID string) (search.ScopedKey, error)
}

type LinkService struct {
	store          LinkStore
	mirror         Mirror
	keys           KeyIssuer
	cache          RedirectCache
	generator      slug.Generator
	validate       *validator.Validate
	logger         *zap.Logger
	baseURL        string
	slugLength     int
	maxAttempts    int
	resolveTimeout time.Duration
}

type Option func(*LinkService)

// WithCache puts a redirect cache in front of the store on the resolve path.
func WithCache(c RedirectCache) Option {
	return func(s *LinkService) { s.cache = c }
}

func WithGenerator(g slug.Generator) Option {
	return func(s *LinkService) { s.generator = g }
}

func WithBaseURL(baseURL string) Option {
	return func(s *LinkService) { s.baseURL = baseURL }
}

func WithResolveTimeout(d time.Duration) Option {
	return func(s *LinkService) {
		if d > 0 {
			s.resolveTimeout = d
		}
	}
}

func NewLinkService(store LinkStore, mirror Mirror, keys KeyIssuer, logger *zap.Logger, opts ...Option) *LinkService {
	s := &LinkService{
		store:          store,
		mirror:         mirror,
		keys:           keys,
		generator:      slug.NewRandomGenerator(),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger,
		baseURL:        "http://localhost:8080",
		slugLength:     slug.DefaultLength,
		maxAttempts:    MaxAllocationAttempts,
		resolveTimeout: DefaultResolveTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ShortURL is the public redirect address of slug.
func (s *LinkService) ShortURL(slugValue string) string {
	shortURL, err := url.JoinPath(s.baseURL, slugValue)
	if err != nil {
		return s.baseURL + "/" + slugValue
	}
	return shortURL
}

func (s *LinkService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// validationError maps validator failures onto the service's validation errors.
func (s *LinkService) validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrInvalidURL
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Slug":
		return ErrInvalidSlug
	default:
		if fe.Tag() == "required" {
			return ErrEmptyURL
		}
		return ErrInvalidURL
	}
}

func (s *LinkService) checkStruct(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return s.validationError(err)
	}
	return nil
}

// invalidate drops a cached redirect after a write; a failure only delays visibility
// until the cache entry expires.
func (s *LinkService) invalidate(ctx context.Context, slugValue string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slugValue); err != nil {
		s.logger.Warn("Failed to invalidate redirect cache",
			zap.String("slug", slugValue),
			zap.Error(err))
	}
}
