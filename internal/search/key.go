package search

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
)

const DefaultKeyTTL = time.Hour

var (
	ErrEmptyOwner  = errors.New("empty owner id")
	ErrNoSearchKey = errors.New("search key not configured")
)

// ScopedKey lets a client query the index directly, restricted to one owner.
type ScopedKey struct {
	Key       string
	IndexName string
	AppID     string
}

// KeyIssuer derives secured search keys from a private search-only key.
type KeyIssuer struct {
	appID     string
	indexName string
	searchKey string
	ttl       time.Duration
	now       func() time.Time
}

func NewKeyIssuer(appID, indexName, searchKey string, ttl time.Duration) *KeyIssuer {
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}

	return &KeyIssuer{
		appID:     appID,
		indexName: indexName,
		searchKey: searchKey,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue returns a key whose filter only matches documents owned by userID and which
// expires after the configured TTL. The filter is embedded in the signed key, so the
// client cannot loosen it.
func (k *KeyIssuer) Issue(userID string) (ScopedKey, error) {
	if userID == "" {
		return ScopedKey{}, ErrEmptyOwner
	}
	if k.searchKey == "" {
		return ScopedKey{}, ErrNoSearchKey
	}

	validUntil := k.now().Add(k.ttl).Truncate(time.Second)

	key, err := search.GenerateSecuredAPIKey(k.searchKey,
		opt.Filters(OwnerFilter(userID)),
		opt.ValidUntil(validUntil),
	)
	if err != nil {
		return ScopedKey{}, fmt.Errorf("generate secured key: %w", err)
	}

	return ScopedKey{
		Key:       key,
		IndexName: k.indexName,
		AppID:     k.appID,
	}, nil
}

// OwnerFilter builds a filter expression matching exactly one owner. The value is quoted
// and escaped so ids containing spaces, quotes or boolean operators stay a single literal.
func OwnerFilter(userID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(userID)
	return ownerAttribute + `:"` + escaped + `"`
}
