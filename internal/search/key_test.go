package search

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerFilter(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{name: "plain", userID: "user-1", want: `userId:"user-1"`},
		{name: "operator injection", userID: `x" OR userId:"y`, want: `userId:"x\" OR userId:\"y"`},
		{name: "backslash", userID: `a\b`, want: `userId:"a\\b"`},
		{name: "spaces", userID: "a b", want: `userId:"a b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OwnerFilter(tt.userID))
		})
	}
}

func TestKeyIssuer_Issue(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	newIssuer := func() *KeyIssuer {
		k := NewKeyIssuer("APPID", "links", "search-only-key", time.Hour)
		k.now = func() time.Time { return fixed }
		return k
	}

	t.Run("carries index coordinates", func(t *testing.T) {
		key, err := newIssuer().Issue("user-1")
		require.NoError(t, err)

		assert.Equal(t, "APPID", key.AppID)
		assert.Equal(t, "links", key.IndexName)
		assert.NotEmpty(t, key.Key)
	})

	t.Run("embeds expiry and owner", func(t *testing.T) {
		key, err := newIssuer().Issue("user-1")
		require.NoError(t, err)

		decoded, err := base64.StdEncoding.DecodeString(key.Key)
		require.NoError(t, err)

		assert.Contains(t, string(decoded), strconv.FormatInt(fixed.Add(time.Hour).Unix(), 10))
		assert.Contains(t, string(decoded), "user-1")
	})

	t.Run("deterministic for fixed inputs", func(t *testing.T) {
		a, err := newIssuer().Issue("user-1")
		require.NoError(t, err)
		b, err := newIssuer().Issue("user-1")
		require.NoError(t, err)

		assert.Equal(t, a, b)
	})

	t.Run("differs per owner", func(t *testing.T) {
		a, err := newIssuer().Issue("user-1")
		require.NoError(t, err)
		b, err := newIssuer().Issue("user-2")
		require.NoError(t, err)

		assert.NotEqual(t, a.Key, b.Key)
	})

	t.Run("differs per signing key", func(t *testing.T) {
		other := NewKeyIssuer("APPID", "links", "another-key", time.Hour)
		other.now = func() time.Time { return fixed }

		a, err := newIssuer().Issue("user-1")
		require.NoError(t, err)
		b, err := other.Issue("user-1")
		require.NoError(t, err)

		assert.NotEqual(t, a.Key, b.Key)
	})

	t.Run("empty owner", func(t *testing.T) {
		_, err := newIssuer().Issue("")
		assert.ErrorIs(t, err, ErrEmptyOwner)
	})

	t.Run("no search key configured", func(t *testing.T) {
		k := NewKeyIssuer("APPID", "links", "", time.Hour)
		_, err := k.Issue("user-1")
		assert.ErrorIs(t, err, ErrNoSearchKey)
	})

	t.Run("default ttl", func(t *testing.T) {
		k := NewKeyIssuer("APPID", "links", "key", 0)
		assert.Equal(t, DefaultKeyTTL, k.ttl)
	})
}
