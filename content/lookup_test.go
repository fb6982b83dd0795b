package content

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/reckit-rt/core"
	"github.com/rushteam/reckit-rt/store"
)

func newTestCatalog(t *testing.T) *StoreCatalog {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	c := NewStoreCatalog(s)

	ctx := context.Background()
	for _, it := range []CatalogItem{
		{ItemID: "100", Category: "phones", Popularity: 10},
		{ItemID: "101", Category: "phones", Popularity: 30},
		{ItemID: "102", Category: "phones", Popularity: 20},
		{ItemID: "103", Category: "phones", Popularity: 20},
		{ItemID: "200", Category: "books", Popularity: 5},
		{ItemID: "300"},
	} {
		require.NoError(t, c.Put(ctx, it))
	}
	return c
}

func TestCategoryLookup_Candidates(t *testing.T) {
	c := newTestCatalog(t)
	lookup := NewCategoryLookup(c, c)

	tests := []struct {
		name string
		item string
		n    int
		want []string
	}{
		{name: "excludes anchor, ordered by popularity", item: "101", n: 10, want: []string{"102", "103", "100"}},
		{name: "anchor not counted against n", item: "101", n: 2, want: []string{"102", "103"}},
		{name: "anchor in middle", item: "102", n: 2, want: []string{"101", "103"}},
		{name: "single item category", item: "200", n: 5, want: []string{}},
		{name: "no category", item: "300", n: 5, want: nil},
		{name: "unknown item", item: "999", n: 5, want: nil},
		{name: "zero n", item: "101", n: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookup.Candidates(context.Background(), tt.item, tt.n)
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	calls := 0
	failing := LookupFunc(func(ctx context.Context, itemID string, n int) ([]string, error) {
		calls++
		return nil, errors.New("catalog down")
	})
	b := NewBreaker(failing, BreakerConfig{FailureThreshold: 2}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := b.Candidates(context.Background(), "1", 3)
		require.Error(t, err)
		assert.True(t, core.IsDegraded(err))
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_PassesThrough(t *testing.T) {
	ok := LookupFunc(func(ctx context.Context, itemID string, n int) ([]string, error) {
		return []string{"a", "b"}, nil
	})
	b := NewBreaker(ok, BreakerConfig{}, zerolog.Nop())

	got, err := b.Candidates(context.Background(), "1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, "closed", b.State())
}
