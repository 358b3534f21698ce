package forum

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps upserts by slug
type memStore struct {
	categories map[string]Category
	tags       map[string]Tag
	tools      map[string]Tool
	failTags   bool
}

func newMemStore() *memStore {
	return &memStore{categories: map[string]Category{}, tags: map[string]Tag{}, tools: map[string]Tool{}}
}

func (m *memStore) UpsertCategory(ctx context.Context, c *Category) error {
	m.categories[c.Slug] = *c
	return nil
}

func (m *memStore) UpsertTag(ctx context.Context, t *Tag) error {
	if m.failTags {
		return errors.New("db down")
	}
	m.tags[t.Slug] = *t
	return nil
}

func (m *memStore) UpsertTool(ctx context.Context, t *Tool) error {
	m.tools[t.Slug] = *t
	return nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]*CategorySummary, error) { return nil, nil }
func (m *memStore) ListTags(ctx context.Context) ([]*Tag, error)                   { return nil, nil }
func (m *memStore) ListTools(ctx context.Context) ([]*Tool, error)                 { return nil, nil }
func (m *memStore) CountThreads(ctx context.Context) (int64, error)                { return 0, nil }
func (m *memStore) CountUsers(ctx context.Context) (int64, error)                  { return 0, nil }
func (m *memStore) RecentThreads(ctx context.Context, limit int) ([]*ThreadSummary, error) {
	return nil, nil
}

func TestSeed(t *testing.T) {
	store := newMemStore()
	res, err := Seed(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, SeedResult{Categories: 10, Tags: 32, Tools: 6}, res)
	assert.Len(t, store.categories, 10)
	assert.Len(t, store.tags, 32)
	assert.Len(t, store.tools, 6)
	assert.Equal(t, "Storage & Drives", store.categories["storage"].Name)
	assert.Equal(t, 10, store.categories["tool-feedback"].Order)
	assert.Equal(t, "diagnostics", store.tools["network-doctor"].Category)
}

func TestSeedIsIdempotent(t *testing.T) {
	store := newMemStore()
	_, err := Seed(context.Background(), store)
	require.NoError(t, err)
	_, err = Seed(context.Background(), store)
	require.NoError(t, err)

	assert.Len(t, store.categories, len(DefaultCategories))
	assert.Len(t, store.tags, len(DefaultTags))
	assert.Len(t, store.tools, len(DefaultTools))
}

func TestSeedStopsOnError(t *testing.T) {
	store := newMemStore()
	store.failTags = true

	res, err := Seed(context.Background(), store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag boot-issue")
	assert.Equal(t, 10, res.Categories)
	assert.Zero(t, res.Tools)
}

func TestDefaultsHaveUniqueSlugs(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range DefaultCategories {
		assert.False(t, seen["c:"+c.Slug], c.Slug)
		seen["c:"+c.Slug] = true
	}
	for _, tag := range DefaultTags {
		assert.False(t, seen["t:"+tag.Slug], tag.Slug)
		seen["t:"+tag.Slug] = true
	}
}

func TestAuthorDisplayName(t *testing.T) {
	var nobody *Author
	assert.Equal(t, "Unknown", nobody.DisplayName())
	assert.Equal(t, "Anonymous", (&Author{}).DisplayName())
	assert.Equal(t, "Jo", (&Author{Name: "Jo"}).DisplayName())
	assert.Equal(t, "jo_fixes", (&Author{Name: "Jo", Handle: "jo_fixes"}).DisplayName())
}
