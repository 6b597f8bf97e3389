package wiki

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryandielhenn/zephyrwiki/pkg/store"
	"github.com/ryandielhenn/zephyrwiki/pkg/store/memstore"
)

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
}

var sc = NewScope("")

func TestNewScopeDefaults(t *testing.T) {
	assert.Equal(t, DefaultWikiID, NewScope("").WikiID)
	assert.Equal(t, DefaultWikiID, NewScope("  ").WikiID)
	assert.Equal(t, "team", NewScope("team").WikiID)
}

func TestPolicyForPath(t *testing.T) {
	assert.Equal(t, PolicyAdmin, PolicyForPath("admin/secret"))
	assert.Equal(t, PolicyPublic, PolicyForPath("administrator"))
	assert.Equal(t, PolicyPublic, PolicyForPath("docs/admin/x"))
	assert.Equal(t, PolicyPublic, PolicyForPath(""))
}

func TestCreatePageDefaults(t *testing.T) {
	ctx := context.Background()
	repo := NewPageRepository(memstore.New(), nil)
	repo.newID = func() string { return "page-1" }

	p, err := repo.CreatePage(ctx, sc, NewPage{Title: "T", Content: "C", Tags: []string{"a", "b", "a", " "}})
	require.NoError(t, err)

	assert.Equal(t, "page-1", p.ID)
	assert.Equal(t, "page-1", p.Path, "path defaults to id")
	assert.Equal(t, PolicyPublic, p.PolicyID)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Empty(t, p.Origin)

	got, err := repo.GetPageByID(ctx, sc, "page-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "C", got.Content)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestAdminPartitionRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	repo := NewPageRepository(b, nil)
	clock := newClock()
	repo.now = clock.Now

	p, err := repo.CreatePage(ctx, sc, NewPage{Title: "T", Content: "C", Path: "admin/secret"})
	require.NoError(t, err)
	assert.Equal(t, PolicyAdmin, p.PolicyID)

	adminRows, _ := b.Table(sc.WikiID, "Content_admin").Scan(ctx)
	publicRows, _ := b.Table(sc.WikiID, "Content_public").Scan(ctx)
	require.Len(t, adminRows, 1)
	assert.Empty(t, publicRows)
	assert.Equal(t, "C", adminRows[0].Row["content"])

	got, err := repo.GetPageByID(ctx, sc, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "C", got.Content)

	up, err := repo.UpdatePage(ctx, sc, p.ID, "T2", "C2", nil)
	require.NoError(t, err)
	require.NotNil(t, up)
	assert.Equal(t, "admin/secret", up.Path)
	assert.Equal(t, PolicyAdmin, up.PolicyID)
	assert.True(t, p.CreatedAt.Equal(up.CreatedAt))
	assert.True(t, up.UpdatedAt.After(p.UpdatedAt))

	adminRows, _ = b.Table(sc.WikiID, "Content_admin").Scan(ctx)
	publicRows, _ = b.Table(sc.WikiID, "Content_public").Scan(ctx)
	require.Len(t, adminRows, 1)
	assert.Equal(t, "C2", adminRows[0].Row["content"])
	assert.Empty(t, publicRows)
}

func TestCustomPartitionResolver(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	repo := NewPageRepository(b, func(policy string) string { return "Body/" + policy })

	p, err := repo.CreatePage(ctx, sc, NewPage{Title: "T", Content: "C"})
	require.NoError(t, err)

	rows, _ := b.Table(sc.WikiID, "Body/public").Scan(ctx)
	require.Len(t, rows, 1)
	all, err := repo.GetAllPages(ctx, sc)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, p.ID, all[0].ID)
	assert.Equal(t, "C", all[0].Content)
}

func TestUpdateAndDeleteMissingPage(t *testing.T) {
	ctx := context.Background()
	repo := NewPageRepository(memstore.New(), nil)

	p, err := repo.UpdatePage(ctx, sc, "ghost", "T", "C", nil)
	assert.NoError(t, err)
	assert.Nil(t, p)

	ok, err := repo.DeletePage(ctx, sc, "ghost")
	assert.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetPageByID(ctx, sc, "ghost")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeletePageRemovesIndexAndContent(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	repo := NewPageRepository(b, nil)

	keep, err := repo.CreatePage(ctx, sc, NewPage{Title: "keep", Content: "k"})
	require.NoError(t, err)
	gone, err := repo.CreatePage(ctx, sc, NewPage{Title: "gone", Content: "g", Path: "admin/x"})
	require.NoError(t, err)

	ok, err := repo.DeletePage(ctx, sc, gone.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	all, err := repo.GetAllPages(ctx, sc)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)

	adminRows, _ := b.Table(sc.WikiID, "Content_admin").Scan(ctx)
	assert.Empty(t, adminRows)
}

func TestPagesAreScopedByWiki(t *testing.T) {
	ctx := context.Background()
	repo := NewPageRepository(memstore.New(), nil)

	_, err := repo.CreatePage(ctx, NewScope("alpha"), NewPage{Title: "T", Content: "C"})
	require.NoError(t, err)

	beta, err := repo.GetAllPages(ctx, NewScope("beta"))
	require.NoError(t, err)
	assert.Empty(t, beta)
}

func TestUpsertCachedPageByOrigin(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheRepository(memstore.New())

	ok, err := cache.UpsertCachedPage(ctx, sc, Page{ID: "x", Origin: "A", Title: "t", Content: "v1"})
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = cache.UpsertCachedPage(ctx, sc, Page{ID: "x", Origin: "A", Title: "t", Content: "v2", Author: "bob"})
	require.NoError(t, err)

	pages, err := cache.GetAllCachedPages(ctx, sc)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "v2", pages[0].Content)
	assert.Equal(t, "A", pages[0].Origin)
	assert.Equal(t, "bob", pages[0].Author)

	_, err = cache.UpsertCachedPage(ctx, sc, Page{ID: "x", Origin: "B", Title: "t", Content: "other"})
	require.NoError(t, err)

	pages, err = cache.GetAllCachedPages(ctx, sc)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "v2", pages[0].Content)
	assert.Equal(t, "B", pages[1].Origin)
	assert.Equal(t, "other", pages[1].Content)
}

// The cache keeps whatever arrived last, even when it is older.
func TestUpsertCachedPageLastWriteWins(t *testing.T) {
	ctx := context.Background()
	cache := NewCacheRepository(memstore.New())
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	_, err := cache.UpsertCachedPage(ctx, sc, Page{ID: "x", Origin: "A", Content: "new", UpdatedAt: t2})
	require.NoError(t, err)
	_, err = cache.UpsertCachedPage(ctx, sc, Page{ID: "x", Origin: "A", Content: "old", UpdatedAt: t1})
	require.NoError(t, err)

	pages, err := cache.GetAllCachedPages(ctx, sc)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "old", pages[0].Content)
	assert.True(t, pages[0].UpdatedAt.Equal(t1))
}

func TestAddPeerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := NewPeerRegistry(memstore.New())
	reg.now = newClock().Now

	first, err := reg.AddPeer(ctx, sc, "https://p1", "one")
	require.NoError(t, err)
	second, err := reg.AddPeer(ctx, sc, "https://p1", "renamed")
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, "one", second.Name)
	assert.Equal(t, first.IsActive, second.IsActive)
	assert.True(t, first.LastSyncedAt.Equal(second.LastSyncedAt))
	assert.True(t, first.IsActive)

	peers, err := reg.GetPeers(ctx, sc)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "https://p1", peers[0].URL)
}

func TestRemovePeer(t *testing.T) {
	ctx := context.Background()
	reg := NewPeerRegistry(memstore.New())

	_, err := reg.AddPeer(ctx, sc, "https://p1", "one")
	require.NoError(t, err)

	ok, err := reg.RemovePeer(ctx, sc, "https://p1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.RemovePeer(ctx, sc, "https://p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddExternalWikiKeepsFirstRegistration(t *testing.T) {
	ctx := context.Background()
	dir := NewExternalDirectory(memstore.New())
	dir.now = newClock().Now

	ok, err := dir.AddExternalWiki(ctx, sc, ExternalWiki{WikiID: "w1", Title: "T", Description: "d", AccessURL: "https://u"})
	require.NoError(t, err)
	assert.True(t, ok)
	before, err := dir.GetExternalIndex(ctx, sc)
	require.NoError(t, err)
	require.Len(t, before, 1)

	ok, err = dir.AddExternalWiki(ctx, sc, ExternalWiki{WikiID: "w1", Title: "T2", Description: "d2", AccessURL: "https://u"})
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := dir.GetExternalIndex(ctx, sc)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "T", after[0].Title)
	assert.Equal(t, "d", after[0].Description)
	assert.True(t, before[0].RegisteredAt.Equal(after[0].RegisteredAt))
	assert.True(t, after[0].UpdatedAt.After(before[0].UpdatedAt))
}

func TestRemoveExternalWiki(t *testing.T) {
	ctx := context.Background()
	dir := NewExternalDirectory(memstore.New())

	ok, err := dir.RemoveExternalWiki(ctx, sc, "https://u")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = dir.AddExternalWiki(ctx, sc, ExternalWiki{WikiID: "w1", Title: "T", AccessURL: "https://u"})
	require.NoError(t, err)
	ok, err = dir.RemoveExternalWiki(ctx, sc, "https://u")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestModeGatePerWiki(t *testing.T) {
	ctx := context.Background()
	gate := NewModeGate(memstore.New(), ModeInternet)

	m, err := gate.GetMode(ctx, NewScope("a"))
	require.NoError(t, err)
	assert.Equal(t, ModeInternet, m)

	require.NoError(t, gate.SetMode(ctx, NewScope("a"), ModeWorkspace))
	require.NoError(t, gate.SetMode(ctx, NewScope("a"), ModeWorkspace))

	m, _ = gate.GetMode(ctx, NewScope("a"))
	assert.Equal(t, ModeWorkspace, m)
	m, _ = gate.GetMode(ctx, NewScope("b"))
	assert.Equal(t, ModeInternet, m)

	assert.ErrorIs(t, gate.Require(ctx, NewScope("a")), ErrFeatureUnavailable)
	assert.NoError(t, gate.Require(ctx, NewScope("b")))
}

func TestModeGateRejectsCorruptValue(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	_, err := b.Table("default", "WikiMeta").Append(ctx, store.Row{"key": "mode", "value": "offline"})
	require.NoError(t, err)

	_, err = NewModeGate(b, ModeInternet).GetMode(ctx, sc)
	assert.ErrorContains(t, err, "invalid mode")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Internet ")
	require.NoError(t, err)
	assert.Equal(t, ModeInternet, m)

	_, err = ParseMode("offline")
	assert.EqualError(t, err, "invalid mode: offline")
}
