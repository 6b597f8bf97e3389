package wiki

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ryandielhenn/zephyrwiki/pkg/store/memstore"
)

type recordingBroadcaster struct {
	mu    sync.Mutex
	pages []Page
	wikis []string
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, sc Scope, p Page) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, p)
	r.wikis = append(r.wikis, sc.WikiID)
}

func newTestService(t *testing.T) (*Service, *recordingBroadcaster) {
	bc := &recordingBroadcaster{}
	clock := newClock()
	return NewService(memstore.New(), bc, zaptest.NewLogger(t), Options{Now: clock.Now}), bc
}

func TestServiceBroadcastsLocalWrites(t *testing.T) {
	ctx := context.Background()
	svc, bc := newTestService(t)

	p, err := svc.CreatePage(ctx, sc, NewPage{Title: "a", Content: "b"})
	require.NoError(t, err)
	_, err = svc.UpdatePage(ctx, sc, p.ID, "a2", "b2", nil)
	require.NoError(t, err)
	ok, err := svc.DeletePage(ctx, sc, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, bc.pages, 2)
	assert.Equal(t, "a", bc.pages[0].Title)
	assert.Equal(t, "a2", bc.pages[1].Title)
	assert.Equal(t, []string{DefaultWikiID, DefaultWikiID}, bc.wikis)
}

func TestServiceSkipsBroadcastInWorkspace(t *testing.T) {
	ctx := context.Background()
	svc, bc := newTestService(t)

	_, err := svc.SetMode(ctx, sc, "workspace")
	require.NoError(t, err)
	_, err = svc.CreatePage(ctx, sc, NewPage{Title: "a", Content: "b"})
	require.NoError(t, err)
	assert.Empty(t, bc.pages)

	_, err = svc.CreatePage(ctx, NewScope("other"), NewPage{Title: "a", Content: "b"})
	require.NoError(t, err)
	assert.Len(t, bc.pages, 1)
}

func TestServiceUpdateMissingDoesNotBroadcast(t *testing.T) {
	svc, bc := newTestService(t)
	p, err := svc.UpdatePage(context.Background(), sc, "nope", "t", "c", nil)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Empty(t, bc.pages)
}

func TestServiceValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var ve *ValidationError
	_, err := svc.CreatePage(ctx, sc, NewPage{Title: " ", Content: "x"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "title", ve.Field)

	_, err = svc.CreatePage(ctx, sc, NewPage{Title: "x"})
	assert.EqualError(t, err, "content required")

	_, err = svc.UpdatePage(ctx, sc, "", "t", "c", nil)
	assert.EqualError(t, err, "id required")

	_, err = svc.AddExternalWiki(ctx, sc, ExternalWiki{WikiID: "w", Title: "T"})
	assert.EqualError(t, err, "accessUrl required")

	_, err = svc.SetMode(ctx, sc, "")
	assert.EqualError(t, err, "mode required")

	_, err = svc.SetMode(ctx, sc, "offline")
	assert.ErrorIs(t, err, ErrInvalidMode)

	err = svc.ReceiveGossip(ctx, sc, &Page{Title: "no id"})
	assert.EqualError(t, err, "page.id required")
}

func TestServiceReadsMergeCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	local, err := svc.CreatePage(ctx, sc, NewPage{Title: "Local", Content: "x"})
	require.NoError(t, err)
	remote := Page{
		ID: "r1", Path: "r1", PolicyID: PolicyPublic, Title: "Remote", Content: "y",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(), Origin: "http://b", Author: "Anonymous",
	}
	require.NoError(t, svc.ReceiveGossip(ctx, sc, &remote))

	all, err := svc.ListPages(ctx, sc)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, local.ID, all[0].ID)
	assert.False(t, all[0].IsReplica())
	assert.Equal(t, "r1", all[1].ID)
	assert.True(t, all[1].IsReplica())

	got, err := svc.GetPage(ctx, sc, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "http://b", got.Origin)

	got, err = svc.GetPageByTitle(ctx, sc, "Remote")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ID)

	got, err = svc.GetPage(ctx, sc, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestServiceGatesPeerOperations(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.SetMode(ctx, sc, "workspace")
	require.NoError(t, err)

	_, err = svc.ListPeers(ctx, sc)
	assert.ErrorIs(t, err, ErrFeatureUnavailable)
	_, err = svc.AddPeer(ctx, sc, "https://p1", "p1")
	assert.ErrorIs(t, err, ErrFeatureUnavailable)
	_, err = svc.RemovePeer(ctx, sc, "https://p1")
	assert.ErrorIs(t, err, ErrFeatureUnavailable)
	_, err = svc.ExternalIndex(ctx, sc)
	assert.ErrorIs(t, err, ErrFeatureUnavailable)
	_, err = svc.AddExternalWiki(ctx, sc, ExternalWiki{WikiID: "w", Title: "T", AccessURL: "https://w"})
	assert.ErrorIs(t, err, ErrFeatureUnavailable)
	_, err = svc.RemoveExternalWiki(ctx, sc, "https://w")
	assert.ErrorIs(t, err, ErrFeatureUnavailable)
	err = svc.ReceiveGossip(ctx, sc, &Page{ID: "x"})
	assert.ErrorIs(t, err, ErrFeatureUnavailable)

	cached, err := svc.Cache.GetAllCachedPages(ctx, sc)
	require.NoError(t, err)
	assert.Empty(t, cached)

	_, err = svc.SetMode(ctx, sc, "internet")
	require.NoError(t, err)
	_, err = svc.AddPeer(ctx, sc, "https://p1", "p1")
	assert.NoError(t, err)
}

func TestServiceStats(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	for i, c := range []string{"aaaa", "bb", "cccccc"} {
		_, err := svc.CreatePage(ctx, sc, NewPage{Title: c, Content: c, Tags: []string{"t", c}})
		require.NoError(t, err, i)
	}
	require.NoError(t, svc.ReceiveGossip(ctx, sc, &Page{
		ID: "r", Title: "r", Content: "dddd", Origin: "http://b",
		UpdatedAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	st, err := svc.Stats(ctx, sc)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalPages)
	assert.Equal(t, 3, st.LocalPages)
	assert.Equal(t, 1, st.CachedPages)
	assert.Equal(t, 4, st.TotalTags)
	assert.Equal(t, 4, st.AvgPageLength)
	require.Len(t, st.RecentlyUpdated, 4)
	assert.Equal(t, "r", st.RecentlyUpdated[0].ID)
	assert.Equal(t, "cccccc", st.RecentlyUpdated[1].Title)

	empty, err := svc.Stats(ctx, NewScope("empty"))
	require.NoError(t, err)
	assert.Zero(t, empty.TotalPages)
	assert.Zero(t, empty.AvgPageLength)
	assert.Empty(t, empty.RecentlyUpdated)
}

func TestReceiveGossipWithoutOrigin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.ReceiveGossip(ctx, sc, &Page{ID: "x", Title: "t", Content: "c"}))

	cached, err := svc.Cache.GetAllCachedPages(ctx, sc)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, UnknownOrigin, cached[0].Origin)
	assert.True(t, cached[0].IsReplica())
}
