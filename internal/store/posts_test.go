package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgpvp/cgpvp/internal/identity"
	"github.com/cgpvp/cgpvp/internal/types"
)

// seedPosts stores n posts one day apart; post i has content "Noticia i".
func seedPosts(t *testing.T, s *Store, n int) []*types.PostRecord {
	t.Helper()

	base := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	var records []*types.PostRecord
	for i := 0; i < n; i++ {
		content := fmt.Sprintf("Noticia %d", i)
		id, title := identity.Derive(content)
		rec := &types.PostRecord{
			ID:          id,
			Title:       title,
			Content:     content,
			CollectedAt: base.Add(time.Duration(i) * 24 * time.Hour),
			Origin:      types.OriginFacebook,
		}
		require.NoError(t, s.UpsertPost(context.Background(), rec))
		records = append(records, rec)
	}
	return records
}

func TestListPosts_Pagination(t *testing.T) {
	s := newSQLiteStore(t)
	seedPosts(t, s, 12)
	ctx := context.Background()

	page1, total, err := s.ListPosts(ctx, ListParams{Page: 1, PerPage: 5, ActiveOnly: true, OrderBy: OrderRecent})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, page1, 5)
	assert.Equal(t, "Noticia 11", page1[0].Content)

	page3, total, err := s.ListPosts(ctx, ListParams{Page: 3, PerPage: 5, ActiveOnly: true, OrderBy: OrderRecent})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, page3, 2)
	assert.Equal(t, "Noticia 0", page3[1].Content)
}

func TestListPosts_OrderOldest(t *testing.T) {
	s := newSQLiteStore(t)
	seedPosts(t, s, 3)

	posts, _, err := s.ListPosts(context.Background(), ListParams{Page: 1, PerPage: 10, OrderBy: OrderOldest})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "Noticia 0", posts[0].Content)
}

func TestListPosts_FiltersAndSearch(t *testing.T) {
	s := newSQLiteStore(t)
	records := seedPosts(t, s, 4)
	ctx := context.Background()

	_, err := s.db.Exec(`UPDATE publicaciones SET destacada = 1 WHERE idpublicacion = ?`, records[1].ID)
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE publicaciones SET activa = 0 WHERE idpublicacion = ?`, records[2].ID)
	require.NoError(t, err)

	featured, total, err := s.ListPosts(ctx, ListParams{Page: 1, PerPage: 10, FeaturedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, records[1].ID, featured[0].ID)

	_, total, err = s.ListPosts(ctx, ListParams{Page: 1, PerPage: 10, ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	found, total, err := s.ListPosts(ctx, ListParams{Page: 1, PerPage: 10, Search: "NOTICIA 3"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, records[3].ID, found[0].ID)
}

func TestRecentFeaturedSearch(t *testing.T) {
	s := newSQLiteStore(t)
	records := seedPosts(t, s, 6)
	ctx := context.Background()

	recent, err := s.RecentPosts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, records[5].ID, recent[0].ID)
	assert.Equal(t, records[4].ID, recent[1].ID)

	_, err = s.db.Exec(`UPDATE publicaciones SET destacada = 1`)
	require.NoError(t, err)
	featured, err := s.FeaturedPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, featured, FeaturedLimit)

	results, err := s.SearchPosts(ctx, "noticia 2")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, records[2].ID, results[0].ID)
}

func TestGetPost_NotFound(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := s.GetPost(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetPostImage(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidOrder(t *testing.T) {
	assert.True(t, ValidOrder(OrderRecent))
	assert.True(t, ValidOrder(OrderTitle))
	assert.False(t, ValidOrder("random"))
}
