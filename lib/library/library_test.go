package library

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/cache"
	"github.com/icco/animeportal/lib/catalog"
	"github.com/icco/animeportal/lib/testutil"
	"github.com/icco/animeportal/lib/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchlist(t *testing.T) {
	db := testutil.DB(t)
	svc := NewService(db, testutil.Logger())
	ctx := context.Background()

	u := testutil.User(t, db, "ayse")
	naruto := testutil.Anime(t, db, "Naruto")
	bleach := testutil.Anime(t, db, "Bleach")

	_, err := svc.AddToWatchlist(ctx, u.ID, naruto.ID)
	require.NoError(t, err)
	_, err = svc.AddToWatchlist(ctx, u.ID, bleach.ID)
	require.NoError(t, err)

	_, err = svc.AddToWatchlist(ctx, u.ID, naruto.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
	_, err = svc.AddToWatchlist(ctx, u.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	entries, err := svc.Watchlist(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Bleach", entries[0].Anime.Name)

	watching, err := svc.IsWatching(ctx, u.ID, naruto.ID)
	require.NoError(t, err)
	assert.True(t, watching)

	require.NoError(t, svc.RemoveFromWatchlist(ctx, u.ID, naruto.ID))
	assert.ErrorIs(t, svc.RemoveFromWatchlist(ctx, u.ID, naruto.ID), apperr.ErrNotFound)

	watching, err = svc.IsWatching(ctx, u.ID, naruto.ID)
	require.NoError(t, err)
	assert.False(t, watching)
}

func TestNewEpisodeNotifiesWatchers(t *testing.T) {
	db := testutil.DB(t)
	svc := NewService(db, testutil.Logger())
	c, err := cache.New(time.Minute, testutil.Logger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	cat := catalog.NewService(db, c, svc, validation.New(), nil, testutil.Logger())
	ctx := context.Background()

	ayse := testutil.User(t, db, "ayse")
	mehmet := testutil.User(t, db, "mehmet")
	other := testutil.User(t, db, "other")
	naruto := testutil.Anime(t, db, "Naruto")

	_, err = svc.AddToWatchlist(ctx, ayse.ID, naruto.ID)
	require.NoError(t, err)
	_, err = svc.AddToWatchlist(ctx, mehmet.ID, naruto.ID)
	require.NoError(t, err)

	ep, err := cat.AddEpisode(ctx, naruto.ID, 3, []string{"a.mp4"})
	require.NoError(t, err)

	notes, err := svc.Notifications(ctx, ayse.ID, 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Naruto 3. bölüm eklendi!", notes[0].Message)
	assert.Equal(t, fmt.Sprintf("/episode/%d", ep.ID), notes[0].Link)
	assert.False(t, notes[0].IsRead)

	none, err := svc.Notifications(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	unread, err := svc.UnreadCount(ctx, mehmet.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)
}

func TestMarkRead(t *testing.T) {
	db := testutil.DB(t)
	svc := NewService(db, testutil.Logger())
	ctx := context.Background()

	ayse := testutil.User(t, db, "ayse")
	mehmet := testutil.User(t, db, "mehmet")
	naruto := testutil.Anime(t, db, "Naruto")
	_, err := svc.AddToWatchlist(ctx, ayse.ID, naruto.ID)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		ep := testutil.Episode(t, db, naruto.ID, i, "a.mp4")
		require.NoError(t, svc.NotifyNewEpisode(ctx, db, &naruto, &ep))
	}

	notes, err := svc.Notifications(ctx, ayse.ID, 0)
	require.NoError(t, err)
	require.Len(t, notes, 3)

	require.NoError(t, svc.MarkRead(ctx, ayse.ID, notes[0].ID))
	assert.ErrorIs(t, svc.MarkRead(ctx, mehmet.ID, notes[1].ID), apperr.ErrNotFound)

	unread, err := svc.UnreadCount(ctx, ayse.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	marked, err := svc.MarkAllRead(ctx, ayse.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	unread, err = svc.UnreadCount(ctx, ayse.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
