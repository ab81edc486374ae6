package recommend

import (
	"context"
	"fmt"
	"testing"

	"github.com/icco/animeportal/lib/affinity"
	"github.com/icco/animeportal/lib/testutil"
	"github.com/icco/animeportal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var reservedNames = []string{"Editörün Seçimi", "Öne Çıkan"}

type fixture struct {
	db                        *gorm.DB
	action, comedy, drama, ed models.Genre
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := testutil.DB(t)
	return fixture{
		db:     db,
		action: testutil.Genre(t, db, "Aksiyon"),
		comedy: testutil.Genre(t, db, "Komedi"),
		drama:  testutil.Genre(t, db, "Dram"),
		ed:     testutil.Genre(t, db, "Editörün Seçimi"),
	}
}

func names(items []models.Anime) []string {
	out := make([]string, 0, len(items))
	for _, a := range items {
		out = append(out, a.Name)
	}
	return out
}

func TestSelectPersonalizedEmptyAffinity(t *testing.T) {
	f := setup(t)
	testutil.Anime(t, f.db, "Bleach", f.action)

	s := New(f.db, testutil.Logger(), 0, 0, reservedNames)
	items, err := s.SelectPersonalized(context.Background(), affinity.New(), 3, 6)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestSelectPersonalizedTopGenresUnion(t *testing.T) {
	f := setup(t)
	testutil.Anime(t, f.db, "A1", f.action)
	testutil.Anime(t, f.db, "D1", f.drama)
	testutil.Anime(t, f.db, "C1", f.comedy)
	testutil.Anime(t, f.db, "AC", f.action, f.comedy)

	a := affinity.New()
	a.Add(f.action.ID, 5)
	a.Add(f.comedy.ID, 5)
	a.Add(f.drama.ID, 1)

	s := New(f.db, testutil.Logger(), 0, 0, reservedNames)
	items, err := s.SelectPersonalized(context.Background(), a, 2, 6)
	require.NoError(t, err)

	// ordered by id, drama only anime excluded, no duplicates
	assert.Equal(t, []string{"A1", "C1", "AC"}, names(items))
	for _, it := range items {
		assert.NotEmpty(t, it.Genres)
	}
}

func TestSelectPersonalizedTieBreakDecidesGenres(t *testing.T) {
	f := setup(t)
	testutil.Anime(t, f.db, "Comedy", f.comedy)
	testutil.Anime(t, f.db, "Drama", f.drama)
	testutil.Anime(t, f.db, "Action", f.action)

	// drama recorded before comedy, both at 2; action trails at 1
	a := affinity.New()
	a.Add(f.drama.ID, 2)
	a.Add(f.comedy.ID, 2)
	a.Add(f.action.ID, 1)

	s := New(f.db, testutil.Logger(), 0, 0, reservedNames)
	items, err := s.SelectPersonalized(context.Background(), a, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"Drama"}, names(items))
}

func TestSelectPersonalizedItemLimit(t *testing.T) {
	f := setup(t)
	for i := 0; i < 10; i++ {
		testutil.Anime(t, f.db, fmt.Sprintf("Action %02d", i), f.action)
	}

	a := affinity.New()
	a.Add(f.action.ID, 1)

	s := New(f.db, testutil.Logger(), 0, 0, reservedNames)
	items, err := s.Select(context.Background(), SessionSource{Views: a})
	require.NoError(t, err)
	assert.Len(t, items, DefaultItemLimit)
	assert.Equal(t, "Action 00", items[0].Name)
}

func TestSelectFromRatingHistory(t *testing.T) {
	f := setup(t)
	user := testutil.User(t, f.db, "ayse")

	rated1 := testutil.Anime(t, f.db, "Rated Drama", f.drama, f.ed)
	rated2 := testutil.Anime(t, f.db, "Rated Drama Comedy", f.drama, f.comedy)
	testutil.Anime(t, f.db, "Unrated Drama", f.drama)
	testutil.Anime(t, f.db, "Unrated Comedy", f.comedy)
	testutil.Anime(t, f.db, "Unrated Action", f.action)
	testutil.Anime(t, f.db, "Editor Only", f.ed)

	testutil.Rating(t, f.db, user.ID, rated1.ID, 5)
	testutil.Rating(t, f.db, user.ID, rated2.ID, 3)

	src := RatingHistorySource{DB: f.db, UserID: user.ID, Reserved: reservedNames}
	a, err := src.Affinity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint{f.drama.ID, f.comedy.ID}, a.Ranked())
	assert.Equal(t, 0, a.Count(f.ed.ID))

	s := New(f.db, testutil.Logger(), 0, 0, reservedNames)
	items, err := s.SelectFromRatingHistory(context.Background(), user.ID, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rated Drama", "Rated Drama Comedy", "Unrated Drama"}, names(items))
}

func TestForHomeStrategy(t *testing.T) {
	f := setup(t)
	user := testutil.User(t, f.db, "mehmet")
	rated := testutil.Anime(t, f.db, "Rated Comedy", f.comedy)
	testutil.Anime(t, f.db, "Viewed Action", f.action)
	testutil.Rating(t, f.db, user.ID, rated.ID, 4)

	s := New(f.db, testutil.Logger(), 0, 0, reservedNames)
	ctx := context.Background()

	views := affinity.New()
	views.Add(f.action.ID, 1)

	items, err := s.ForHome(ctx, views, &user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Viewed Action"}, names(items))

	items, err = s.ForHome(ctx, affinity.New(), &user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rated Comedy"}, names(items))

	items, err = s.ForHome(ctx, affinity.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}
