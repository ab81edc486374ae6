package community

import (
	"context"
	"testing"

	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/testutil"
	"github.com/icco/animeportal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForumPermissions(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	root := admin(t, db)
	plain := testutil.User(t, db, "plain")
	member := models.User{Username: "uye", Password: "x", IsCommunityMember: true}
	require.NoError(t, db.Create(&member).Error)

	_, err := svc.CreateCategory(ctx, &member, CategoryInput{Name: "Genel"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	cat, err := svc.CreateCategory(ctx, root, CategoryInput{Name: " Genel "})
	require.NoError(t, err)
	assert.Equal(t, "Genel", cat.Name)
	_, err = svc.CreateCategory(ctx, root, CategoryInput{Name: "Genel"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = svc.Categories(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	cats, err := svc.Categories(ctx, &plain)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	_, err = svc.CreateThread(ctx, &plain, ThreadInput{CategoryID: cat.ID, Title: "Merhaba", Content: "Selam"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = svc.CreateThread(ctx, &member, ThreadInput{CategoryID: 9999, Title: "Merhaba", Content: "Selam"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	th, err := svc.CreateThread(ctx, &member, ThreadInput{CategoryID: cat.ID, Title: "Merhaba", Content: "Selam"})
	require.NoError(t, err)
	assert.Equal(t, "uye", th.UserUsername)

	assert.ErrorIs(t, svc.DeleteThread(ctx, &member, th.ID), apperr.ErrForbidden)
}

func TestForumOrdering(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	root := admin(t, db)

	cat, err := svc.CreateCategory(ctx, root, CategoryInput{Name: "Genel"})
	require.NoError(t, err)

	first, err := svc.CreateThread(ctx, root, ThreadInput{CategoryID: cat.ID, Title: "Birinci", Content: "a"})
	require.NoError(t, err)
	second, err := svc.CreateThread(ctx, root, ThreadInput{CategoryID: cat.ID, Title: "İkinci", Content: "b"})
	require.NoError(t, err)

	_, threads, err := svc.Threads(ctx, root, cat.ID)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, second.ID, threads[0].ID)

	p1, err := svc.CreatePost(ctx, root, first.ID, PostInput{Content: "ilk"})
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, root, first.ID, PostInput{Content: "sonraki"})
	require.NoError(t, err)
	_, err = svc.CreatePost(ctx, root, 9999, PostInput{Content: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.CreatePost(ctx, root, first.ID, PostInput{Content: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.Thread(ctx, root, first.ID)
	require.NoError(t, err)
	require.Len(t, got.Posts, 2)
	assert.Equal(t, p1.ID, got.Posts[0].ID)

	require.NoError(t, svc.DeletePost(ctx, root, p1.ID))
	assert.ErrorIs(t, svc.DeletePost(ctx, root, p1.ID), apperr.ErrNotFound)

	require.NoError(t, svc.DeleteCategory(ctx, root, cat.ID))
	_, err = svc.Thread(ctx, root, first.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var posts int64
	require.NoError(t, db.Model(&models.ForumPost{}).Count(&posts).Error)
	assert.Zero(t, posts)
}
