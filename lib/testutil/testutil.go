// Package testutil provides a migrated SQLite database and seed helpers for
// package tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/icco/animeportal/lib/config"
	"github.com/icco/animeportal/lib/db"
	"github.com/icco/animeportal/lib/lock"
	"github.com/icco/animeportal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DB returns a freshly migrated database in a temporary directory.
func DB(t *testing.T) *gorm.DB {
	t.Helper()

	dir := t.TempDir()
	logger := Logger()
	gormDB, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(dir, "test.db"),
	}, logger)
	require.NoError(t, err)

	fl := lock.NewFileLock(dir, logger)
	require.NoError(t, db.RunMigrations(context.Background(), gormDB, fl, logger))

	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gormDB
}

// Genre creates a genre with the given name.
func Genre(t *testing.T, gormDB *gorm.DB, name string) models.Genre {
	t.Helper()
	g := models.Genre{Name: name}
	require.NoError(t, gormDB.Create(&g).Error)
	return g
}

// Anime creates an anime tagged with the given genres.
func Anime(t *testing.T, gormDB *gorm.DB, name string, genres ...models.Genre) models.Anime {
	t.Helper()
	a := models.Anime{
		Name:        name,
		Description: name + " description",
		CoverImage:  "covers/" + name + ".jpg",
		Genres:      genres,
	}
	require.NoError(t, gormDB.Create(&a).Error)
	return a
}

// Episode adds an episode to an anime.
func Episode(t *testing.T, gormDB *gorm.DB, animeID uint, number int, sources string) models.Episode {
	t.Helper()
	e := models.Episode{AnimeID: animeID, Number: number, Sources: sources}
	require.NoError(t, gormDB.Create(&e).Error)
	return e
}

// User creates a plain account. The password column holds a placeholder.
func User(t *testing.T, gormDB *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username, Password: "x"}
	require.NoError(t, gormDB.Create(&u).Error)
	return u
}

// Rating stores a score row directly, bypassing the aggregate update.
func Rating(t *testing.T, gormDB *gorm.DB, userID, animeID uint, score int) models.Rating {
	t.Helper()
	r := models.Rating{UserID: userID, AnimeID: animeID, Score: score}
	require.NoError(t, gormDB.Create(&r).Error)
	return r
}
