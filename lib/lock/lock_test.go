package lock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) *FileLock {
	t.Helper()
	return NewFileLock(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTryLockExclusive(t *testing.T) {
	ctx := context.Background()
	fl := newTestLock(t)

	ok, err := fl.TryLock(ctx, "migrate", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = fl.TryLock(ctx, "migrate", 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fl.Unlock(ctx, "migrate"))

	ok, err = fl.TryLock(ctx, "migrate", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDoReleasesLock(t *testing.T) {
	ctx := context.Background()
	fl := newTestLock(t)

	boom := errors.New("boom")
	err := fl.Do(ctx, "job", time.Second, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	ran := false
	require.NoError(t, fl.Do(ctx, "job", time.Second, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestDoTimeout(t *testing.T) {
	ctx := context.Background()
	fl := newTestLock(t)

	ok, err := fl.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	err = fl.Do(ctx, "job", 200*time.Millisecond, func() error { return nil })
	assert.ErrorIs(t, err, ErrTimeout)
}
