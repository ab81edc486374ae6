package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrTimeout is returned by Do when the lock could not be taken in time.
var ErrTimeout = errors.New("timed out waiting for lock")

// FileLock is a lock shared between processes on the same host through
// exclusively created files.
type FileLock struct {
	dir    string
	logger *slog.Logger
}

// NewFileLock creates a lock that keeps its files under dir.
func NewFileLock(dir string, logger *slog.Logger) *FileLock {
	return &FileLock{
		dir:    filepath.Join(dir, "animeportal-locks"),
		logger: logger,
	}
}

// TryLock attempts to acquire a lock with the given key and timeout
func (fl *FileLock) TryLock(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	lockFile := fl.path(key)

	if err := os.MkdirAll(filepath.Dir(lockFile), 0750); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		// #nosec G304 - lockFile is built by path from a fixed directory
		file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			if !os.IsExist(err) {
				return false, fmt.Errorf("failed to create lock file: %w", err)
			}
			if fl.isStale(lockFile, timeout*2) {
				fl.logger.WarnContext(ctx, "Removing stale lock file", slog.String("file", lockFile))
				if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
					fl.logger.ErrorContext(ctx, "Failed to remove stale lock file", slog.String("file", lockFile), slog.Any("error", err))
				}
				continue
			}

			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		if _, err := fmt.Fprintf(file, "%d\n%d\n", time.Now().Unix(), os.Getpid()); err != nil {
			_ = file.Close()
			_ = os.Remove(lockFile)
			return false, fmt.Errorf("failed to write to lock file: %w", err)
		}
		if err := file.Close(); err != nil {
			return false, fmt.Errorf("failed to close lock file: %w", err)
		}

		fl.logger.DebugContext(ctx, "Acquired lock", slog.String("key", key))
		return true, nil
	}

	return false, nil
}

// Unlock releases the lock for the given key
func (fl *FileLock) Unlock(ctx context.Context, key string) error {
	if err := os.Remove(fl.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	fl.logger.DebugContext(ctx, "Released lock", slog.String("key", key))
	return nil
}

// Do runs fn while holding key.
func (fl *FileLock) Do(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	ok, err := fl.TryLock(ctx, key, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTimeout, key)
	}
	defer func() {
		if err := fl.Unlock(ctx, key); err != nil {
			fl.logger.ErrorContext(ctx, "Failed to release lock", slog.String("key", key), slog.Any("error", err))
		}
	}()
	return fn()
}

func (fl *FileLock) path(key string) string {
	return filepath.Clean(filepath.Join(fl.dir, filepath.Base(key)+".lock"))
}

// isStale reports whether a lock file is older than staleAfter.
func (fl *FileLock) isStale(lockFile string, staleAfter time.Duration) bool {
	info, err := os.Stat(lockFile)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > staleAfter
}
