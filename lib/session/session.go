// Package session keeps per-visitor state on the server. The cookie only
// carries a random id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/icco/animeportal/lib/affinity"
)

var ErrNotFound = errors.New("session not found")

// Session is the server side record for one visitor.
type Session struct {
	ID        string            `json:"id"`
	UserID    *uint             `json:"user_id,omitempty"`
	Affinity  affinity.Affinity `json:"affinity"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

func newSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		Affinity:  affinity.New(),
		CreatedAt: time.Now(),
	}
}

func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// LoggedIn reports whether a user is attached.
func (s *Session) LoggedIn() bool {
	return s.UserID != nil
}

// Store persists sessions. Save replaces the record and refreshes its expiry.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreBadger StoreType = "badger"
	StoreRedis  StoreType = "redis"
)

// Options configure NewStore.
type Options struct {
	Type      StoreType
	Path      string
	RedisAddr string
}

// NewStore builds the configured backend.
func NewStore(opts Options) (Store, error) {
	switch opts.Type {
	case StoreMemory, "":
		return NewMemoryStore(), nil
	case StoreBadger:
		return OpenBadgerStore(opts.Path)
	case StoreRedis:
		return NewRedisStore(opts.RedisAddr)
	default:
		return nil, fmt.Errorf("unknown session store %q", opts.Type)
	}
}
