package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type ctxKey struct{}

// Manager ties sessions to the request cookie.
type Manager struct {
	store      Store
	ttl        time.Duration
	cookieName string
	secure     bool
	logger     *slog.Logger
}

func NewManager(store Store, ttl time.Duration, cookieName string, secure bool, logger *slog.Logger) *Manager {
	return &Manager{
		store:      store,
		ttl:        ttl,
		cookieName: cookieName,
		secure:     secure,
		logger:     logger,
	}
}

// Middleware loads the visitor's session, or a fresh unsaved one, into the
// request context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.load(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
	})
}

func (m *Manager) load(r *http.Request) *Session {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return newSession()
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return newSession()
	}
	s, err := m.store.Get(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.WarnContext(r.Context(), "Failed to load session", slog.Any("error", err))
		}
		return newSession()
	}
	return s
}

// FromContext returns the request's session. Outside the middleware it
// returns a fresh one so callers never see nil.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(ctxKey{}).(*Session); ok {
		return s
	}
	return newSession()
}

// Save persists s, pushes its expiry forward and (re)sets the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.ExpiresAt = time.Now().Add(m.ttl)
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Login attaches a user and rotates the session id.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, s *Session, userID uint) error {
	if err := m.store.Delete(ctx, s.ID); err != nil {
		m.logger.WarnContext(ctx, "Failed to drop old session", slog.Any("error", err))
	}
	s.ID = uuid.NewString()
	s.UserID = &userID
	return m.Save(ctx, w, s)
}

// Destroy removes the session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	err := m.store.Delete(ctx, s.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}
