package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/icco/animeportal/lib/affinity"
	"github.com/icco/animeportal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"badger": NewBadgerStore(db),
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rs, err := NewRedisStore(addr)
		require.NoError(t, err)
		stores["redis"] = rs
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession()
			uid := uint(7)
			s.UserID = &uid
			s.Affinity.Add(3, 2)
			s.Affinity.Add(1, 2)
			s.ExpiresAt = time.Now().Add(time.Hour)
			require.NoError(t, store.Save(ctx, s))

			got, err := store.Get(ctx, s.ID)
			require.NoError(t, err)
			require.NotNil(t, got.UserID)
			assert.Equal(t, uid, *got.UserID)
			assert.Equal(t, []uint{3, 1}, got.Affinity.Ranked())

			require.NoError(t, store.Delete(ctx, s.ID))
			_, err = store.Get(ctx, s.ID)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreExpiredSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := newSession()
	s.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(ctx, s))

	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := newSession()
	require.NoError(t, store.Save(ctx, s))

	s.Affinity.Add(5, 1)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Affinity.Empty())
}

func TestMemoryStoreSweepDropsExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	for i := 0; i < 1000; i++ {
		s := newSession()
		s.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, store.Save(ctx, s))
	}
	live := newSession()
	live.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, store.Save(ctx, live))

	assert.Equal(t, 1000, store.sweep())
	assert.Equal(t, 1, store.len())

	_, err := store.Get(ctx, live.ID)
	assert.NoError(t, err)
}

func TestMemoryStoreJanitorEvicts(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(10 * time.Millisecond)
	t.Cleanup(func() { _ = store.Close() })

	for i := 0; i < 100; i++ {
		s := newSession()
		s.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, store.Save(ctx, s))
	}

	assert.Eventually(t, func() bool { return store.len() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestNewStoreUnknownType(t *testing.T) {
	_, err := NewStore(Options{Type: "etcd"})
	assert.Error(t, err)

	s, err := NewStore(Options{Type: StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestManagerPersistsAcrossRequests(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour, "sid", false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var views int
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		s.Affinity = affinity.RecordView(s.Affinity, []models.Genre{{ID: 1, Name: "Aksiyon"}}, nil)
		views = s.Affinity.Count(1)
		require.NoError(t, m.Save(r.Context(), w, s))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 1, views)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 2, views)
}

func TestManagerLoginRotatesID(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, time.Hour, "sid", true, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	s := newSession()
	require.NoError(t, m.Save(ctx, httptest.NewRecorder(), s))
	oldID := s.ID

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(ctx, rec, s, 42))
	assert.NotEqual(t, oldID, s.ID)
	assert.True(t, s.LoggedIn())

	_, err := store.Get(ctx, oldID)
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint(42), *got.UserID)

	rec = httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, rec, s))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
