package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/icco/animeportal/lib/account"
	"github.com/icco/animeportal/lib/activity"
	"github.com/icco/animeportal/lib/cache"
	"github.com/icco/animeportal/lib/catalog"
	"github.com/icco/animeportal/lib/community"
	"github.com/icco/animeportal/lib/config"
	"github.com/icco/animeportal/lib/library"
	"github.com/icco/animeportal/lib/news"
	"github.com/icco/animeportal/lib/rating"
	"github.com/icco/animeportal/lib/recommend"
	"github.com/icco/animeportal/lib/session"
	"github.com/icco/animeportal/lib/suggest"
	"github.com/icco/animeportal/lib/testutil"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reservedNames = []string{"Editörün Seçimi", "Öne Çıkan"}

func testConfig() *config.Config {
	return &config.Config{
		Session: config.SessionConfig{TTL: time.Hour, CookieName: "test_session"},
		Catalog: config.CatalogConfig{
			ReservedGenres: reservedNames,
			EditorsPick:    "Editörün Seçimi",
			Featured:       "Öne Çıkan",
			PageSize:       24,
			LatestLimit:    12,
			RandomLimit:    6,
		},
		Security: config.SecurityConfig{
			CORSOrigins:     []string{"*"},
			AuthRateLimit:   1000,
			AuthRateWindow:  time.Minute,
			MinPasswordSize: 8,
		},
	}
}

func newServices(t *testing.T) *Services {
	t.Helper()
	db := testutil.DB(t)
	logger := testutil.Logger()
	cfg := testConfig()
	v := validation.New()

	c, err := cache.New(time.Minute, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	store := session.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	lib := library.NewService(db, logger)
	cat := catalog.NewService(db, c, lib, v, reservedNames, logger)

	return &Services{
		DB:           db,
		Config:       cfg,
		Sessions:     session.NewManager(store, cfg.Session.TTL, cfg.Session.CookieName, false, logger),
		SessionStore: store,
		Accounts:     account.NewService(db, v, cfg.Security.MinPasswordSize, logger),
		Catalog:      cat,
		Ratings:      rating.NewService(db, c, logger),
		Recommend:    recommend.New(db, logger, 3, 6, reservedNames),
		Library:      lib,
		Community:    community.NewService(db, v, cfg.Security.MinPasswordSize, logger),
		News:         news.NewService(db, v, logger),
		Activity:     activity.New(db, logger),
		Suggest:      suggest.New(config.OpenAIConfig{}, cat, logger),
		Logger:       logger,
	}
}

type client struct {
	t    *testing.T
	srv  *httptest.Server
	http *http.Client
}

func newClient(t *testing.T, s *Services) *client {
	t.Helper()
	srv := httptest.NewServer(NewRouter(s))
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, srv: srv, http: &http.Client{Jar: jar}}
}

// fork returns a client on the same server with an empty cookie jar.
func (c *client) fork() *client {
	jar, err := cookiejar.New(nil)
	require.NoError(c.t, err)
	return &client{t: c.t, srv: c.srv, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path, body string) (*http.Response, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, data
}

func (c *client) register(username string) models.User {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/api/register",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"supersecret"}`)
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(body))
	var u models.User
	require.NoError(c.t, json.Unmarshal(body, &u))
	return u
}

func decodeMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	c := newClient(t, newServices(t))

	resp, body := c.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeMap(t, body)["status"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"))
}

func TestRate(t *testing.T) {
	s := newServices(t)
	a := testutil.Anime(t, s.DB, "Bleach")
	c := newClient(t, s)

	path := "/api/anime/" + itoa(a.ID) + "/rate"

	resp, body := c.do(http.MethodPost, path, `{"score":4}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "error", decodeMap(t, body)["status"])

	c.register("ichigo")

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"above range", path, `{"score":6}`, http.StatusBadRequest},
		{"below range", path, `{"score":0}`, http.StatusBadRequest},
		{"fraction", path, `{"score":4.5}`, http.StatusBadRequest},
		{"string", path, `{"score":"4"}`, http.StatusBadRequest},
		{"missing", path, `{}`, http.StatusBadRequest},
		{"malformed", path, `{`, http.StatusBadRequest},
		{"unknown anime", "/api/anime/9999/rate", `{"score":4}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := c.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			m := decodeMap(t, body)
			assert.Equal(t, "error", m["status"])
			assert.NotEmpty(t, m["message"])
		})
	}

	var stored models.Anime
	require.NoError(t, s.DB.First(&stored, a.ID).Error)
	assert.Zero(t, stored.RatingCount)

	resp, body = c.do(http.MethodPost, path, `{"score":4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	m := decodeMap(t, body)
	assert.Equal(t, "success", m["status"])
	assert.InDelta(t, 4.0, m["new_average"], 0.0001)
	assert.EqualValues(t, 1, m["rating_count"])

	other := c.fork()
	other.register("rukia")
	resp, body = other.do(http.MethodPost, path, `{"score":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	m = decodeMap(t, body)
	assert.InDelta(t, 3.0, m["new_average"], 0.0001)
	assert.EqualValues(t, 2, m["rating_count"])

	// a second score from the same user replaces the first
	resp, body = c.do(http.MethodPost, path, `{"score":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	m = decodeMap(t, body)
	assert.InDelta(t, 3.5, m["new_average"], 0.0001)
	assert.EqualValues(t, 2, m["rating_count"])
}

func TestEpisodeViewFeedsRecommendations(t *testing.T) {
	s := newServices(t)
	action := testutil.Genre(t, s.DB, "Aksiyon")
	comedy := testutil.Genre(t, s.DB, "Komedi")
	ed := testutil.Genre(t, s.DB, "Editörün Seçimi")
	watched := testutil.Anime(t, s.DB, "Naruto", action, ed)
	testutil.Anime(t, s.DB, "Bleach", action)
	testutil.Anime(t, s.DB, "Gintama", comedy)
	ep := testutil.Episode(t, s.DB, watched.ID, 1, "https://a.example/1, https://b.example/1")

	c := newClient(t, s)

	resp, body := c.do(http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var home HomeData
	require.NoError(t, json.Unmarshal(body, &home))
	assert.Equal(t, SourceNone, home.RecommendationSource)
	assert.Empty(t, home.Recommended)

	resp, body = c.do(http.MethodGet, "/api/episodes/"+itoa(ep.ID), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var view episodeView
	require.NoError(t, json.Unmarshal(body, &view))
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/1"}, view.Sources)
	for _, g := range view.Anime.Genres {
		assert.NotEqual(t, "Editörün Seçimi", g.Name)
	}

	cookies := c.http.Jar.Cookies(resp.Request.URL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "test_session", cookies[0].Name)

	resp, body = c.do(http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	home = HomeData{}
	require.NoError(t, json.Unmarshal(body, &home))
	assert.Equal(t, SourceSession, home.RecommendationSource)

	var names []string
	for _, a := range home.Recommended {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"Naruto", "Bleach"}, names)
}

func TestEpisodeNotFound(t *testing.T) {
	c := newClient(t, newServices(t))

	resp, body := c.do(http.MethodGet, "/api/episodes/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", decodeMap(t, body)["status"])

	resp, body = c.do(http.MethodGet, "/episode/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "404")
}

func TestHomeHistorySource(t *testing.T) {
	s := newServices(t)
	action := testutil.Genre(t, s.DB, "Aksiyon")
	rated := testutil.Anime(t, s.DB, "Naruto", action)
	testutil.Anime(t, s.DB, "Bleach", action)

	c := newClient(t, s)
	u := c.register("sasuke")
	testutil.Rating(t, s.DB, u.ID, rated.ID, 5)

	resp, body := c.do(http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var home HomeData
	require.NoError(t, json.Unmarshal(body, &home))
	assert.Equal(t, SourceHistory, home.RecommendationSource)
	assert.Len(t, home.Recommended, 2)
	require.NotNil(t, home.User)
	assert.Equal(t, "sasuke", home.User.Username)
}

func TestLoginFlow(t *testing.T) {
	s := newServices(t)
	c := newClient(t, s)
	c.register("kakashi")

	resp, _ := c.do(http.MethodPost, "/api/logout", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/api/login", `{"username":"kakashi","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/api/login", `{"username":"kakashi","password":"supersecret"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.NotContains(t, string(body), "supersecret")

	resp, body = c.do(http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "kakashi", decodeMap(t, body)["username"])
}

func TestAdminRoutes(t *testing.T) {
	s := newServices(t)
	c := newClient(t, s)

	resp, _ := c.do(http.MethodGet, "/api/admin/stats", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	u := c.register("naruto")
	resp, _ = c.do(http.MethodGet, "/api/admin/stats", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// editors get in but cannot delete
	require.NoError(t, s.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("can_edit", true).Error)
	resp, body := c.do(http.MethodPost, "/api/admin/genres", `{"name":"Aksiyon"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var g models.Genre
	require.NoError(t, json.Unmarshal(body, &g))

	resp, _ = c.do(http.MethodDelete, "/api/admin/genres/"+itoa(g.ID), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/api/admin/stats", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	require.NoError(t, s.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("is_admin", true).Error)
	resp, body = c.do(http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.EqualValues(t, 1, decodeMap(t, body)["total_genres"])

	resp, body = c.do(http.MethodGet, "/api/admin/activity", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logs []models.ActivityLog
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, activity.GenreCreated, logs[0].Action)
}

func TestSuggestWithoutKey(t *testing.T) {
	s := newServices(t)
	c := newClient(t, s)
	u := c.register("hinata")
	require.NoError(t, s.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("can_edit", true).Error)

	resp, _ := c.do(http.MethodPost, "/api/admin/genres/suggest", `{"name":"Naruto","description":"ninja"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestExportMembers(t *testing.T) {
	s := newServices(t)
	c := newClient(t, s)
	u := c.register("shikamaru")
	require.NoError(t, s.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("is_admin", true).Error)

	resp, body := c.do(http.MethodGet, "/api/admin/members/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "topluluk_uyeleri_")
	// xlsx files are zip archives
	assert.True(t, bytes.HasPrefix(body, []byte("PK")))
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestGetMember(t *testing.T) {
	s := newServices(t)
	m := models.CommunityMember{
		Username:     "sakura",
		PasswordHash: "hash",
		Email:        "sakura@example.com",
		Name:         "Sakura",
		Surname:      "Haruno",
		StudentID:    "2021001",
	}
	require.NoError(t, s.DB.Create(&m).Error)

	c := newClient(t, s)
	u := c.register("tsunade")
	require.NoError(t, s.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("can_edit", true).Error)

	path := "/api/admin/members/" + itoa(m.ID)
	resp, _ := c.do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	require.NoError(t, s.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("is_admin", true).Error)
	resp, body := c.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "sakura", decodeMap(t, body)["username"])
	assert.NotContains(t, string(body), "hash")

	resp, _ = c.do(http.MethodGet, "/api/admin/members/9999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
