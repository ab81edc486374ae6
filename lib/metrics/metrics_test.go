package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/anime/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/anime/{id}", "418")
	before := promtest.ToFloat64(counter)

	for _, path := range []string{"/anime/1", "/anime/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, before+2, promtest.ToFloat64(counter))
	assert.Zero(t, promtest.ToFloat64(HTTPActiveRequests))
}

func TestRecordHelpers(t *testing.T) {
	ok := promtest.ToFloat64(RatingsSubmitted.WithLabelValues("ok"))
	failed := promtest.ToFloat64(RatingsSubmitted.WithLabelValues("error"))
	RecordRating(nil)
	RecordRating(errors.New("boom"))
	assert.Equal(t, ok+1, promtest.ToFloat64(RatingsSubmitted.WithLabelValues("ok")))
	assert.Equal(t, failed+1, promtest.ToFloat64(RatingsSubmitted.WithLabelValues("error")))

	hits := promtest.ToFloat64(CacheLookups.WithLabelValues("hit"))
	RecordCacheLookup(true)
	assert.Equal(t, hits+1, promtest.ToFloat64(CacheLookups.WithLabelValues("hit")))
}

func TestHandlerServesMetrics(t *testing.T) {
	RecordRecommendation("session")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "animeportal_recommendations_served_total"))
}
