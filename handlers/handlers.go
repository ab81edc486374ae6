// Package handlers serves the portal's HTML pages and JSON API.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/icco/animeportal/handlers/templates"
	"github.com/icco/animeportal/lib/account"
	"github.com/icco/animeportal/lib/activity"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/catalog"
	"github.com/icco/animeportal/lib/community"
	"github.com/icco/animeportal/lib/config"
	"github.com/icco/animeportal/lib/library"
	"github.com/icco/animeportal/lib/news"
	"github.com/icco/animeportal/lib/rating"
	"github.com/icco/animeportal/lib/recommend"
	"github.com/icco/animeportal/lib/session"
	"github.com/icco/animeportal/lib/suggest"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
	"gorm.io/gorm"
)

// Services bundles everything the handlers need.
type Services struct {
	DB           *gorm.DB
	Config       *config.Config
	Sessions     *session.Manager
	SessionStore session.Store
	Accounts     *account.Service
	Catalog      *catalog.Service
	Ratings      *rating.Service
	Recommend    *recommend.Selector
	Library      *library.Service
	Community    *community.Service
	News         *news.Service
	Activity     *activity.Log
	Suggest      *suggest.Suggester
	Logger       *slog.Logger
}

type errorData struct {
	Message string
	Status  int
}

// render executes page inside the base layout. Output is buffered so a
// template failure can still produce the error page.
func render(w http.ResponseWriter, status int, page string, data any) error {
	tmpl, err := templates.ParseTemplates("base.html", page)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

func renderError(w http.ResponseWriter, message string, status int) {
	if err := render(w, status, "error.html", errorData{Message: message, Status: status}); err != nil {
		slog.Error("Failed to render error page", slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// renderPage renders page or falls back to the error page.
func renderPage(w http.ResponseWriter, page string, data any) {
	if err := render(w, http.StatusOK, page, data); err != nil {
		slog.Error("Failed to render template", slog.String("page", page), slog.Any("error", err))
		renderError(w, "Something went wrong while displaying the page.", http.StatusInternalServerError)
	}
}

// renderAppError shows err on the HTML error page with its status.
func renderAppError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", slog.Any("error", err))
	}
	renderError(w, apperr.PublicMessage(err), status)
}

type ctxKey struct{}

// LoadUser resolves the session's user id into the request context. A user
// that no longer exists is treated as anonymous.
func LoadUser(accounts *account.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if sess.UserID == nil {
				next.ServeHTTP(w, r)
				return
			}
			u, err := accounts.Get(r.Context(), *sess.UserID)
			if err != nil {
				if !errors.Is(err, apperr.ErrNotFound) {
					logger.WarnContext(r.Context(), "Failed to load session user", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
		})
	}
}

// CurrentUser returns the logged in user or nil.
func CurrentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxKey{}).(*models.User)
	return u
}

// RequireLogin answers 401 for anonymous API requests.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			validation.WriteError(w, apperr.Unauthorized("login required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff lets only back office users through.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := CurrentUser(r.Context())
		if u == nil {
			validation.WriteError(w, apperr.Unauthorized("login required"))
			return
		}
		if !u.IsStaff() {
			validation.WriteError(w, apperr.Forbidden("you do not have permission to do that"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func idParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.NotFound("not found")
	}
	return uint(id), nil
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func writeOK(w http.ResponseWriter, message string) {
	validation.WriteJSON(w, http.StatusOK, statusResponse{Status: "success", Message: message})
}
