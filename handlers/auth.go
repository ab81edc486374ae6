package handlers

import (
	"log/slog"
	"net/http"

	"github.com/icco/animeportal/lib/account"
	"github.com/icco/animeportal/lib/apperr"
	"github.com/icco/animeportal/lib/session"
	"github.com/icco/animeportal/lib/validation"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

// HandleRegister creates an account and logs it in.
func HandleRegister(accounts *account.Service, sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in account.RegisterInput
		if err := validation.DecodeJSON(r, &in); err != nil {
			validation.WriteError(w, err)
			return
		}
		u, err := accounts.Register(r.Context(), in)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		if err := sessions.Login(r.Context(), w, session.FromContext(r.Context()), u.ID); err != nil {
			validation.WriteError(w, apperr.Unavailable("failed to start session").WithCause(err))
			return
		}
		validation.WriteJSON(w, http.StatusCreated, u)
	}
}

// HandleLogin checks the credentials and attaches the user to the session.
// The visitor's view affinity carries over.
func HandleLogin(accounts *account.Service, sessions *session.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := validation.DecodeJSON(r, &req); err != nil {
			validation.WriteError(w, err)
			return
		}
		u, err := accounts.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		if err := sessions.Login(r.Context(), w, session.FromContext(r.Context()), u.ID); err != nil {
			validation.WriteError(w, apperr.Unavailable("failed to start session").WithCause(err))
			return
		}
		logger.InfoContext(r.Context(), "User logged in", slog.String("username", u.Username))
		validation.WriteJSON(w, http.StatusOK, u)
	}
}

func HandleLogout(sessions *session.Manager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Destroy(r.Context(), w, session.FromContext(r.Context())); err != nil {
			logger.WarnContext(r.Context(), "Failed to delete session", slog.Any("error", err))
		}
		writeOK(w, "logged out")
	}
}

func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		validation.WriteJSON(w, http.StatusOK, CurrentUser(r.Context()))
	}
}

func HandleChangePassword(accounts *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req passwordRequest
		if err := validation.DecodeJSON(r, &req); err != nil {
			validation.WriteError(w, err)
			return
		}
		if err := accounts.ChangePassword(r.Context(), CurrentUser(r.Context()).ID, req.Current, req.New); err != nil {
			validation.WriteError(w, err)
			return
		}
		writeOK(w, "password changed")
	}
}
