package handlers

import (
	"net/http"

	"github.com/icco/animeportal/lib/library"
	"github.com/icco/animeportal/lib/rating"
	"github.com/icco/animeportal/lib/validation"
)

// The handlers in this file sit behind RequireLogin.

func HandleWatchlist(lib *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := lib.Watchlist(r.Context(), CurrentUser(r.Context()).ID)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, entries)
	}
}

func HandleAddToWatchlist(lib *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		animeID, err := idParam(r, "animeID")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		entry, err := lib.AddToWatchlist(r.Context(), CurrentUser(r.Context()).ID, animeID)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusCreated, entry)
	}
}

func HandleRemoveFromWatchlist(lib *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		animeID, err := idParam(r, "animeID")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		if err := lib.RemoveFromWatchlist(r.Context(), CurrentUser(r.Context()).ID, animeID); err != nil {
			validation.WriteError(w, err)
			return
		}
		writeOK(w, "removed from watchlist")
	}
}

func HandleNotifications(lib *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notes, err := lib.Notifications(r.Context(), CurrentUser(r.Context()).ID, queryInt(r, "limit", 50))
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, notes)
	}
}

func HandleUnreadCount(lib *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := lib.UnreadCount(r.Context(), CurrentUser(r.Context()).ID)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, map[string]int64{"unread": n})
	}
}

func HandleMarkRead(lib *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		if err := lib.MarkRead(r.Context(), CurrentUser(r.Context()).ID, id); err != nil {
			validation.WriteError(w, err)
			return
		}
		writeOK(w, "")
	}
}

func HandleMarkAllRead(lib *library.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := lib.MarkAllRead(r.Context(), CurrentUser(r.Context()).ID)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, map[string]int64{"marked": n})
	}
}

func HandleMyRatings(ratings *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := ratings.ForUser(r.Context(), CurrentUser(r.Context()).ID)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, list)
	}
}
