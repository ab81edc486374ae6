package handlers

import (
	"net/http"

	"github.com/icco/animeportal/lib/community"
	"github.com/icco/animeportal/lib/news"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
)

// HandleApply accepts a membership application.
func HandleApply(svc *community.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in community.ApplyInput
		if err := validation.DecodeJSON(r, &in); err != nil {
			validation.WriteError(w, err)
			return
		}
		m, err := svc.Apply(r.Context(), in)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusCreated, m)
	}
}

func HandleCommunityInfo(svc *community.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Info(r.Context())
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, info)
	}
}

func HandleForumCategories(svc *community.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := svc.Categories(r.Context(), CurrentUser(r.Context()))
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, cats)
	}
}

type categoryThreads struct {
	Category *models.ForumCategory `json:"category"`
	Threads  []models.ForumThread  `json:"threads"`
}

func HandleForumThreads(svc *community.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		cat, threads, err := svc.Threads(r.Context(), CurrentUser(r.Context()), id)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, categoryThreads{Category: cat, Threads: threads})
	}
}

func HandleForumThread(svc *community.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		th, err := svc.Thread(r.Context(), CurrentUser(r.Context()), id)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, th)
	}
}

func HandleCreateThread(svc *community.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in community.ThreadInput
		if err := validation.DecodeJSON(r, &in); err != nil {
			validation.WriteError(w, err)
			return
		}
		th, err := svc.CreateThread(r.Context(), CurrentUser(r.Context()), in)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusCreated, th)
	}
}

func HandleCreatePost(svc *community.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		var in community.PostInput
		if err := validation.DecodeJSON(r, &in); err != nil {
			validation.WriteError(w, err)
			return
		}
		p, err := svc.CreatePost(r.Context(), CurrentUser(r.Context()), id, in)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusCreated, p)
	}
}

func HandleNews(svc *news.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), queryInt(r, "limit", 20))
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, items)
	}
}

func HandleNewsItem(svc *news.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		n, err := svc.Get(r.Context(), id)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, n)
	}
}

func HandleUpcomingEvents(svc *news.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.Upcoming(r.Context(), queryInt(r, "limit", 20))
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, http.StatusOK, events)
	}
}
