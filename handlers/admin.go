package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/icco/animeportal/lib/account"
	"github.com/icco/animeportal/lib/activity"
	"github.com/icco/animeportal/lib/catalog"
	"github.com/icco/animeportal/lib/community"
	"github.com/icco/animeportal/lib/export"
	"github.com/icco/animeportal/lib/news"
	"github.com/icco/animeportal/lib/stats"
	"github.com/icco/animeportal/lib/validation"
	"github.com/icco/animeportal/models"
)

// The handlers in this file sit behind RequireStaff. Each one checks the
// specific permission it needs.

// action runs fn for the current user and writes its result as JSON with
// status.
func action(status int, perm account.Permission, fn func(r *http.Request, actor *models.User) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := CurrentUser(r.Context())
		if perm != "" {
			if err := account.Require(actor, perm); err != nil {
				validation.WriteError(w, err)
				return
			}
		}
		out, err := fn(r, actor)
		if err != nil {
			validation.WriteError(w, err)
			return
		}
		validation.WriteJSON(w, status, out)
	}
}

// decode reads the request body into a fresh T.
func decode[T any](r *http.Request) (T, error) {
	var in T
	err := validation.DecodeJSON(r, &in)
	return in, err
}

func HandleCreateAnime(s *Services) http.HandlerFunc {
	return action(http.StatusCreated, account.PermEdit, func(r *http.Request, actor *models.User) (any, error) {
		in, err := decode[catalog.AnimeInput](r)
		if err != nil {
			return nil, err
		}
		a, err := s.Catalog.CreateAnime(r.Context(), in)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.AnimeCreated, fmt.Sprintf("%s eklendi", a.Name))
		return a, nil
	})
}

func HandleUpdateAnime(s *Services) http.HandlerFunc {
	return action(http.StatusOK, account.PermEdit, func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		in, err := decode[catalog.AnimeInput](r)
		if err != nil {
			return nil, err
		}
		a, err := s.Catalog.UpdateAnime(r.Context(), id, in)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.AnimeUpdated, fmt.Sprintf("%s güncellendi", a.Name))
		return a, nil
	})
}

func HandleDeleteAnime(s *Services) http.HandlerFunc {
	return action(http.StatusOK, account.PermDelete, func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		a, err := s.Catalog.DeleteAnime(r.Context(), id)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.AnimeDeleted, fmt.Sprintf("%s silindi", a.Name))
		return statusResponse{Status: "success"}, nil
	})
}

type episodeRequest struct {
	Number  int      `json:"number"`
	Sources []string `json:"sources"`
}

func HandleAddEpisode(s *Services) http.HandlerFunc {
	return action(http.StatusCreated, account.PermEdit, func(r *http.Request, actor *models.User) (any, error) {
		animeID, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		in, err := decode[episodeRequest](r)
		if err != nil {
			return nil, err
		}
		ep, err := s.Catalog.AddEpisode(r.Context(), animeID, in.Number, in.Sources)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.EpisodeAdded, fmt.Sprintf("anime %d, bölüm %d eklendi", animeID, ep.Number))
		return ep, nil
	})
}

func HandleDeleteEpisode(s *Services) http.HandlerFunc {
	return action(http.StatusOK, account.PermDelete, func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		ep, err := s.Catalog.DeleteEpisode(r.Context(), id)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.EpisodeDeleted, fmt.Sprintf("anime %d, bölüm %d silindi", ep.AnimeID, ep.Number))
		return statusResponse{Status: "success"}, nil
	})
}

func HandleAllGenres(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, _ *models.User) (any, error) {
		return s.Catalog.Genres(r.Context())
	})
}

type genreRequest struct {
	Name string `json:"name"`
}

func HandleCreateGenre(s *Services) http.HandlerFunc {
	return action(http.StatusCreated, account.PermEdit, func(r *http.Request, actor *models.User) (any, error) {
		in, err := decode[genreRequest](r)
		if err != nil {
			return nil, err
		}
		g, err := s.Catalog.CreateGenre(r.Context(), in.Name)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.GenreCreated, fmt.Sprintf("%s türü eklendi", g.Name))
		return g, nil
	})
}

func HandleDeleteGenre(s *Services) http.HandlerFunc {
	return action(http.StatusOK, account.PermDelete, func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		g, err := s.Catalog.DeleteGenre(r.Context(), id)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.GenreDeleted, fmt.Sprintf("%s türü silindi", g.Name))
		return statusResponse{Status: "success"}, nil
	})
}

type suggestRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func HandleSuggestGenres(s *Services) http.HandlerFunc {
	return action(http.StatusOK, account.PermEdit, func(r *http.Request, _ *models.User) (any, error) {
		in, err := decode[suggestRequest](r)
		if err != nil {
			return nil, err
		}
		return s.Suggest.Genres(r.Context(), in.Name, in.Description)
	})
}

func HandleListUsers(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		return s.Accounts.List(r.Context(), actor)
	})
}

type createUserRequest struct {
	account.RegisterInput
	Permissions account.Permissions `json:"permissions"`
}

func HandleCreateUser(s *Services) http.HandlerFunc {
	return action(http.StatusCreated, "", func(r *http.Request, actor *models.User) (any, error) {
		in, err := decode[createUserRequest](r)
		if err != nil {
			return nil, err
		}
		u, err := s.Accounts.CreateUser(r.Context(), actor, in.RegisterInput, in.Permissions)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.UserChanged, fmt.Sprintf("%s kullanıcısı oluşturuldu", u.Username))
		return u, nil
	})
}

func HandleSetPermissions(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		perms, err := decode[account.Permissions](r)
		if err != nil {
			return nil, err
		}
		u, err := s.Accounts.SetPermissions(r.Context(), actor, id, perms)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.UserChanged, fmt.Sprintf("%s yetkileri güncellendi", u.Username))
		return u, nil
	})
}

func HandleDeleteUser(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		if err := s.Accounts.Delete(r.Context(), actor, id); err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.UserChanged, fmt.Sprintf("kullanıcı %d silindi", id))
		return statusResponse{Status: "success"}, nil
	})
}

func memberFilter(r *http.Request) community.ListFilter {
	q := r.URL.Query()
	return community.ListFilter{Query: q.Get("q"), Status: q.Get("status")}
}

func HandleListMembers(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		return s.Community.Members(r.Context(), actor, memberFilter(r))
	})
}

func HandleGetMember(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		return s.Community.GetMember(r.Context(), actor, id)
	})
}

func HandleApproveMember(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		m, err := s.Community.Approve(r.Context(), actor, id)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.MemberApproved, fmt.Sprintf("%s onaylandı", m.Username))
		return m, nil
	})
}

func HandleRejectMember(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		m, err := s.Community.Reject(r.Context(), actor, id)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.MemberRejected, fmt.Sprintf("%s reddedildi", m.Username))
		return statusResponse{Status: "success"}, nil
	})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HandleExportMembers downloads the filtered member list as a workbook.
func HandleExportMembers(s *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := CurrentUser(r.Context())
		members, err := s.Community.Members(r.Context(), actor, memberFilter(r))
		if err != nil {
			validation.WriteError(w, err)
			return
		}

		var buf bytes.Buffer
		if err := export.Members(&buf, members); err != nil {
			validation.WriteError(w, err)
			return
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.MembersExported, fmt.Sprintf("%d üye dışa aktarıldı", len(members)))

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(time.Now())))
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

func HandleSaveCommunityInfo(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		in, err := decode[community.InfoInput](r)
		if err != nil {
			return nil, err
		}
		return s.Community.SaveInfo(r.Context(), actor, in)
	})
}

func HandleCreateCategory(s *Services) http.HandlerFunc {
	return action(http.StatusCreated, "", func(r *http.Request, actor *models.User) (any, error) {
		in, err := decode[community.CategoryInput](r)
		if err != nil {
			return nil, err
		}
		cat, err := s.Community.CreateCategory(r.Context(), actor, in)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.ForumChanged, fmt.Sprintf("%s kategorisi eklendi", cat.Name))
		return cat, nil
	})
}

// forumDelete wraps the forum delete operations, which share a shape.
func forumDelete(s *Services, what string, del func(*http.Request, *models.User, uint) error) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		if err := del(r, actor, id); err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.ForumChanged, fmt.Sprintf("%s %d silindi", what, id))
		return statusResponse{Status: "success"}, nil
	})
}

func HandleDeleteCategory(s *Services) http.HandlerFunc {
	return forumDelete(s, "kategori", func(r *http.Request, actor *models.User, id uint) error {
		return s.Community.DeleteCategory(r.Context(), actor, id)
	})
}

func HandleDeleteThread(s *Services) http.HandlerFunc {
	return forumDelete(s, "konu", func(r *http.Request, actor *models.User, id uint) error {
		return s.Community.DeleteThread(r.Context(), actor, id)
	})
}

func HandleDeletePost(s *Services) http.HandlerFunc {
	return forumDelete(s, "mesaj", func(r *http.Request, actor *models.User, id uint) error {
		return s.Community.DeletePost(r.Context(), actor, id)
	})
}

func HandleCreateNews(s *Services) http.HandlerFunc {
	return action(http.StatusCreated, "", func(r *http.Request, actor *models.User) (any, error) {
		in, err := decode[news.NewsInput](r)
		if err != nil {
			return nil, err
		}
		n, err := s.News.Create(r.Context(), actor, in)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.NewsChanged, fmt.Sprintf("%s haberi eklendi", n.Title))
		return n, nil
	})
}

func HandleUpdateNews(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		in, err := decode[news.NewsInput](r)
		if err != nil {
			return nil, err
		}
		n, err := s.News.Update(r.Context(), actor, id, in)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.NewsChanged, fmt.Sprintf("%s haberi güncellendi", n.Title))
		return n, nil
	})
}

func HandleDeleteNews(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		if err := s.News.Delete(r.Context(), actor, id); err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.NewsChanged, fmt.Sprintf("haber %d silindi", id))
		return statusResponse{Status: "success"}, nil
	})
}

func HandleAllEvents(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, _ *models.User) (any, error) {
		return s.News.Events(r.Context())
	})
}

func HandleCreateEvent(s *Services) http.HandlerFunc {
	return action(http.StatusCreated, "", func(r *http.Request, actor *models.User) (any, error) {
		in, err := decode[news.EventInput](r)
		if err != nil {
			return nil, err
		}
		e, err := s.News.CreateEvent(r.Context(), actor, in)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.EventChanged, fmt.Sprintf("%s etkinliği eklendi", e.Title))
		return e, nil
	})
}

func HandleUpdateEvent(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		in, err := decode[news.EventInput](r)
		if err != nil {
			return nil, err
		}
		e, err := s.News.UpdateEvent(r.Context(), actor, id, in)
		if err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.EventChanged, fmt.Sprintf("%s etkinliği güncellendi", e.Title))
		return e, nil
	})
}

func HandleDeleteEvent(s *Services) http.HandlerFunc {
	return action(http.StatusOK, "", func(r *http.Request, actor *models.User) (any, error) {
		id, err := idParam(r, "id")
		if err != nil {
			return nil, err
		}
		if err := s.News.DeleteEvent(r.Context(), actor, id); err != nil {
			return nil, err
		}
		s.Activity.Record(r.Context(), &actor.ID, activity.EventChanged, fmt.Sprintf("etkinlik %d silindi", id))
		return statusResponse{Status: "success"}, nil
	})
}

func HandleActivity(s *Services) http.HandlerFunc {
	return action(http.StatusOK, account.PermAdmin, func(r *http.Request, _ *models.User) (any, error) {
		return s.Activity.Recent(r.Context(), queryInt(r, "limit", 50))
	})
}

func HandleStats(s *Services) http.HandlerFunc {
	return action(http.StatusOK, account.PermAdmin, func(r *http.Request, _ *models.User) (any, error) {
		return stats.Collect(r.Context(), s.DB)
	})
}
