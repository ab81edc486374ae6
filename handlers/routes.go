package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/icco/animeportal/lib/health"
	"github.com/icco/animeportal/lib/metrics"
)

// NewRouter wires every page and API route.
func NewRouter(s *Services) http.Handler {
	sec := s.Config.Security
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(SecurityHeaders(sec.HSTS))

	r.Get("/health", health.Check(s.DB, s.SessionStore))
	r.Handle("/metrics", metrics.Handler())

	throttle := httprate.LimitByIP(sec.AuthRateLimit, sec.AuthRateWindow)

	r.Group(func(r chi.Router) {
		r.Use(s.Sessions.Middleware)
		r.Use(LoadUser(s.Accounts, s.Logger))

		r.Get("/", HandleHome(s))
		r.Get("/anime/{id}", HandleAnimePage(s))
		r.Get("/episode/{id}", HandleEpisodePage(s))

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   sec.CORSOrigins,
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))

			r.Get("/home", HandleHomeAPI(s))
			r.Get("/anime", HandleListAnime(s.Catalog, s.Config.Catalog.PageSize))
			r.Get("/anime/{id}", HandleGetAnime(s))
			r.Post("/anime/{id}/rate", HandleRate(s.Ratings))
			r.Get("/episodes/{id}", HandleGetEpisode(s))
			r.Get("/genres", HandleGenres(s.Catalog))

			r.With(throttle).Post("/register", HandleRegister(s.Accounts, s.Sessions))
			r.With(throttle).Post("/login", HandleLogin(s.Accounts, s.Sessions, s.Logger))
			r.Post("/logout", HandleLogout(s.Sessions, s.Logger))

			r.With(throttle).Post("/community/apply", HandleApply(s.Community))
			r.Get("/community", HandleCommunityInfo(s.Community))
			r.Get("/news", HandleNews(s.News))
			r.Get("/news/{id}", HandleNewsItem(s.News))
			r.Get("/events", HandleUpcomingEvents(s.News))

			r.Group(func(r chi.Router) {
				r.Use(RequireLogin)

				r.Get("/me", HandleMe())
				r.Post("/me/password", HandleChangePassword(s.Accounts))
				r.Get("/me/ratings", HandleMyRatings(s.Ratings))

				r.Get("/watchlist", HandleWatchlist(s.Library))
				r.Post("/watchlist/{animeID}", HandleAddToWatchlist(s.Library))
				r.Delete("/watchlist/{animeID}", HandleRemoveFromWatchlist(s.Library))

				r.Get("/notifications", HandleNotifications(s.Library))
				r.Get("/notifications/unread", HandleUnreadCount(s.Library))
				r.Post("/notifications/read", HandleMarkAllRead(s.Library))
				r.Post("/notifications/{id}/read", HandleMarkRead(s.Library))

				r.Get("/forum", HandleForumCategories(s.Community))
				r.Get("/forum/categories/{id}", HandleForumThreads(s.Community))
				r.Get("/forum/threads/{id}", HandleForumThread(s.Community))
				r.Post("/forum/threads", HandleCreateThread(s.Community))
				r.Post("/forum/threads/{id}/posts", HandleCreatePost(s.Community))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireStaff)

				r.Get("/stats", HandleStats(s))
				r.Get("/activity", HandleActivity(s))

				r.Post("/anime", HandleCreateAnime(s))
				r.Put("/anime/{id}", HandleUpdateAnime(s))
				r.Delete("/anime/{id}", HandleDeleteAnime(s))
				r.Post("/anime/{id}/episodes", HandleAddEpisode(s))
				r.Delete("/episodes/{id}", HandleDeleteEpisode(s))

				r.Get("/genres", HandleAllGenres(s))
				r.Post("/genres", HandleCreateGenre(s))
				r.Post("/genres/suggest", HandleSuggestGenres(s))
				r.Delete("/genres/{id}", HandleDeleteGenre(s))

				r.Get("/users", HandleListUsers(s))
				r.Post("/users", HandleCreateUser(s))
				r.Put("/users/{id}/permissions", HandleSetPermissions(s))
				r.Delete("/users/{id}", HandleDeleteUser(s))

				r.Get("/members", HandleListMembers(s))
				r.Get("/members/export", HandleExportMembers(s))
				r.Get("/members/{id}", HandleGetMember(s))
				r.Post("/members/{id}/approve", HandleApproveMember(s))
				r.Delete("/members/{id}", HandleRejectMember(s))

				r.Put("/community", HandleSaveCommunityInfo(s))
				r.Post("/forum/categories", HandleCreateCategory(s))
				r.Delete("/forum/categories/{id}", HandleDeleteCategory(s))
				r.Delete("/forum/threads/{id}", HandleDeleteThread(s))
				r.Delete("/forum/posts/{id}", HandleDeletePost(s))

				r.Post("/news", HandleCreateNews(s))
				r.Put("/news/{id}", HandleUpdateNews(s))
				r.Delete("/news/{id}", HandleDeleteNews(s))

				r.Get("/events", HandleAllEvents(s))
				r.Post("/events", HandleCreateEvent(s))
				r.Put("/events/{id}", HandleUpdateEvent(s))
				r.Delete("/events/{id}", HandleDeleteEvent(s))
			})
		})
	})

	return r
}
