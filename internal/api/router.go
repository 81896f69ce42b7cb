package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/action"
	"github.com/rungomx/server/internal/api/handlers"
	"github.com/rungomx/server/internal/api/middleware"
	"github.com/rungomx/server/internal/api/render"
	"github.com/rungomx/server/internal/config"
	"github.com/rungomx/server/internal/i18n"
	"github.com/rungomx/server/internal/metrics"
)

// Deps are the collaborators the router wires into handlers. Everything is
// built by the serve command.
type Deps struct {
	Config        config.Config
	Logger        zerolog.Logger
	Authenticator middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Negotiator    *i18n.Negotiator
	CSRFKey       []byte

	Groups    handlers.GroupsService
	Redirects handlers.RedirectResolver
	Messages  handlers.MessageCatalog
	Users     handlers.UserDeleter
	Health    *handlers.HealthChecker

	Version   string
	GitCommit string
	BuildDate string
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	secureCookies := cfg.Auth.CookieSecure

	groupsHandler := handlers.NewGroupsHandler(deps.Groups)
	redirectsHandler := handlers.NewRedirectsHandler(deps.Redirects)
	messagesHandler := handlers.NewMessagesHandler(deps.Messages)
	usersHandler := handlers.NewUsersHandler(deps.Users, secureCookies)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.CorrelationID(deps.Logger, cfg.RateLimit.TrustedProxyCIDRs))
	r.Use(middleware.Tracing)
	r.Use(metrics.HTTPMiddleware)
	r.Use(middleware.RequestLogging)

	r.Get("/healthz", deps.Health.Healthz())
	r.Get("/readyz", deps.Health.Readyz())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/version", handlers.Version(deps.Version, deps.GitCommit, deps.BuildDate))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
		r.Use(middleware.CORS(cfg.CORS, deps.Logger))
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			render.Fail(w, action.CodeNotFound, "")
		})

		r.Get("/openapi.json", OpenAPIHandler())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequestSize(middleware.DefaultMaxBodySize))
			r.Use(middleware.Session(deps.Authenticator))
			r.Use(deps.RateLimiter.Handler)
			r.Use(middleware.CSRFProtection(deps.CSRFKey, secureCookies))
			r.Use(middleware.Locale(deps.Negotiator))

			r.Get("/csrf-token", handlers.CSRFToken)
			r.Get("/messages", messagesHandler.Get)
			r.Get("/event-redirects/{seriesSlug}/{editionSlug}", redirectsHandler.Resolve)
			r.Get("/registration-groups/by-token/{token}", groupsHandler.Overview)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession)

				r.Post("/registration-groups", groupsHandler.Create)
				r.Post("/registration-groups/join", groupsHandler.Join)
				r.Delete("/registration-groups/{groupID}", groupsHandler.Disable)
				r.Post("/registration-groups/{groupID}/leave", groupsHandler.Leave)
				r.Delete("/registration-groups/{groupID}/members/{userID}", groupsHandler.RemoveMember)
				r.Delete("/users/{userID}", usersHandler.Delete)
			})
		})
	})

	// Everything else is a locale-prefixed page.
	r.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
		r.Use(middleware.Session(deps.Authenticator))
		r.Use(deps.RateLimiter.Handler)
		r.Use(middleware.Pages(deps.Negotiator, secureCookies))

		r.Get("/", messagesHandler.Page)
		r.Get("/*", messagesHandler.Page)
	})

	return r
}
