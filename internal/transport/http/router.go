package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"galaxy-core/internal/command"
	"galaxy-core/internal/config"
	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/gameclock"
	"galaxy-core/internal/mcpserver"
	"galaxy-core/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Store    store.Backend
	Engine   *gameclock.Engine
	Registry *command.Registry
	Bus      *eventbus.Bus
}

func NewRouter(cfg config.ServerConfig, deps Deps) *chi.Mux {
	adminHandlers := NewAdminHandlers(deps.Store, deps.Engine)
	clockHandlers := NewClockHandlers(deps.Engine)
	commandHandlers := NewCommandHandlers(deps.Registry)
	mcpSrv := mcpserver.New(deps.Engine, deps.Registry, deps.Store)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/clock", clockHandlers.Status())
		r.Get("/sessions/{session_id}", clockHandlers.Session())
		r.Get("/commands", commandHandlers.List())
		r.Get("/events", EventsSSEHandler(deps.Bus))
		r.With(BodyCaptureMiddleware(4096)).
			Post("/sessions/{session_id}/commands/{command_id}", commandHandlers.Execute())

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/sessions", adminHandlers.CreateSession())
			r.Post("/sessions/{session_id}/register", clockHandlers.Register())
			r.Post("/sessions/{session_id}/pause", clockHandlers.Pause())
			r.Post("/sessions/{session_id}/resume", clockHandlers.Resume())
			r.Post("/sessions/{session_id}/finish", adminHandlers.FinishSession())
			r.Post("/sessions/{session_id}/actors", adminHandlers.CreateActor())
			r.Get("/actors/{actor_id}/ledger", adminHandlers.ActorLedger())
			r.Get("/commands/stats", commandHandlers.Stats())
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
