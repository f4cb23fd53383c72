// Package api assembles the HTTP surface: middleware stack, route table and
// the websocket entry point.
package api

import (
	"net/http"
	"time"

	"taskboard-backend/pkg/config"
	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/gateway"
	"taskboard-backend/pkg/handlers"
	"taskboard-backend/pkg/middleware"
	"taskboard-backend/pkg/realtime"
	"taskboard-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the full application router. The hub doubles as the
// gateway's broadcaster, so every accepted mutation reaches the rooms without
// the handlers knowing about delivery.
func NewRouter(cfg *config.Config, db database.DatabaseInterface, hub *realtime.Hub) *chi.Mux {
	gw := gateway.New(db, hub)

	authHandler := handlers.NewAuthHandler(cfg, db)
	projectHandler := handlers.NewProjectHandler(cfg, db, gw)
	taskHandler := handlers.NewTaskHandler(cfg, db, gw)
	realtimeHandler := handlers.NewRealtimeHandler(cfg, hub)

	r := chi.NewRouter()
	setupMiddleware(r, cfg)
	setupRoutes(r, cfg, db, authHandler, projectHandler, taskHandler, realtimeHandler)
	return r
}

// setupMiddleware installs the shared middleware stack
func setupMiddleware(r *chi.Mux, cfg *config.Config) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	if cfg.IsDevelopment() {
		r.Use(middleware.CustomLogger())
	} else {
		r.Use(middleware.Logger())
	}

	r.Use(middleware.Recovery())
	r.Use(middleware.CORSMiddleware(cfg))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(30 * time.Second))
}

// setupRoutes installs the route table
func setupRoutes(
	r *chi.Mux,
	cfg *config.Config,
	db database.DatabaseInterface,
	authHandler *handlers.AuthHandler,
	projectHandler *handlers.ProjectHandler,
	taskHandler *handlers.TaskHandler,
	realtimeHandler *handlers.RealtimeHandler,
) {
	// Health check
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.HealthCheck(); err != nil {
			utils.WriteBadGatewayResponse(w, "Database unreachable")
			return
		}
		utils.WriteSuccessResponse(w, map[string]string{"status": "ok"})
	})

	// Auth (no token required)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)
	})

	// Public directory routes. Intentionally unauthenticated: names and
	// owners only, never tasks or members.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthMiddleware(cfg))
		r.Get("/api/all-projects", projectHandler.ListAllProjects)
		r.Get("/api/users/emails", projectHandler.ListUserEmails)
	})

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg))

		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListProjects)
			r.Post("/", projectHandler.CreateProject)

			r.Route("/{projectId}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Put("/", projectHandler.RenameProject)
				r.Delete("/", projectHandler.DeleteProject)

				r.Post("/invite", projectHandler.InviteMember)
				r.Delete("/members/{userId}", projectHandler.RemoveMember)

				r.Get("/analytics", projectHandler.GetAnalytics)
				r.Get("/export", projectHandler.ExportProject)

				r.Post("/tasks", taskHandler.CreateTask)
			})
		})

		r.Route("/api/tasks", func(r chi.Router) {
			r.Patch("/{taskId}", taskHandler.UpdateTask)
			r.Delete("/{taskId}", taskHandler.DeleteTask)
		})
	})

	// Realtime; the handler does its own token check before upgrading
	r.Get("/ws", realtimeHandler.ServeWS)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		utils.WriteNotFoundResponse(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", "")
	})
}
