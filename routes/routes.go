package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/faculty-auth/app"
	"github.com/upb/faculty-auth/middleware"
	"github.com/upb/faculty-auth/models"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	if deps.Config.Server.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestMeta)
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(deps.Metrics.Instrument)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps.Config.Server.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// Public keys for services verifying our access tokens
	r.Get("/.well-known/jwks.json", deps.AuthHandler.HandleJWKS)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Credential endpoints are throttled per client IP
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.Handler)
				r.Post("/login", deps.AuthHandler.HandleLogin)
				r.Post("/refresh", deps.AuthHandler.HandleRefresh)
			})
			r.Post("/logout", deps.AuthHandler.HandleLogout)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Use(deps.AuthMiddleware.ResolveTenant)
				r.Get("/me", deps.AuthHandler.HandleMe)
				r.Get("/me/activity", deps.ActivityHandler.HandleMyActivity)
			})
		})

		// Faculty-owned data, always filtered by the caller's tenant
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.ResolveTenant)

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", deps.CatalogHandler.HandleListCourses)
				r.Get("/{id}", deps.CatalogHandler.HandleGetCourse)
				r.With(deps.AuthMiddleware.RequireRole(models.RoleAdmin, models.RoleSuperadmin)).
					Post("/", deps.CatalogHandler.HandleCreateCourse)
			})

			r.Route("/students", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(models.RoleProfessor, models.RoleAssistant, models.RoleAdmin, models.RoleSuperadmin))
				r.Get("/", deps.CatalogHandler.HandleListStudents)
				r.Get("/{id}", deps.CatalogHandler.HandleGetStudent)
			})

			// Cross-faculty reads; every call is audited
			r.Route("/admin", func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireRole(models.RoleSuperadmin))
				r.Get("/courses", deps.CatalogHandler.HandleListAllCourses)
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"http://localhost:*"}
	}
	return configured
}
