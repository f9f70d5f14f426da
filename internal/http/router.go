package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/redmonkez12/locklog/internal/accesslog"
	"github.com/redmonkez12/locklog/internal/auth"
	"github.com/redmonkez12/locklog/internal/card"
	"github.com/redmonkez12/locklog/internal/config"
	"github.com/redmonkez12/locklog/internal/device"
	"github.com/redmonkez12/locklog/internal/httputil"
	"github.com/redmonkez12/locklog/internal/lock"
	"github.com/redmonkez12/locklog/internal/logging"
	"github.com/redmonkez12/locklog/internal/project"
	"github.com/redmonkez12/locklog/internal/session"
)

const healthTimeout = 2 * time.Second

// Handlers groups the feature handlers mounted by NewRouter.
type Handlers struct {
	Auth      *auth.Handler
	Projects  *project.Handler
	Locks     *lock.Handler
	Cards     *card.Handler
	AccessLog *accesslog.Handler
	DeviceAPI *accesslog.APIHandler
}

// Pinger reports whether a backing store is reachable. *bun.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, sessions *session.Manager, devices device.Verifier, db Pinger, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	// Global middleware
	r.Use(SecurityHeaders)               // Security headers on all responses
	r.Use(middleware.Recoverer)          // Recover from panics
	r.Use(middleware.RequestID)          // Add request ID
	r.Use(middleware.RealIP)             // Set RemoteAddr to real IP
	r.Use(logging.RequestLogger(logger)) // Structured logging with request context
	r.Use(middleware.Compress(5))        // Compress responses

	r.Get("/health", handleHealth(db))

	// Device API: bearer token, no session or CSRF
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(device.RequireToken(devices))
		r.Post("/access", h.DeviceAPI.Record)
	})

	// Browser routes
	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Use(session.CSRF)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			httputil.Redirect(w, r, "/projects")
		})
		r.Get("/logout", h.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(session.RedirectIfAuthenticated("/locks"))
			r.Get("/login", h.Auth.LoginPage)
			r.Post("/login", h.Auth.Login)
			r.Get("/signup", h.Auth.SignupPage)
			r.Post("/signup", h.Auth.Signup)
			r.Get("/forgot", h.Auth.ForgotPage)
			r.Post("/forgot", h.Auth.Forgot)
			r.Get("/reset/{token}", h.Auth.ResetPage)
			r.Post("/reset/{token}", h.Auth.Reset)
		})

		r.Group(func(r chi.Router) {
			r.Use(session.RequireAuth)

			r.Get("/account", h.Auth.Account)
			r.Post("/account/profile", h.Auth.UpdateProfile)
			r.Post("/account/password", h.Auth.ChangePassword)
			r.Post("/account/delete", h.Auth.DeleteAccount)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", h.Projects.List)
				r.Post("/", h.Projects.Create)
				r.Get("/create", h.Projects.CreatePage)
				r.Get("/update/{id}", h.Projects.UpdatePage)
				r.Post("/update/{id}", h.Projects.Update)
				r.Post("/delete/{id}", h.Projects.Delete)
				r.Get("/{id}", h.Projects.Show)
				r.Post("/{id}", h.Projects.Update)
			})

			r.Route("/locks", func(r chi.Router) {
				r.Get("/", h.Locks.List)
				r.Post("/", h.Locks.Create)
				r.Post("/delete/{id}", h.Locks.Delete)
				r.Get("/{id}", h.Locks.Show)
				r.Post("/{id}", h.Locks.Update)
				r.Post("/{id}/token", h.Locks.IssueToken)
			})

			r.Route("/cards", func(r chi.Router) {
				r.Get("/", h.Cards.List)
				r.Post("/", h.Cards.Create)
				r.Post("/delete/{id}", h.Cards.Delete)
				r.Get("/{id}", h.Cards.Show)
				r.Post("/{id}", h.Cards.Update)
			})

			r.Route("/access-log", func(r chi.Router) {
				r.Get("/", h.AccessLog.List)
				r.Post("/", h.AccessLog.Record)
				r.Get("/score/report", h.AccessLog.Report)
				r.Get("/{id}", h.AccessLog.Show)
				r.Post("/{id}", h.AccessLog.UpdateScore)
			})
		})
	})

	return r
}

// handleHealth reports 503 while the database is unreachable.
func handleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logging.GetLoggerFromContext(r.Context()).Error("health check failed", "error", err.Error())
			httputil.RespondErrorWithCode(w, "database unavailable", httputil.CodeUnavailable, http.StatusServiceUnavailable)
			return
		}
		httputil.RespondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}
}
