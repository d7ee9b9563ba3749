package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/steva-school/parent-portal/internal/flow"
	"github.com/steva-school/parent-portal/internal/profile"
	"github.com/steva-school/parent-portal/internal/recovery"
	"github.com/steva-school/parent-portal/internal/registration"
	"github.com/steva-school/parent-portal/internal/session"
	"github.com/steva-school/parent-portal/internal/verification"
	"github.com/steva-school/parent-portal/pkg/httputil"
)

type Deps struct {
	Sessions     *session.Manager
	Registration *registration.Flow
	Verification *verification.Flow
	Recovery     *recovery.Flow
	Profiles     *profile.Service
	Nav          flow.Navigator

	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	ah := &AuthHandlers{Sessions: d.Sessions, Registration: d.Registration}
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", ah.Login)
		r.Post("/logout", ah.Logout)
		r.Post("/refresh", ah.Refresh)
		r.Get("/session", ah.Session)
		r.Post("/register", ah.Register)
	})

	rh := &RecoveryHandlers{Recovery: d.Recovery}
	r.Route("/recovery", func(r chi.Router) {
		r.Post("/request", rh.Request)
		r.Post("/link", rh.Link)
		r.Post("/confirm", rh.Confirm)
	})

	// Authenticated screens refresh an expired access token first.
	r.Group(func(r chi.Router) {
		r.Use(requireFresh(d.Sessions))

		vh := &VerifyHandlers{Verification: d.Verification}
		r.Post("/verify", vh.Submit)

		ph := &ProfileHandlers{Sessions: d.Sessions, Profiles: d.Profiles, Nav: d.Nav}
		r.Route("/profile", func(r chi.Router) {
			r.Get("/", ph.Get)
			r.Patch("/", ph.Update)
			r.Get("/{parentId}", ph.Get)
			r.Patch("/{parentId}", ph.Update)
		})
	})

	return r
}

func requireFresh(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sessions.EnsureFresh(r.Context()); err != nil {
				writeError(w, r, err, "Your session has ended. Please sign in again", flow.ScreenLogin)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
