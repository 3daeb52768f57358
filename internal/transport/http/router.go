package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-user-registration/internal/application/user"
	"github.com/go-user-registration/internal/config"
	"github.com/go-user-registration/internal/transport/http/handler"
	appmiddleware "github.com/go-user-registration/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo  UserRepository
	CodeStore CodeStore
	Publisher EventPublisher
}

// NewRouter builds and returns the application router. ctx bounds the
// rate limiter's background sweep.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on every endpoint that issues or checks a code.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10)
	basicAuth := appmiddleware.BasicAuth("users")

	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:  deps.UserRepo,
		CodeStore: deps.CodeStore,
		Publisher: deps.Publisher,
	})

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(userSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/users", func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/register", userH.Register)
			r.With(basicAuth).Post("/resend-code", userH.ResendCode)
			r.With(basicAuth).Post("/activate", userH.Activate)
		})
	})

	return r
}
