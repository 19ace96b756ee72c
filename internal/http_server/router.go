package httpserver

import (
	"log/slog"
	"net/http"

	"account_service/internal/http_server/handlers/login"
	"account_service/internal/http_server/handlers/register"
	"account_service/internal/http_server/handlers/resend"
	"account_service/internal/http_server/handlers/verify"
	resp "account_service/internal/lib/api/response"
	rateLimit "account_service/internal/middleware/ratelimit"
	"account_service/internal/middleware/sanitize"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// Service is the set of account flows the router exposes.
type Service interface {
	register.Registerer
	verify.Verifier
	resend.Resender
	login.Authenticator
}

type Options struct {
	AllowedOrigins []string
	Cookie         login.Cookie
	Limits         rateLimit.Limits
}

func NewRouter(log *slog.Logger, svc Service, opts Options) *chi.Mux {
	validate := validator.New(validator.WithRequiredStructEnabled())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.OK("ok", nil))
	})

	r.Route("/user", func(r chi.Router) {
		// fields the flows validate themselves must reach them unchanged
		r.Use(sanitize.Input("password", "name", "email"))

		r.With(rateLimit.Signup(opts.Limits)).
			Post("/signup", register.New(log, svc))
		r.With(rateLimit.Verify(opts.Limits)).
			Get("/verify/{accountID}/{token}", verify.New(log, validate, svc))
		r.With(rateLimit.ResendVerificationEmail(opts.Limits)).
			Post("/verify/resend", resend.New(log, svc))
		r.With(rateLimit.Login(opts.Limits)).
			Post("/login", login.New(log, svc, opts.Cookie))
	})

	return r
}
