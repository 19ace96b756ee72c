package login

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"account_service/internal/auth"
	"account_service/internal/http_server/handlers"
	resp "account_service/internal/lib/api/response"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Data struct {
	Token   string               `json:"token"`
	Account models.PublicAccount `json:"account"`
}

// Cookie describes the cookie the session token is set in.
type Cookie struct {
	Name   string
	Secure bool
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

func New(log *slog.Logger, authenticator Authenticator, cookie Cookie) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			handlers.RespondDecodeError(w, r, log, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		session, err := authenticator.Login(ctx, req.Email, req.Password)
		if err != nil {
			handlers.RespondError(w, r, log, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cookie.Name,
			Value:    session.Token,
			Path:     "/",
			HttpOnly: true,
			Secure:   cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})

		log.Info("User logged in successfully", slog.String("account_id", session.Account.ID))

		render.JSON(w, r, resp.OK("Login successful", Data{
			Token:   session.Token,
			Account: session.Account,
		}))
	}
}
