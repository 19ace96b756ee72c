package register

import (
	"context"
	"errors"
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
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registerer interface {
	RegisterNewUser(ctx context.Context, name, email, password string) (models.PublicAccount, error)
}

func New(log *slog.Logger, registerer Registerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

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

		acc, err := registerer.RegisterNewUser(ctx, req.Name, req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrVerificationEmailFailed) {
				log.Error("account created but verification email failed", slog.String("account_id", acc.ID))
			}

			handlers.RespondError(w, r, log, err)
			return
		}

		log.Info("User registered", slog.String("account_id", acc.ID))

		render.JSON(w, r, resp.Pending("Verification email sent", acc))
	}
}
