package verify

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"account_service/internal/auth"
	"account_service/internal/http_server/handlers"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger/sl"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Params struct {
	AccountID string `validate:"required,uuid4"`
	Token     string `validate:"required"`
}

type Verifier interface {
	VerifyUser(ctx context.Context, accountID, secret string) error
}

// New serves GET /user/verify/{accountID}/{token}.
func New(log *slog.Logger, validate *validator.Validate, verifier Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.verify.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		params := Params{
			AccountID: chi.URLParam(r, "accountID"),
			Token:     chi.URLParam(r, "token"),
		}

		if err := validate.Struct(params); err != nil {
			log.Info("Invalid verification link", sl.Err(err))

			// a malformed link cannot name a pending account
			handlers.RespondError(w, r, log, auth.ErrAlreadyVerifiedOrMissing)

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := verifier.VerifyUser(ctx, params.AccountID, params.Token); err != nil {
			handlers.RespondError(w, r, log, err)
			return
		}

		log.Info("email verified successfully", slog.String("account_id", params.AccountID))

		render.JSON(w, r, resp.OK("Email verified successfully", nil))
	}
}
