package resend

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"account_service/internal/http_server/handlers"
	resp "account_service/internal/lib/api/response"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	Email string `json:"email"`
}

type Resender interface {
	ResendVerification(ctx context.Context, email string) error
}

// New serves POST /user/verify/resend. The answer is the same whether or
// not the email belongs to a pending account.
func New(log *slog.Logger, resender Resender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resend.New"

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

		if err := resender.ResendVerification(ctx, req.Email); err != nil {
			handlers.RespondError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp.Pending("If the account is awaiting verification, a new email has been sent", nil))
	}
}
