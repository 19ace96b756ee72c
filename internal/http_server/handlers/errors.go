package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger/sl"

	"github.com/go-chi/render"
)

// StatusFor maps a flow error to the HTTP status it is reported with.
func StatusFor(err error) int {
	if errors.Is(err, auth.ErrInvalidPassword) {
		return http.StatusUnprocessableEntity
	}

	var aerr *auth.Error
	if !errors.As(err, &aerr) {
		return http.StatusInternalServerError
	}

	switch aerr.Kind {
	case auth.KindConflict:
		return http.StatusConflict
	case auth.KindValidation, auth.KindAuth, auth.KindNotFound, auth.KindExpired:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// MessageFor returns the caller-facing text for err. Causes are never
// exposed.
func MessageFor(err error) string {
	var aerr *auth.Error
	if errors.As(err, &aerr) {
		return aerr.Message
	}

	return auth.ErrInternal.Message
}

// RespondError writes err as a Failed envelope. Server-side failures are
// logged with their cause.
func RespondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := StatusFor(err)

	if status >= http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Info("request rejected", slog.String("reason", MessageFor(err)))
	}

	render.Status(r, status)
	render.JSON(w, r, resp.Error(MessageFor(err)))
}

// RespondDecodeError reports an unreadable request body.
func RespondDecodeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Error("Failed to decode request body", sl.Err(err))

	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, resp.Error("Failed to decode request"))
}
