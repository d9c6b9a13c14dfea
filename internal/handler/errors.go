package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"notely-server/internal/domain"
	"notely-server/internal/middleware"
	"notely-server/pkg/response"
)

// writeError maps a service error to its status code. Unknown errors are
// logged with op and attrs and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op, notFoundMsg string, err error, attrs ...any) {
	var verr *domain.ValidationError

	switch {
	case errors.As(err, &verr):
		response.BadRequest(w, verr.Message)
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(w, "Invalid request")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, notFoundMsg)
	case errors.Is(err, domain.ErrForbidden):
		response.Forbidden(w, "Access denied")
	case errors.Is(err, domain.ErrAlreadyExists):
		response.Conflict(w, "Resource already exists")
	case errors.Is(err, domain.ErrUnauthenticated):
		response.Unauthorized(w, "Unauthorized")
	default:
		args := append([]any{"op", op, "request_id", middleware.GetRequestID(r), "error", err}, attrs...)
		logger.Error("request failed", args...)
		response.InternalError(w, "Internal server error")
	}
}
