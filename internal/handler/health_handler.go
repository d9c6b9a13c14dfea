package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"notely-server/pkg/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
	now    func() time.Time
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (h *HealthHandler) timestamp() string {
	return h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Health reports process liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, HealthResponse{Status: "OK", Timestamp: h.timestamp()})
}

// Ready additionally checks that the store answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		response.Error(w, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	response.Success(w, HealthResponse{Status: "OK", Timestamp: h.timestamp()})
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]interface{}{
		"message": "Notely API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"/api/notes":              "GET, POST (protected)",
			"/api/notes/{id}":         "GET, PUT, DELETE (protected)",
			"/api/notes/{id}/archive": "PATCH (protected)",
			"/api/users/me":           "GET, PATCH, DELETE (protected)",
			"/health":                 "GET",
			"/ready":                  "GET",
		},
	})
}
