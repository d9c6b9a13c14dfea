package handler

import (
	"log/slog"
	"net/http"

	"notely-server/internal/config"
	"notely-server/internal/identity"
	"notely-server/internal/middleware"
	"notely-server/internal/service"

	"github.com/gorilla/mux"
)

type Deps struct {
	Notes    *service.NoteService
	Users    *service.UserService
	Resolver identity.Resolver
	Store    Pinger
	Config   *config.Config
	Logger   *slog.Logger
}

// NewRouter wires every route. Everything under /api requires a resolved
// identity; preflight requests are answered by the CORS middleware before
// authentication runs.
func NewRouter(d Deps) *mux.Router {
	noteHandler := NewNoteHandler(d.Notes, d.Logger)
	userHandler := NewUserHandler(d.Users, d.Logger)
	healthHandler := NewHealthHandler(d.Store, d.Logger)

	r := mux.NewRouter()

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware(d.Logger))
	r.Use(middleware.CORSMiddleware(d.Config.CORS))

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(d.Resolver, d.Users, d.Config.Identity.Timeout, d.Logger))

	api.HandleFunc("/notes", noteHandler.List).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/notes", noteHandler.Create).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/notes/{id}", noteHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/notes/{id}", noteHandler.Update).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/notes/{id}", noteHandler.Delete).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/notes/{id}/archive", noteHandler.Archive).Methods(http.MethodPatch, http.MethodOptions)

	api.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/users/me", userHandler.UpdateMe).Methods(http.MethodPatch, http.MethodOptions)
	api.HandleFunc("/users/me", userHandler.DeleteMe).Methods(http.MethodDelete, http.MethodOptions)

	r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", healthHandler.Ready).Methods(http.MethodGet)
	r.HandleFunc("/", healthHandler.Root).Methods(http.MethodGet)

	return r
}
