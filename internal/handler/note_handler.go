package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"notely-server/internal/domain"
	"notely-server/internal/middleware"
	"notely-server/internal/service"
	"notely-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const noteNotFound = "Note not found"

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewNoteHandler(service *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// loadOwned fetches the note named in the path and checks it belongs to the
// caller. Existence is checked first. On failure the response is written and
// ok is false.
func (h *NoteHandler) loadOwned(w http.ResponseWriter, r *http.Request, op string) (*domain.Note, bool) {
	noteID := mux.Vars(r)["id"]
	if noteID == "" {
		response.BadRequest(w, "Note ID is required")
		return nil, false
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.GetByID(r.Context(), noteID)
	if err != nil {
		writeError(w, r, h.logger, op, noteNotFound, err, "note_id", noteID, "user_id", userID)
		return nil, false
	}

	if note.UserID != userID {
		h.logger.Warn("note access denied",
			"op", op,
			"request_id", middleware.GetRequestID(r),
			"note_id", noteID,
			"user_id", userID,
		)
		response.Forbidden(w, "Access denied")
		return nil, false
	}

	return note, true
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	notes, err := h.service.ListByOwner(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, "list notes", noteNotFound, err, "user_id", userID)
		return
	}

	response.Success(w, domain.NoteListResponse{Notes: notes})
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "Title and content are required")
		return
	}

	userID := middleware.GetUserID(r)

	note, err := h.service.Create(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		writeError(w, r, h.logger, "create note", userNotFound, err, "user_id", userID)
		return
	}

	response.Created(w, domain.NoteResponse{Note: note})
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, ok := h.loadOwned(w, r, "get note")
	if !ok {
		return
	}

	response.Success(w, domain.NoteResponse{Note: note})
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "Title and content are required")
		return
	}

	existing, ok := h.loadOwned(w, r, "update note")
	if !ok {
		return
	}

	note, err := h.service.Update(r.Context(), existing.ID, domain.NotePatch{
		Title:   &req.Title,
		Content: &req.Content,
	})
	if err != nil {
		writeError(w, r, h.logger, "update note", noteNotFound, err, "note_id", existing.ID)
		return
	}

	response.Success(w, domain.NoteResponse{Note: note})
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadOwned(w, r, "delete note")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), existing.ID); err != nil {
		writeError(w, r, h.logger, "delete note", noteNotFound, err, "note_id", existing.ID)
		return
	}

	response.Message(w, "Note deleted successfully")
}

func (h *NoteHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req domain.ArchiveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "isArchived must be a boolean")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "isArchived must be a boolean")
		return
	}

	existing, ok := h.loadOwned(w, r, "archive note")
	if !ok {
		return
	}

	note, err := h.service.SetArchived(r.Context(), existing.ID, *req.IsArchived)
	if err != nil {
		writeError(w, r, h.logger, "archive note", noteNotFound, err, "note_id", existing.ID)
		return
	}

	response.Success(w, domain.NoteResponse{Note: note})
}
