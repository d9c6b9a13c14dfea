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
)

const userNotFound = "User not found"

type UserHandler struct {
	userService *service.UserService
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewUserHandler(userService *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		validate:    validator.New(),
		logger:      logger,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, "get user", userNotFound, err, "user_id", userID)
		return
	}

	response.Success(w, domain.UserResponse{User: user})
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, validationMessage(err))
		return
	}

	userID := middleware.GetUserID(r)

	user, err := h.userService.Update(r.Context(), userID, domain.UserPatch{
		Email:     req.Email,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeError(w, r, h.logger, "update user", userNotFound, err, "user_id", userID)
		return
	}

	response.Success(w, domain.UserResponse{User: user})
}

// DeleteMe removes the caller's account and all of their notes.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		writeError(w, r, h.logger, "delete user", userNotFound, err, "user_id", userID)
		return
	}

	h.logger.Info("user deleted", "user_id", userID, "request_id", middleware.GetRequestID(r))
	response.Message(w, "User deleted successfully")
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "email":
		return "email must be a valid email address"
	case "url":
		return "avatarUrl must be a valid URL"
	case "max":
		return fe.Field() + " is too long"
	}
	return fe.Field() + " is invalid"
}
