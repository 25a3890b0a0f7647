package handlers

import (
	"net/http"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/database"
	"masterhelp-backend/pkg/middleware"
	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// UsersHandler exposes profile lookup and self-service account operations
type UsersHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewUsersHandler(cfg *config.Config, db database.DatabaseInterface) *UsersHandler {
	return &UsersHandler{config: cfg, db: db}
}

// GET /users/{id}
func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chiRoute.URLParam(r, "id")
	user, err := h.db.GetUserByID(userID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user})
}

// PUT /users/{id}/preferences
// A user can only change their own preferences.
func (h *UsersHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctxUser, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	userID := chiRoute.URLParam(r, "id")
	if userID != ctxUser.ID {
		utils.WriteForbiddenResponse(w, "You can only update your own preferences")
		return
	}

	var req models.UpdatePreferencesRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.Theme != "" && req.Theme != "light" && req.Theme != "dark" {
		utils.WriteBadRequestResponse(w, "Theme must be light or dark")
		return
	}

	user, err := h.db.GetUserByID(userID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	if req.Language != "" {
		user.Language = req.Language
	}
	if req.Theme != "" {
		user.Theme = req.Theme
	}
	if err := h.db.UpdateUser(user); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user})
}

// DELETE /users/{id}
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctxUser, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	userID := chiRoute.URLParam(r, "id")
	if userID != ctxUser.ID {
		utils.WriteForbiddenResponse(w, "You can only delete your own account")
		return
	}

	if _, err := h.db.GetUserByID(userID); err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	if err := h.db.DeleteUser(userID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": userID})
}
