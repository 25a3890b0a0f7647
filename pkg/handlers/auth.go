package handlers

import (
	"log"
	"net/http"
	"strings"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/database"
	"masterhelp-backend/pkg/middleware"
	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"
)

// AuthHandler handles registration, login and the password flows
type AuthHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	jwt    *utils.JWTService
}

func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		db:     db,
		jwt:    utils.NewJWTService(cfg.JWTSecret),
	}
}

// GET /
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(); err != nil {
		utils.WriteErrorResponse(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"status":      "ok",
		"service":     "masterhelp-backend",
		"environment": h.config.Environment,
	})
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		utils.WriteBadRequestResponse(w, "username, email and a password of at least 8 characters are required")
		return
	}

	if _, err := h.db.GetUserByUsername(req.Username); err == nil {
		utils.WriteUnauthorizedResponse(w, "Username or email already exists")
		return
	}
	if _, err := h.db.GetUserByEmail(req.Email); err == nil {
		utils.WriteUnauthorizedResponse(w, "Username or email already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Could not hash password")
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
	}
	if err := h.db.CreateUser(user); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create user failed: "+err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"message": "User registered",
		"user":    user,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	user, err := h.db.GetUserByUsername(strings.TrimSpace(req.Username))
	if err != nil || !utils.CheckPasswordHash(req.Password, user.Password) {
		utils.WriteUnauthorizedResponse(w, "Invalid credentials")
		return
	}

	access, refresh, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Could not issue tokens")
		return
	}

	utils.WriteCreatedResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
	})
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	claims, err := h.jwt.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid refresh token")
		return
	}

	// The user may have been deleted since the token was issued
	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid refresh token")
		return
	}

	access, refresh, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Username)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Could not issue tokens")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    expiresIn,
	})
}

// POST /auth/forgot-password
// Always answers with the same message so the endpoint does not disclose
// which emails have accounts.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	if user, err := h.db.GetUserByEmail(strings.TrimSpace(strings.ToLower(req.Email))); err == nil {
		if token, err := h.jwt.GenerateResetToken(user.ID, user.Username); err == nil {
			// Mail delivery is not wired up; the reset link is logged so an
			// operator can forward it manually.
			log.Printf("password reset requested for %s: %s/reset-password?token=%s",
				user.Email, h.config.FrontendURL, token)
		}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "If the email exists, a reset link has been sent",
	})
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if len(req.NewPassword) < 8 {
		utils.WriteBadRequestResponse(w, "Password must be at least 8 characters")
		return
	}

	claims, err := h.jwt.ValidateResetToken(req.Token)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired reset token")
		return
	}

	user, err := h.db.GetUserByID(claims.UserID)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid or expired reset token")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Could not hash password")
		return
	}
	user.Password = hash
	if err := h.db.UpdateUser(user); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"message": "Password updated"})
}

// PUT /auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctxUser, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if len(req.NewPassword) < 8 {
		utils.WriteBadRequestResponse(w, "Password must be at least 8 characters")
		return
	}

	user, err := h.db.GetUserByID(ctxUser.ID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	if !utils.CheckPasswordHash(req.CurrentPassword, user.Password) {
		utils.WriteUnauthorizedResponse(w, "Invalid credentials")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Could not hash password")
		return
	}
	user.Password = hash
	if err := h.db.UpdateUser(user); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"message": "Password updated"})
}
