package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	cfg := newTestConfig(t)
	db := newTestDB(t)
	h := NewAuthHandler(cfg, db)

	register := func(username, email, password string) *httptest.ResponseRecorder {
		r := jsonRequest(t, http.MethodPost, "/auth/register", models.UserRegisterRequest{
			Username: username, Email: email, Password: password,
		})
		rec := httptest.NewRecorder()
		h.Register(rec, r)
		return rec
	}

	rec := register("frodo", "frodo@shire.example", "precious123")
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	require.NotContains(t, rec.Body.String(), "precious123")
	require.NotContains(t, rec.Body.String(), "password_hash")

	// duplicate username and duplicate email both refuse
	require.Equal(t, http.StatusUnauthorized, register("frodo", "other@shire.example", "precious123").Code)
	require.Equal(t, http.StatusUnauthorized, register("sam", "frodo@shire.example", "precious123").Code)

	// short password
	require.Equal(t, http.StatusBadRequest, register("merry", "merry@shire.example", "short").Code)

	login := func(username, password string) *httptest.ResponseRecorder {
		r := jsonRequest(t, http.MethodPost, "/auth/login", models.UserLoginRequest{
			Username: username, Password: password,
		})
		rec := httptest.NewRecorder()
		h.Login(rec, r)
		return rec
	}

	rec = login("frodo", "precious123")
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.NotEmpty(t, env.Data["access_token"])
	require.NotEmpty(t, env.Data["refresh_token"])

	// the access token passes validation with the configured secret
	jwtService := utils.NewJWTService(cfg.JWTSecret)
	claims, err := jwtService.ValidateToken(env.Data["access_token"].(string))
	require.NoError(t, err)
	require.Equal(t, "frodo", claims.Username)
	require.Equal(t, "access", claims.Type)

	requireErrorMessage(t, login("frodo", "wrong-password"), http.StatusUnauthorized, "Invalid credentials")
	requireErrorMessage(t, login("nobody", "precious123"), http.StatusUnauthorized, "Invalid credentials")
}

func TestRefreshToken(t *testing.T) {
	cfg := newTestConfig(t)
	db := newTestDB(t)
	h := NewAuthHandler(cfg, db)
	user := createTestUser(t, db, "aragorn")

	jwtService := utils.NewJWTService(cfg.JWTSecret)
	access, refresh, _, err := jwtService.GenerateTokenPair(user.ID, user.Username)
	require.NoError(t, err)

	call := func(token string) *httptest.ResponseRecorder {
		r := jsonRequest(t, http.MethodPost, "/auth/refresh", models.RefreshTokenRequest{RefreshToken: token})
		rec := httptest.NewRecorder()
		h.Refresh(rec, r)
		return rec
	}

	rec := call(refresh)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.NotEmpty(t, env.Data["access_token"])

	// an access token is not accepted as a refresh token
	require.Equal(t, http.StatusUnauthorized, call(access).Code)
	require.Equal(t, http.StatusUnauthorized, call("garbage").Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	cfg := newTestConfig(t)
	db := newTestDB(t)
	h := NewAuthHandler(cfg, db)
	user := createTestUser(t, db, "gandalf")

	// the answer is identical whether or not the account exists
	forgot := func(email string) string {
		r := jsonRequest(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email})
		rec := httptest.NewRecorder()
		h.ForgotPassword(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeEnvelope(t, rec).Data["message"].(string)
	}
	require.Equal(t, forgot(user.Email), forgot("unknown@example.com"))

	jwtService := utils.NewJWTService(cfg.JWTSecret)
	token, err := jwtService.GenerateResetToken(user.ID, user.Username)
	require.NoError(t, err)

	reset := func(token, password string) *httptest.ResponseRecorder {
		r := jsonRequest(t, http.MethodPost, "/auth/reset-password",
			map[string]string{"token": token, "newPassword": password})
		rec := httptest.NewRecorder()
		h.ResetPassword(rec, r)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, reset("bad-token", "mithrandir1").Code)
	require.Equal(t, http.StatusOK, reset(token, "mithrandir1").Code)

	updated, err := db.GetUserByID(user.ID)
	require.NoError(t, err)
	require.True(t, utils.CheckPasswordHash("mithrandir1", updated.Password))

	// an access token must not work as a reset token
	access, _, _, err := jwtService.GenerateTokenPair(user.ID, user.Username)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, reset(access, "sneaky-pass1").Code)
}

func TestChangePassword(t *testing.T) {
	cfg := newTestConfig(t)
	db := newTestDB(t)
	h := NewAuthHandler(cfg, db)
	user := createTestUser(t, db, "legolas")

	change := func(current, next string) *httptest.ResponseRecorder {
		r := jsonRequest(t, http.MethodPut, "/auth/change-password",
			map[string]string{"currentPassword": current, "newPassword": next})
		rec := httptest.NewRecorder()
		h.ChangePassword(rec, asUser(r, user))
		return rec
	}

	requireErrorMessage(t, change("wrong", "greenleaf99"), http.StatusUnauthorized, "Invalid credentials")
	require.Equal(t, http.StatusOK, change("password123", "greenleaf99").Code)

	updated, err := db.GetUserByID(user.ID)
	require.NoError(t, err)
	require.True(t, utils.CheckPasswordHash("greenleaf99", updated.Password))
	require.False(t, utils.CheckPasswordHash("password123", updated.Password))
}
