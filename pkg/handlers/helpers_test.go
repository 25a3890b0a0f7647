package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/database"
	"masterhelp-backend/pkg/middleware"
	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment:    "development",
		Port:           "0",
		UseLocalDB:     true,
		LocalDataDir:   t.TempDir(),
		JWTSecret:      "test-secret",
		ContentDir:     t.TempDir(),
		FrontendURL:    "http://localhost:5173",
		AllowedOrigins: []string{"*"},
	}
}

func newTestDB(t *testing.T) database.DatabaseInterface {
	t.Helper()
	return database.NewLocalDatabase(t.TempDir())
}

func createTestUser(t *testing.T, db database.DatabaseInterface, name string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{
		Username: name,
		Email:    name + "@example.com",
		Password: hash,
	}
	require.NoError(t, db.CreateUser(user))
	return user
}

func createTestCampaign(t *testing.T, db database.DatabaseInterface, owner *models.User, name string) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{Name: name, OwnerID: owner.ID}
	require.NoError(t, db.CreateCampaign(campaign))
	return campaign
}

// asUser stores the caller in the request context the way AuthMiddleware does
func asUser(r *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, &models.User{
		ID:       user.ID,
		Username: user.Username,
	})
	return r.WithContext(ctx)
}

// withURLParams attaches chi route parameters to the request
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

type testEnvelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   *utils.APIError        `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func requireErrorMessage(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, message, env.Error.Message)
}

// dataString digs a string out of the decoded data map, e.g. "invitation.id"
func dataString(t *testing.T, data map[string]interface{}, path ...string) string {
	t.Helper()
	current := data
	for i, key := range path {
		if i == len(path)-1 {
			s, ok := current[key].(string)
			require.True(t, ok, "missing string at %v in %v", path, data)
			return s
		}
		next, ok := current[key].(map[string]interface{})
		require.True(t, ok, "missing object %q in %v", key, fmt.Sprint(data))
		current = next
	}
	return ""
}
