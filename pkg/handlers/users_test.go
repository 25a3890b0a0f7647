package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"masterhelp-backend/pkg/models"

	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	h := NewUsersHandler(newTestConfig(t), db)
	user := createTestUser(t, db, "gimli")

	r := httptest.NewRequest(http.MethodGet, "/users/"+user.ID, nil)
	r = asUser(withURLParams(r, map[string]string{"id": user.ID}), user)
	rec := httptest.NewRecorder()
	h.GetUser(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")

	r = httptest.NewRequest(http.MethodGet, "/users/missing", nil)
	r = asUser(withURLParams(r, map[string]string{"id": "missing"}), user)
	rec = httptest.NewRecorder()
	h.GetUser(rec, r)
	requireErrorMessage(t, rec, http.StatusNotFound, "User not found")
}

func TestUpdatePreferencesSelfOnly(t *testing.T) {
	db := newTestDB(t)
	h := NewUsersHandler(newTestConfig(t), db)
	user := createTestUser(t, db, "boromir")
	other := createTestUser(t, db, "faramir")

	update := func(caller *models.User, targetID string, req models.UpdatePreferencesRequest) *httptest.ResponseRecorder {
		r := jsonRequest(t, http.MethodPut, "/users/"+targetID+"/preferences", req)
		r = asUser(withURLParams(r, map[string]string{"id": targetID}), caller)
		rec := httptest.NewRecorder()
		h.UpdatePreferences(rec, r)
		return rec
	}

	// another user's preferences are off-limits
	rec := update(other, user.ID, models.UpdatePreferencesRequest{Theme: "dark"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = update(user, user.ID, models.UpdatePreferencesRequest{Theme: "neon"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = update(user, user.ID, models.UpdatePreferencesRequest{Language: "en", Theme: "dark"})
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := db.GetUserByID(user.ID)
	require.NoError(t, err)
	require.Equal(t, "en", updated.Language)
	require.Equal(t, "dark", updated.Theme)
}

func TestDeleteUserSelfOnly(t *testing.T) {
	db := newTestDB(t)
	h := NewUsersHandler(newTestConfig(t), db)
	user := createTestUser(t, db, "pippin")
	other := createTestUser(t, db, "took")

	del := func(caller *models.User, targetID string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodDelete, "/users/"+targetID, nil)
		r = asUser(withURLParams(r, map[string]string{"id": targetID}), caller)
		rec := httptest.NewRecorder()
		h.DeleteUser(rec, r)
		return rec
	}

	require.Equal(t, http.StatusForbidden, del(other, user.ID).Code)
	require.Equal(t, http.StatusOK, del(user, user.ID).Code)

	_, err := db.GetUserByID(user.ID)
	require.Error(t, err)
}
