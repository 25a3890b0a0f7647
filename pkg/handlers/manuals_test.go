package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManualFixture(t *testing.T, contentDir string) {
	t.Helper()
	base := filepath.Join(contentDir, "manuals")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "players-handbook", "content"), 0755))

	writeJSON := func(path string, v interface{}) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0644))
	}

	writeJSON(filepath.Join(base, "registry.json"), map[string]interface{}{
		"manuals": []map[string]string{
			{"id": "players-handbook", "title": "Player's Handbook", "locale": "en"},
		},
	})
	writeJSON(filepath.Join(base, "players-handbook", "toc.json"), map[string]interface{}{
		"nodes": []map[string]string{{"id": "intro", "title": "Introduction"}},
	})
	writeJSON(filepath.Join(base, "players-handbook", "content", "intro.en.json"), map[string]interface{}{
		"title":     "Introduction",
		"plainText": "Welcome to the game. Dragons are dangerous creatures that breathe fire.",
	})
	writeJSON(filepath.Join(base, "players-handbook", "content", "intro.es.json"), map[string]interface{}{
		"title":     "Introducción",
		"plainText": "Bienvenido al juego.",
	})
	writeJSON(filepath.Join(base, "players-handbook", "content", "appendix.json"), map[string]interface{}{
		"title":     "Appendix",
		"plainText": "Tables and charts.",
	})
}

func TestListManuals(t *testing.T) {
	cfg := newTestConfig(t)
	writeManualFixture(t, cfg.ContentDir)
	h := NewManualsHandler(cfg)

	rec := httptest.NewRecorder()
	h.ListManuals(rec, httptest.NewRequest(http.MethodGet, "/manuals", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	manuals := env.Data["manuals"].([]interface{})
	require.Len(t, manuals, 1)
	require.Equal(t, "players-handbook", manuals[0].(map[string]interface{})["id"])
}

func TestListManualsEmptyWhenRegistryMissing(t *testing.T) {
	h := NewManualsHandler(newTestConfig(t))

	rec := httptest.NewRecorder()
	h.ListManuals(rec, httptest.NewRequest(http.MethodGet, "/manuals", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	manuals, ok := decodeEnvelope(t, rec).Data["manuals"].([]interface{})
	require.True(t, ok)
	require.Empty(t, manuals)
}

func TestGetSectionLocaleFallback(t *testing.T) {
	cfg := newTestConfig(t)
	writeManualFixture(t, cfg.ContentDir)
	h := NewManualsHandler(cfg)

	section := func(manualID, nodeID, lang string) *httptest.ResponseRecorder {
		target := "/manuals/" + manualID + "/sections/" + nodeID
		if lang != "" {
			target += "?lang=" + lang
		}
		r := withURLParams(httptest.NewRequest(http.MethodGet, target, nil),
			map[string]string{"manualId": manualID, "nodeId": nodeID})
		rec := httptest.NewRecorder()
		h.GetSection(rec, r)
		return rec
	}

	// exact locale
	rec := section("players-handbook", "intro", "es")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Introducción", decodeEnvelope(t, rec).Data["title"])

	// unknown locale falls back to en
	rec = section("players-handbook", "intro", "fr")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Introduction", decodeEnvelope(t, rec).Data["title"])

	// file without locale suffix serves as default
	rec = section("players-handbook", "appendix", "fr")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Appendix", decodeEnvelope(t, rec).Data["title"])

	// unknown section and unknown manual
	requireErrorMessage(t, section("players-handbook", "missing", ""), http.StatusNotFound, "Section not found")
	requireErrorMessage(t, section("no-such-manual", "intro", ""), http.StatusNotFound, "Manual not found")

	// path characters in the id are rejected as not found
	requireErrorMessage(t, section("..", "intro", ""), http.StatusNotFound, "Manual not found")
}

func TestManualSearch(t *testing.T) {
	cfg := newTestConfig(t)
	writeManualFixture(t, cfg.ContentDir)
	h := NewManualsHandler(cfg)

	search := func(q string) []interface{} {
		r := withURLParams(httptest.NewRequest(http.MethodGet, "/manuals/players-handbook/search?q="+q, nil),
			map[string]string{"manualId": "players-handbook"})
		rec := httptest.NewRecorder()
		h.Search(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
		results, ok := decodeEnvelope(t, rec).Data["results"].([]interface{})
		require.True(t, ok)
		return results
	}

	results := search("dragons")
	require.Len(t, results, 1)
	hit := results[0].(map[string]interface{})
	require.Equal(t, "intro", hit["nodeId"])
	require.Equal(t, "Introduction", hit["title"])
	require.Contains(t, hit["snippet"], "Dragons")

	require.Empty(t, search("nonexistent-term"))
	require.Empty(t, search(""))
}
