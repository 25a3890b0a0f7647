package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// manualSection holds all locale variants of one section, keyed by locale
// code ("en", "es", ...) or "default" for files without a locale suffix.
type manualSection struct {
	Locales map[string]map[string]interface{}
}

type loadedManual struct {
	TOC      json.RawMessage
	Sections map[string]*manualSection
}

// ManualsHandler serves the read-only manuals registry under
// <ContentDir>/manuals: registry.json plus one directory per manual with
// toc.json and content/<nodeId>[.<locale>].json files.
type ManualsHandler struct {
	config  *config.Config
	baseDir string

	mu    sync.Mutex
	cache map[string]*loadedManual
}

func NewManualsHandler(cfg *config.Config) *ManualsHandler {
	return &ManualsHandler{
		config:  cfg,
		baseDir: filepath.Join(cfg.ContentDir, "manuals"),
		cache:   make(map[string]*loadedManual),
	}
}

var safeManualID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// content file name is <nodeId>.json or <nodeId>.<locale>.json
var sectionFileName = regexp.MustCompile(`^(.*?)(?:\.(\w{2}))?\.json$`)

// GET /manuals
func (h *ManualsHandler) ListManuals(w http.ResponseWriter, r *http.Request) {
	raw, err := os.ReadFile(filepath.Join(h.baseDir, "registry.json"))
	if err != nil {
		utils.WriteSuccessResponse(w, map[string]interface{}{"manuals": []models.ManualSummary{}})
		return
	}

	var registry struct {
		Manuals []models.ManualSummary `json:"manuals"`
	}
	if err := json.Unmarshal(raw, &registry); err != nil || registry.Manuals == nil {
		registry.Manuals = []models.ManualSummary{}
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"manuals": registry.Manuals})
}

// GET /manuals/{manualId}/toc
func (h *ManualsHandler) GetTOC(w http.ResponseWriter, r *http.Request) {
	manual, err := h.loadManual(chiRoute.URLParam(r, "manualId"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Manual not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"toc": manual.TOC})
}

// GET /manuals/{manualId}/sections/{nodeId}?lang=
// Locale pick order: exact match, "en", "default", then any.
func (h *ManualsHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	manual, err := h.loadManual(chiRoute.URLParam(r, "manualId"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Manual not found")
		return
	}

	section, ok := manual.Sections[chiRoute.URLParam(r, "nodeId")]
	if !ok {
		utils.WriteNotFoundResponse(w, "Section not found")
		return
	}

	doc := pickLocale(section, r.URL.Query().Get("lang"))
	if doc == nil {
		utils.WriteNotFoundResponse(w, "Section not found")
		return
	}
	utils.WriteSuccessResponse(w, doc)
}

// GET /manuals/{manualId}/search?q=
// Case-insensitive substring search over section title and plain text; each
// hit carries a snippet around the first occurrence. Capped at 50 results.
func (h *ManualsHandler) Search(w http.ResponseWriter, r *http.Request) {
	manual, err := h.loadManual(chiRoute.URLParam(r, "manualId"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Manual not found")
		return
	}

	term := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	results := []models.ManualSearchResult{}
	if term == "" {
		utils.WriteSuccessResponse(w, map[string]interface{}{"results": results})
		return
	}

	for nodeID, section := range manual.Sections {
		doc := pickLocale(section, "")
		if doc == nil {
			continue
		}
		title, _ := doc["title"].(string)
		plain, _ := doc["plainText"].(string)
		if !strings.Contains(strings.ToLower(title+" "+plain), term) {
			continue
		}
		results = append(results, models.ManualSearchResult{
			NodeID:  nodeID,
			Title:   title,
			Snippet: buildSnippet(plain, term),
		})
		if len(results) == 50 {
			break
		}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"results": results})
}

func pickLocale(section *manualSection, lang string) map[string]interface{} {
	if code := strings.ToLower(lang); code != "" {
		if doc, ok := section.Locales[code]; ok {
			return doc
		}
	}
	if doc, ok := section.Locales["en"]; ok {
		return doc
	}
	if doc, ok := section.Locales["default"]; ok {
		return doc
	}
	for _, doc := range section.Locales {
		return doc
	}
	return nil
}

func buildSnippet(text, term string) string {
	idx := strings.Index(strings.ToLower(text), term)
	if idx == -1 {
		if len(text) > 160 {
			return text[:160]
		}
		return text
	}
	start := idx - 60
	if start < 0 {
		start = 0
	}
	end := idx + 100
	if end > len(text) {
		end = len(text)
	}
	snippet := text[start:end] + "…"
	if start > 0 {
		snippet = "…" + snippet
	}
	return snippet
}

// loadManual reads toc.json and every content file of a manual once and
// keeps the result in memory. Ids with path characters are rejected before
// touching the filesystem.
func (h *ManualsHandler) loadManual(manualID string) (*loadedManual, error) {
	if !safeManualID.MatchString(manualID) {
		return nil, os.ErrNotExist
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cached, ok := h.cache[manualID]; ok {
		return cached, nil
	}

	dir := filepath.Join(h.baseDir, manualID)
	tocRaw, err := os.ReadFile(filepath.Join(dir, "toc.json"))
	if err != nil {
		return nil, err
	}

	manual := &loadedManual{
		TOC:      json.RawMessage(tocRaw),
		Sections: make(map[string]*manualSection),
	}

	entries, err := os.ReadDir(filepath.Join(dir, "content"))
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			match := sectionFileName.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			nodeID := match[1]
			locale := match[2]
			if locale == "" {
				locale = "default"
			}

			raw, err := os.ReadFile(filepath.Join(dir, "content", entry.Name()))
			if err != nil {
				continue
			}
			var doc map[string]interface{}
			if err := json.Unmarshal(raw, &doc); err != nil {
				continue
			}

			section, ok := manual.Sections[nodeID]
			if !ok {
				section = &manualSection{Locales: make(map[string]map[string]interface{})}
				manual.Sections[nodeID] = section
			}
			section.Locales[locale] = doc
		}
	}

	h.cache[manualID] = manual
	return manual, nil
}
