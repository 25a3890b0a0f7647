package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type spellCacheEntry struct {
	list  []models.SpellSummary
	byID  map[string]*models.SpellDetail
	mtime time.Time
}

// SpellsHandler serves the read-only spell compendium from
// <ContentDir>/spells/spells.<lang>.json, one file per locale, cached by
// file mtime so edits are picked up without a restart.
type SpellsHandler struct {
	config  *config.Config
	baseDir string

	mu    sync.Mutex
	cache map[string]*spellCacheEntry
}

func NewSpellsHandler(cfg *config.Config) *SpellsHandler {
	return &SpellsHandler{
		config:  cfg,
		baseDir: filepath.Join(cfg.ContentDir, "spells"),
		cache:   make(map[string]*spellCacheEntry),
	}
}

var ritualMarker = regexp.MustCompile(`(?i)\(\s*ritual\s*\)`)

func spellLang(r *http.Request) string {
	if utils.GetQueryParam(r, "lang", "en") == "es" {
		return "es"
	}
	return "en"
}

// GET /spells
func (h *SpellsHandler) ListSpells(w http.ResponseWriter, r *http.Request) {
	entry := h.load(spellLang(r))
	q := r.URL.Query()

	out := entry.list
	if search := strings.ToLower(q.Get("search")); search != "" {
		filtered := []models.SpellSummary{}
		for _, s := range out {
			if strings.Contains(strings.ToLower(s.Name), search) ||
				strings.Contains(strings.ToLower(s.School), search) ||
				strings.Contains(strings.ToLower(s.Components), search) {
				filtered = append(filtered, s)
			}
		}
		out = filtered
	}
	if levelStr := q.Get("level"); levelStr != "" {
		level, err := strconv.Atoi(levelStr)
		if err != nil {
			utils.WriteBadRequestResponse(w, "level must be a number")
			return
		}
		filtered := []models.SpellSummary{}
		for _, s := range out {
			if s.Level == level {
				filtered = append(filtered, s)
			}
		}
		out = filtered
	}
	if school := strings.ToLower(q.Get("school")); school != "" {
		filtered := []models.SpellSummary{}
		for _, s := range out {
			if strings.ToLower(s.School) == school {
				filtered = append(filtered, s)
			}
		}
		out = filtered
	}

	total := len(out)

	if sortBy := q.Get("sortBy"); sortBy != "" {
		desc := q.Get("sortDir") == "desc"
		sorted := make([]models.SpellSummary, len(out))
		copy(sorted, out)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if desc {
				a, b = b, a
			}
			switch sortBy {
			case "level":
				return a.Level < b.Level
			case "school":
				return a.School < b.School
			default:
				return a.Name < b.Name
			}
		})
		out = sorted
	}

	page := parsePositiveInt(q.Get("page"), 1)
	pageSize := parsePositiveInt(q.Get("pageSize"), 25)
	if pageSize > 200 {
		pageSize = 200
	}

	start := (page - 1) * pageSize
	if start > len(out) {
		start = len(out)
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}

	utils.WriteSuccessResponse(w, models.SpellPage{Items: out[start:end], Total: total})
}

func parsePositiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// GET /spells/meta/all
func (h *SpellsHandler) GetMeta(w http.ResponseWriter, r *http.Request) {
	entry := h.load(spellLang(r))

	levelSet := make(map[int]bool)
	schoolSet := make(map[string]bool)
	for _, s := range entry.list {
		levelSet[s.Level] = true
		schoolSet[s.School] = true
	}

	meta := models.SpellMeta{Levels: []int{}, Schools: []string{}}
	for level := range levelSet {
		meta.Levels = append(meta.Levels, level)
	}
	for school := range schoolSet {
		meta.Schools = append(meta.Schools, school)
	}
	sort.Ints(meta.Levels)
	sort.Strings(meta.Schools)

	utils.WriteSuccessResponse(w, meta)
}

// GET /spells/{id}
func (h *SpellsHandler) GetSpell(w http.ResponseWriter, r *http.Request) {
	entry := h.load(spellLang(r))
	spell, ok := entry.byID[chiRoute.URLParam(r, "id")]
	if !ok {
		utils.WriteNotFoundResponse(w, "Spell not found")
		return
	}
	utils.WriteSuccessResponse(w, spell)
}

// load returns the cached compendium for a locale, re-reading the source
// file when its mtime changed. A missing or broken file yields an empty
// compendium rather than an error.
func (h *SpellsHandler) load(lang string) *spellCacheEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	file := filepath.Join(h.baseDir, fmt.Sprintf("spells.%s.json", lang))
	info, err := os.Stat(file)
	if err != nil {
		if cached, ok := h.cache[lang]; ok {
			return cached
		}
		empty := &spellCacheEntry{list: []models.SpellSummary{}, byID: map[string]*models.SpellDetail{}}
		h.cache[lang] = empty
		return empty
	}

	if cached, ok := h.cache[lang]; ok && cached.mtime.Equal(info.ModTime()) {
		return cached
	}

	var details []models.SpellDetail
	if raw, err := os.ReadFile(file); err == nil {
		if err := json.Unmarshal(raw, &details); err != nil {
			details = nil
		}
	}

	entry := &spellCacheEntry{
		list:  make([]models.SpellSummary, 0, len(details)),
		byID:  make(map[string]*models.SpellDetail, len(details)),
		mtime: info.ModTime(),
	}
	for i := range details {
		d := &details[i]
		d.IsConcentration = strings.HasPrefix(strings.ToLower(strings.TrimSpace(d.Duration)), "concentr")
		d.IsRitual = ritualMarker.MatchString(d.School)
		d.Concentration = d.IsConcentration
		d.Ritual = d.IsRitual
		entry.byID[d.ID] = d
		entry.list = append(entry.list, d.SpellSummary)
	}

	h.cache[lang] = entry
	return entry
}
