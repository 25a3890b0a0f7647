package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/database"
	"masterhelp-backend/pkg/middleware"
	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

const (
	// Cap for a single uploaded or fetched track
	maxSongBytes = 50 << 20
	// Default slice served per ranged request when the client leaves the
	// range end open
	streamChunkSize = 1 << 20
)

// SoundtrackHandler manages per-user song libraries, campaign associations
// and ranged audio streaming.
type SoundtrackHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	client *http.Client
}

func NewSoundtrackHandler(cfg *config.Config, db database.DatabaseInterface) *SoundtrackHandler {
	return &SoundtrackHandler{
		config: cfg,
		db:     db,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// POST /soundtrack/songs
// Accepts either a multipart upload (file field "file") or a JSON/form body
// with a source url. Exactly one of the two must be present.
func (h *SoundtrackHandler) CreateSong(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.CreateSongRequest
	var fileData []byte
	var fileName, fileMime string

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSongBytes); err != nil {
			utils.WriteBadRequestResponse(w, "Invalid multipart body")
			return
		}
		req.Name = r.FormValue("name")
		req.Group = r.FormValue("group")
		req.IsPublic = r.FormValue("isPublic") == "true"
		req.URL = r.FormValue("url")
		req.CampaignID = r.FormValue("campaignId")

		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			fileData, err = io.ReadAll(io.LimitReader(file, maxSongBytes+1))
			if err != nil || len(fileData) > maxSongBytes {
				utils.WriteBadRequestResponse(w, "File too large")
				return
			}
			fileName = header.Filename
			fileMime = header.Header.Get("Content-Type")
		}
	} else {
		if err := utils.ParseJSONBody(r, &req); err != nil {
			utils.WriteBadRequestResponse(w, "Invalid body")
			return
		}
	}

	hasFile := len(fileData) > 0
	hasURL := strings.TrimSpace(req.URL) != ""
	if !hasFile && !hasURL {
		utils.WriteBadRequestResponse(w, "Provide either a file or an url")
		return
	}
	if hasFile && hasURL {
		utils.WriteBadRequestResponse(w, "Provide file or url, not both")
		return
	}

	song := &models.Song{
		Name:     strings.TrimSpace(req.Name),
		Group:    strings.TrimSpace(req.Group),
		IsPublic: req.IsPublic,
		OwnerID:  user.ID,
	}

	if hasFile {
		song.Data = fileData
		song.MimeType = fileMime
		if song.Name == "" {
			song.Name = strings.TrimSuffix(fileName, path.Ext(fileName))
		}
	} else {
		data, mime, err := h.fetchAudio(req.URL)
		if err != nil {
			utils.WriteBadRequestResponse(w, "Could not fetch audio from url: "+err.Error())
			return
		}
		song.Data = data
		song.MimeType = mime
		song.OriginalSource = req.URL
		if song.Name == "" {
			song.Name = path.Base(req.URL)
		}
	}
	if song.MimeType == "" {
		song.MimeType = "audio/mpeg"
	}
	song.Size = len(song.Data)

	if err := h.db.CreateSong(song); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create song failed: "+err.Error())
		return
	}

	// Optional auto-association, only honored for campaigns the caller owns
	if req.CampaignID != "" {
		if campaign, err := h.db.GetCampaign(req.CampaignID); err == nil && isOwner(campaign, user.ID) {
			if err := h.db.AssociateSong(song.ID, campaign.ID); err == nil {
				song.CampaignIDs = append(song.CampaignIDs, campaign.ID)
			}
		}
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"song": song})
}

func (h *SoundtrackHandler) fetchAudio(url string) ([]byte, string, error) {
	resp, err := h.client.Get(url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("source returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSongBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxSongBytes {
		return nil, "", fmt.Errorf("source exceeds %d bytes", maxSongBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// GET /soundtrack/songs?q=&group=
func (h *SoundtrackHandler) ListOwnSongs(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	songs, err := h.db.ListSongsByOwner(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	songs = filterSongs(songs, r.URL.Query().Get("q"), r.URL.Query().Get("group"))
	utils.WriteSuccessResponse(w, map[string]interface{}{"songs": songs})
}

// GET /soundtrack/campaigns/{campaignId}/songs?q=&group=
// The campaign owner sees every associated song plus their own reusable
// library; other members only see associated songs marked public.
func (h *SoundtrackHandler) ListCampaignSongs(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	campaignID := chiRoute.URLParam(r, "campaignId")

	campaign, err := h.db.GetCampaign(campaignID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Campaign not found")
		return
	}
	master := isOwner(campaign, user.ID)

	associated, err := h.db.ListSongsByCampaign(campaign.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	q := r.URL.Query().Get("q")
	group := r.URL.Query().Get("group")

	sections := models.SectionedSongs{Associated: []models.Song{}, Reusable: []models.Song{}}
	for _, s := range filterSongs(associated, q, group) {
		if !master && !s.IsPublic {
			continue
		}
		sections.Associated = append(sections.Associated, s)
	}

	if master {
		owned, err := h.db.ListSongsByOwner(user.ID)
		if err != nil {
			utils.WriteInternalServerErrorResponse(w, err.Error())
			return
		}
		inCampaign := make(map[string]bool, len(associated))
		for _, s := range associated {
			inCampaign[s.ID] = true
		}
		for _, s := range filterSongs(owned, q, group) {
			if !inCampaign[s.ID] {
				sections.Reusable = append(sections.Reusable, s)
			}
		}
	}

	utils.WriteSuccessResponse(w, sections)
}

func filterSongs(songs []models.Song, q, group string) []models.Song {
	if q == "" && group == "" {
		return songs
	}
	q = strings.ToLower(q)
	out := []models.Song{}
	for _, s := range songs {
		if q != "" && !strings.Contains(strings.ToLower(s.Name), q) {
			continue
		}
		if group != "" && s.Group != group {
			continue
		}
		out = append(out, s)
	}
	return out
}

// requireOwnedSong loads a song and checks the caller owns it
func (h *SoundtrackHandler) requireOwnedSong(w http.ResponseWriter, songID, userID string) *models.Song {
	song, err := h.db.GetSong(songID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Song not found")
		return nil
	}
	if song.OwnerID != userID {
		utils.WriteForbiddenResponse(w, "You are not the owner of this song")
		return nil
	}
	return song
}

// PATCH /soundtrack/songs/{songId}
func (h *SoundtrackHandler) UpdateSong(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	song := h.requireOwnedSong(w, chiRoute.URLParam(r, "songId"), user.ID)
	if song == nil {
		return
	}

	var req models.UpdateSongRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			utils.WriteBadRequestResponse(w, "Name cannot be empty")
			return
		}
		song.Name = *req.Name
	}
	if req.Group != nil {
		song.Group = *req.Group
	}
	if req.IsPublic != nil {
		song.IsPublic = *req.IsPublic
	}

	if err := h.db.UpdateSong(song); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"song": song})
}

// POST /soundtrack/songs/{songId}/associate
// Only campaigns the caller owns are attached; other ids are skipped.
func (h *SoundtrackHandler) AssociateSong(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	song := h.requireOwnedSong(w, chiRoute.URLParam(r, "songId"), user.ID)
	if song == nil {
		return
	}

	var req models.AssociateSongRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	attached := []string{}
	for _, campaignID := range req.CampaignIDs {
		campaign, err := h.db.GetCampaign(campaignID)
		if err != nil || !isOwner(campaign, user.ID) {
			continue
		}
		if err := h.db.AssociateSong(song.ID, campaign.ID); err != nil {
			utils.WriteInternalServerErrorResponse(w, err.Error())
			return
		}
		attached = append(attached, campaign.ID)
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"attached": attached})
}

// DELETE /soundtrack/songs/{songId}/associate/{campaignId}
func (h *SoundtrackHandler) UnassociateSong(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	song := h.requireOwnedSong(w, chiRoute.URLParam(r, "songId"), user.ID)
	if song == nil {
		return
	}
	campaignID := chiRoute.URLParam(r, "campaignId")

	if err := h.db.UnassociateSong(song.ID, campaignID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"detached": campaignID})
}

// DELETE /soundtrack/songs/{songId}
// A song still associated with campaigns cannot be deleted.
func (h *SoundtrackHandler) DeleteSong(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	song := h.requireOwnedSong(w, chiRoute.URLParam(r, "songId"), user.ID)
	if song == nil {
		return
	}
	if len(song.CampaignIDs) > 0 {
		utils.WriteConflictResponse(w, "Song has active associations")
		return
	}

	if err := h.db.DeleteSong(song.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": song.ID})
}

// GET /soundtrack/songs/{songId}/stream?campaignId=
// Serves the audio bytes with byte-range support. The song must be associated
// with the given campaign, and a non-owner can only stream public songs.
func (h *SoundtrackHandler) StreamSong(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	songID := chiRoute.URLParam(r, "songId")
	campaignID := r.URL.Query().Get("campaignId")
	if campaignID == "" {
		utils.WriteBadRequestResponse(w, "campaignId required")
		return
	}

	song, err := h.db.GetSong(songID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Song not found")
		return
	}

	associated := false
	for _, id := range song.CampaignIDs {
		if id == campaignID {
			associated = true
			break
		}
	}
	if !associated {
		utils.WriteForbiddenResponse(w, "Song is not associated with this campaign")
		return
	}
	if song.OwnerID != user.ID && !song.IsPublic {
		utils.WriteForbiddenResponse(w, "Song is not public")
		return
	}

	total := int64(len(song.Data))
	w.Header().Set("Content-Type", song.MimeType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-store")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		w.WriteHeader(http.StatusOK)
		w.Write(song.Data)
		return
	}

	start, end, err := parseByteRange(rangeHeader, total)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(song.Data[start : end+1])
}

// parseByteRange handles a single "bytes=start-end" range. An open end is
// capped to streamChunkSize bytes so seeking players get fast first bytes.
func parseByteRange(header string, total int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed range")
	}

	start, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || start < 0 || start >= total {
		return 0, 0, fmt.Errorf("range start out of bounds")
	}

	if endStr := strings.TrimSpace(parts[1]); endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start || end >= total {
			return 0, 0, fmt.Errorf("range end out of bounds")
		}
	} else {
		end = start + streamChunkSize - 1
		if end >= total {
			end = total - 1
		}
	}
	return start, end, nil
}
