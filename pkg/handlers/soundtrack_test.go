package handlers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"masterhelp-backend/pkg/database"
	"masterhelp-backend/pkg/models"

	"github.com/stretchr/testify/require"
)

func createTestSong(t *testing.T, db database.DatabaseInterface, owner *models.User, name string, public bool, size int) *models.Song {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	song := &models.Song{
		Name:     name,
		MimeType: "audio/mpeg",
		Size:     size,
		IsPublic: public,
		Data:     data,
		OwnerID:  owner.ID,
	}
	require.NoError(t, db.CreateSong(song))
	return song
}

func multipartUpload(t *testing.T, fields map[string]string, fileName string, fileData []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	r := httptest.NewRequest(http.MethodPost, "/soundtrack/songs", &buf)
	r.Header.Set("Content-Type", writer.FormDataContentType())
	return r
}

func TestCreateSongFromFile(t *testing.T) {
	db := newTestDB(t)
	h := NewSoundtrackHandler(newTestConfig(t), db)
	owner := createTestUser(t, db, "owner")
	campaign := createTestCampaign(t, db, owner, "Ravenloft")

	audio := []byte("RIFF-not-really-audio-but-bytes")
	r := multipartUpload(t, map[string]string{
		"name":       "Battle Theme",
		"group":      "combat",
		"isPublic":   "true",
		"campaignId": campaign.ID,
	}, "battle.mp3", audio)

	rec := httptest.NewRecorder()
	h.CreateSong(rec, asUser(r, owner))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	env := decodeEnvelope(t, rec)
	songID := dataString(t, env.Data, "song", "id")

	song, err := db.GetSong(songID)
	require.NoError(t, err)
	require.Equal(t, "Battle Theme", song.Name)
	require.Equal(t, "combat", song.Group)
	require.True(t, song.IsPublic)
	require.Equal(t, audio, song.Data)
	require.Equal(t, len(audio), song.Size)
	require.Equal(t, []string{campaign.ID}, song.CampaignIDs)

	// the JSON envelope never carries the audio bytes
	require.NotContains(t, rec.Body.String(), "RIFF-not-really")
}

func TestCreateSongSourceValidation(t *testing.T) {
	db := newTestDB(t)
	h := NewSoundtrackHandler(newTestConfig(t), db)
	owner := createTestUser(t, db, "owner")

	// neither file nor url
	rec := httptest.NewRecorder()
	h.CreateSong(rec, asUser(multipartUpload(t, map[string]string{"name": "x"}, "", nil), owner))
	requireErrorMessage(t, rec, http.StatusBadRequest, "Provide either a file or an url")

	// both file and url
	rec = httptest.NewRecorder()
	r := multipartUpload(t, map[string]string{"name": "x", "url": "http://example.com/a.mp3"}, "a.mp3", []byte("abc"))
	h.CreateSong(rec, asUser(r, owner))
	requireErrorMessage(t, rec, http.StatusBadRequest, "Provide file or url, not both")
}

func TestCreateSongFromURL(t *testing.T) {
	db := newTestDB(t)
	h := NewSoundtrackHandler(newTestConfig(t), db)
	owner := createTestUser(t, db, "owner")

	audio := []byte("streamed-bytes-from-elsewhere")
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		w.Write(audio)
	}))
	defer source.Close()

	r := jsonRequest(t, http.MethodPost, "/soundtrack/songs", models.CreateSongRequest{
		Name: "Tavern Ambience",
		URL:  source.URL + "/tavern.ogg",
	})
	rec := httptest.NewRecorder()
	h.CreateSong(rec, asUser(r, owner))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	songID := dataString(t, decodeEnvelope(t, rec).Data, "song", "id")
	song, err := db.GetSong(songID)
	require.NoError(t, err)
	require.Equal(t, audio, song.Data)
	require.Equal(t, "audio/ogg", song.MimeType)
	require.Equal(t, source.URL+"/tavern.ogg", song.OriginalSource)
}

func TestListCampaignSongsVisibility(t *testing.T) {
	db := newTestDB(t)
	h := NewSoundtrackHandler(newTestConfig(t), db)

	owner := createTestUser(t, db, "owner")
	player := createTestUser(t, db, "player")
	campaign := createTestCampaign(t, db, owner, "Night Below")

	public := createTestSong(t, db, owner, "Public Theme", true, 64)
	private := createTestSong(t, db, owner, "Secret Theme", false, 64)
	reusable := createTestSong(t, db, owner, "Spare Theme", true, 64)
	_ = reusable

	require.NoError(t, db.AssociateSong(public.ID, campaign.ID))
	require.NoError(t, db.AssociateSong(private.ID, campaign.ID))

	list := func(caller *models.User) models.SectionedSongs {
		r := httptest.NewRequest(http.MethodGet, "/soundtrack/campaigns/"+campaign.ID+"/songs", nil)
		r = asUser(withURLParams(r, map[string]string{"campaignId": campaign.ID}), caller)
		rec := httptest.NewRecorder()
		h.ListCampaignSongs(rec, r)
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

		env := decodeEnvelope(t, rec)
		var out models.SectionedSongs
		for _, s := range env.Data["associated"].([]interface{}) {
			out.Associated = append(out.Associated, models.Song{Name: s.(map[string]interface{})["name"].(string)})
		}
		if raw, ok := env.Data["reusable"].([]interface{}); ok {
			for _, s := range raw {
				out.Reusable = append(out.Reusable, models.Song{Name: s.(map[string]interface{})["name"].(string)})
			}
		}
		return out
	}

	// the owner sees everything plus the unassociated song as reusable
	got := list(owner)
	require.Len(t, got.Associated, 2)
	require.Len(t, got.Reusable, 1)
	require.Equal(t, "Spare Theme", got.Reusable[0].Name)

	// a non-owner only sees public associated songs and no reusable section
	got = list(player)
	require.Len(t, got.Associated, 1)
	require.Equal(t, "Public Theme", got.Associated[0].Name)
	require.Empty(t, got.Reusable)
}

func TestDeleteSongWithAssociations(t *testing.T) {
	db := newTestDB(t)
	h := NewSoundtrackHandler(newTestConfig(t), db)

	owner := createTestUser(t, db, "owner")
	campaign := createTestCampaign(t, db, owner, "Saltmarsh")
	song := createTestSong(t, db, owner, "Sea Shanty", true, 32)
	require.NoError(t, db.AssociateSong(song.ID, campaign.ID))

	del := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodDelete, "/soundtrack/songs/"+song.ID, nil)
		r = asUser(withURLParams(r, map[string]string{"songId": song.ID}), owner)
		rec := httptest.NewRecorder()
		h.DeleteSong(rec, r)
		return rec
	}

	requireErrorMessage(t, del(), http.StatusConflict, "Song has active associations")

	r := httptest.NewRequest(http.MethodDelete, "/soundtrack/songs/"+song.ID+"/associate/"+campaign.ID, nil)
	r = asUser(withURLParams(r, map[string]string{"songId": song.ID, "campaignId": campaign.ID}), owner)
	rec := httptest.NewRecorder()
	h.UnassociateSong(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, del().Code)
	_, err := db.GetSong(song.ID)
	require.Error(t, err)
}

func streamRequest(h *SoundtrackHandler, caller *models.User, songID, campaignID, rangeHeader string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/soundtrack/songs/"+songID+"/stream?campaignId="+campaignID, nil)
	if rangeHeader != "" {
		r.Header.Set("Range", rangeHeader)
	}
	r = asUser(withURLParams(r, map[string]string{"songId": songID}), caller)
	rec := httptest.NewRecorder()
	h.StreamSong(rec, r)
	return rec
}

func TestStreamSongRanges(t *testing.T) {
	db := newTestDB(t)
	h := NewSoundtrackHandler(newTestConfig(t), db)

	owner := createTestUser(t, db, "owner")
	campaign := createTestCampaign(t, db, owner, "Ghosts")

	const total = streamChunkSize + 4096
	song := createTestSong(t, db, owner, "Long Track", true, total)
	require.NoError(t, db.AssociateSong(song.ID, campaign.ID))

	// no Range header: full body
	rec := streamRequest(h, owner, song.ID, campaign.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, total, rec.Body.Len())

	// open-ended range is capped to the default chunk
	rec = streamRequest(h, owner, song.ID, campaign.ID, "bytes=0-")
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, fmt.Sprintf("bytes 0-%d/%d", streamChunkSize-1, total), rec.Header().Get("Content-Range"))
	require.Equal(t, streamChunkSize, rec.Body.Len())
	require.Equal(t, song.Data[:streamChunkSize], rec.Body.Bytes())

	// explicit range
	rec = streamRequest(h, owner, song.ID, campaign.ID, "bytes=100-199")
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, fmt.Sprintf("bytes 100-199/%d", total), rec.Header().Get("Content-Range"))
	require.Equal(t, song.Data[100:200], rec.Body.Bytes())

	// tail range past the cap boundary
	start := total - 100
	rec = streamRequest(h, owner, song.ID, campaign.ID, fmt.Sprintf("bytes=%d-", start))
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, fmt.Sprintf("bytes %d-%d/%d", start, total-1, total), rec.Header().Get("Content-Range"))
	require.Equal(t, 100, rec.Body.Len())

	// start beyond the end
	rec = streamRequest(h, owner, song.ID, campaign.ID, fmt.Sprintf("bytes=%d-", total))
	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
	require.Equal(t, fmt.Sprintf("bytes */%d", total), rec.Header().Get("Content-Range"))

	// end beyond the end
	rec = streamRequest(h, owner, song.ID, campaign.ID, fmt.Sprintf("bytes=0-%d", total))
	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
}

func TestStreamSongAccess(t *testing.T) {
	db := newTestDB(t)
	h := NewSoundtrackHandler(newTestConfig(t), db)

	owner := createTestUser(t, db, "owner")
	player := createTestUser(t, db, "player")
	campaign := createTestCampaign(t, db, owner, "Undermountain")
	other := createTestCampaign(t, db, owner, "Elsewhere")

	private := createTestSong(t, db, owner, "GM Only", false, 128)
	require.NoError(t, db.AssociateSong(private.ID, campaign.ID))

	// not associated with the requested campaign
	rec := streamRequest(h, owner, private.ID, other.ID, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	// private song, non-owner caller
	rec = streamRequest(h, player, private.ID, campaign.ID, "")
	requireErrorMessage(t, rec, http.StatusForbidden, "Song is not public")

	// the owner can always stream
	rec = streamRequest(h, owner, private.ID, campaign.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// missing campaignId
	r := httptest.NewRequest(http.MethodGet, "/soundtrack/songs/"+private.ID+"/stream", nil)
	r = asUser(withURLParams(r, map[string]string{"songId": private.ID}), owner)
	rec = httptest.NewRecorder()
	h.StreamSong(rec, r)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
