package models

import "time"

// Song is an audio track in a user's soundtrack library. The audio bytes live
// in Data and are only served through the streaming endpoint, never in JSON.
type Song struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Group          string    `json:"group,omitempty" db:"group_name"` // Free-form grouping label ("combat", "ambience", ...)
	OriginalSource string    `json:"original_source,omitempty" db:"original_source"` // Source URL when uploaded by URL
	MimeType       string    `json:"mime_type" db:"mime_type"`
	Size           int       `json:"size" db:"size"`
	IsPublic       bool      `json:"is_public" db:"is_public"` // Visible to players in associated campaigns
	Data           []byte    `json:"-" db:"data"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	// Campaigns this song is associated with (join table, ids only)
	CampaignIDs []string `json:"campaign_ids" db:"-"`
}

// CreateSongRequest is the metadata part of a song upload. Exactly one audio
// source is expected: a multipart file or a URL.
type CreateSongRequest struct {
	Name       string `json:"name" validate:"required"`
	Group      string `json:"group,omitempty"`
	IsPublic   bool   `json:"isPublic,omitempty"`
	URL        string `json:"url,omitempty"`
	CampaignID string `json:"campaignId,omitempty"` // Auto-associate when the caller owns this campaign
}

// UpdateSongRequest is the partial-update payload for song metadata
type UpdateSongRequest struct {
	Name     *string `json:"name,omitempty"`
	Group    *string `json:"group,omitempty"`
	IsPublic *bool   `json:"isPublic,omitempty"`
}

// AssociateSongRequest links a song to a set of campaigns
type AssociateSongRequest struct {
	CampaignIDs []string `json:"campaignIds" validate:"required"`
}

// SectionedSongs is the campaign-scoped listing: songs already associated with
// the campaign plus, for the campaign owner only, the owner's other songs that
// can be reused.
type SectionedSongs struct {
	Associated []Song `json:"associated"`
	Reusable   []Song `json:"reusable"`
}
