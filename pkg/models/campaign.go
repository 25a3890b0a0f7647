package models

import "time"

// Campaign represents a game session container owned by one user
type Campaign struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	ImageURL    string    `json:"imageUrl,omitempty" db:"image_url"` // Regular URL or Base64 data URL
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// Loaded relations (not columns)
	Owner   *User            `json:"owner,omitempty" db:"-"`
	Players []CampaignMember `json:"players,omitempty" db:"-"`
}

// MemberRole is the role a user holds inside a campaign
type MemberRole string

const (
	RolePlayer MemberRole = "player"
	RoleMaster MemberRole = "master"
)

// MemberStatus is the invitation/participation state of a membership row
type MemberStatus string

const (
	StatusActive   MemberStatus = "active"
	StatusInvited  MemberStatus = "invited"
	StatusDeclined MemberStatus = "declined"
)

// CampaignMember is the single row representing a user's relationship to a
// campaign. An invitation is just this row in status "invited"; there is no
// separate invitation entity. At most one row exists per (campaign, user).
type CampaignMember struct {
	ID         string       `json:"id" db:"id"`
	CampaignID string       `json:"campaign_id" db:"campaign_id"`
	UserID     string       `json:"user_id" db:"user_id"`
	Role       MemberRole   `json:"role" db:"role"`
	Status     MemberStatus `json:"status" db:"status"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`

	// Loaded relations (not columns)
	User     *User     `json:"user,omitempty" db:"-"`
	Campaign *Campaign `json:"campaign,omitempty" db:"-"`
}

// CreateCampaignRequest is the payload for creating a campaign
type CreateCampaignRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// UpdateCampaignRequest is the partial-update payload for a campaign
type UpdateCampaignRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

// InvitePlayerRequest invites a user to a campaign by email or username.
// When both are present email wins; the campaign id comes from the URL.
type InvitePlayerRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// RespondInvitationRequest accepts or declines a pending invitation
type RespondInvitationRequest struct {
	InvitationID string `json:"invitationId" validate:"required"`
	Response     string `json:"response" validate:"required"` // "accept" or "decline"
}
