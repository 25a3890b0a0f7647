package handlers

import (
	"errors"
	"net/http"
	"strings"

	"masterhelp-backend/pkg/config"
	"masterhelp-backend/pkg/database"
	"masterhelp-backend/pkg/middleware"
	"masterhelp-backend/pkg/models"
	"masterhelp-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// CampaignsHandler owns campaign CRUD and the invitation lifecycle
type CampaignsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewCampaignsHandler(cfg *config.Config, db database.DatabaseInterface) *CampaignsHandler {
	return &CampaignsHandler{config: cfg, db: db}
}

// isOwner is the single authorization predicate of the system: a caller may
// perform owner-gated actions on a campaign iff they own it.
func isOwner(campaign *models.Campaign, userID string) bool {
	return campaign.OwnerID == userID
}

// requireOwnedCampaign loads a campaign and checks ownership. Writes the
// error response and returns nil when the guard fails.
func (h *CampaignsHandler) requireOwnedCampaign(w http.ResponseWriter, campaignID, userID string) *models.Campaign {
	campaign, err := h.db.GetCampaign(campaignID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Campaign not found")
		return nil
	}
	if !isOwner(campaign, userID) {
		utils.WriteForbiddenResponse(w, "You are not the owner of this campaign")
		return nil
	}
	return campaign
}

// GET /campaigns
// Union of campaigns the caller owns and campaigns where the caller holds a
// membership row, deduplicated by campaign id.
func (h *CampaignsHandler) ListMyCampaigns(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	asOwner, err := h.db.ListCampaignsOwnedBy(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	asPlayer, err := h.db.ListCampaignsWithMember(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	seen := make(map[string]bool)
	campaigns := []models.Campaign{}
	for _, c := range append(asOwner, asPlayer...) {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		campaigns = append(campaigns, c)
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"campaigns": campaigns})
}

// POST /campaigns
func (h *CampaignsHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.CreateCampaignRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.WriteBadRequestResponse(w, "Name required")
		return
	}

	campaign := &models.Campaign{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		OwnerID:     user.ID,
	}
	if err := h.db.CreateCampaign(campaign); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Create campaign failed: "+err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"campaign": campaign})
}

// GET /campaigns/{id}
// Returns the campaign with nested owner and member rows; clients use this to
// observe membership state after mutations.
func (h *CampaignsHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := chiRoute.URLParam(r, "id")
	campaign, err := h.db.GetCampaign(campaignID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Campaign not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"campaign": campaign})
}

// PATCH /campaigns/{id}
func (h *CampaignsHandler) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	campaignID := chiRoute.URLParam(r, "id")

	campaign := h.requireOwnedCampaign(w, campaignID, user.ID)
	if campaign == nil {
		return
	}

	var req models.UpdateCampaignRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			utils.WriteBadRequestResponse(w, "Name cannot be empty")
			return
		}
		campaign.Name = *req.Name
	}
	if req.Description != nil {
		campaign.Description = *req.Description
	}
	if req.ImageURL != nil {
		campaign.ImageURL = *req.ImageURL
	}

	if err := h.db.UpdateCampaign(campaign); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"campaign": campaign})
}

// DELETE /campaigns/{id}
func (h *CampaignsHandler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	campaignID := chiRoute.URLParam(r, "id")

	if h.requireOwnedCampaign(w, campaignID, user.ID) == nil {
		return
	}

	if err := h.db.DeleteCampaign(campaignID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": campaignID})
}

// ==== invitation lifecycle ====

// POST /campaigns/{id}/invite
// Owner invites a user by email or username. A membership row in status
// "invited" is the invitation; a declined row is reused on re-invite.
func (h *CampaignsHandler) InvitePlayer(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	campaignID := chiRoute.URLParam(r, "id")

	campaign, err := h.db.GetCampaign(campaignID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Campaign not found")
		return
	}
	if !isOwner(campaign, user.ID) {
		utils.WriteForbiddenResponse(w, "Only the campaign owner can invite players")
		return
	}

	var req models.InvitePlayerRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}

	// Email wins when both identifiers are present
	var target *models.User
	if email := strings.TrimSpace(req.Email); email != "" {
		target, err = h.db.GetUserByEmail(email)
	} else if username := strings.TrimSpace(req.Username); username != "" {
		target, err = h.db.GetUserByUsername(username)
	} else {
		utils.WriteBadRequestResponse(w, "email or username required")
		return
	}
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}

	existing, err := h.db.FindCampaignMember(campaign.ID, target.ID)
	switch {
	case err == nil:
		switch existing.Status {
		case models.StatusInvited:
			utils.WriteBadRequestResponse(w, "User already invited")
		case models.StatusActive:
			utils.WriteBadRequestResponse(w, "User is already a player")
		case models.StatusDeclined:
			// Re-invite reuses the existing row
			existing.Status = models.StatusInvited
			if err := h.db.UpdateCampaignMember(existing); err != nil {
				utils.WriteInternalServerErrorResponse(w, err.Error())
				return
			}
			utils.WriteCreatedResponse(w, map[string]interface{}{
				"message":    "User re-invited",
				"invitation": existing,
			})
		}
		return
	case errors.Is(err, database.ErrNotFound):
		invitation := &models.CampaignMember{
			CampaignID: campaign.ID,
			UserID:     target.ID,
			Role:       models.RolePlayer,
			Status:     models.StatusInvited,
		}
		if err := h.db.CreateCampaignMember(invitation); err != nil {
			// A concurrent invite won the race; same outcome as the
			// search-then-branch duplicate check above.
			if errors.Is(err, database.ErrDuplicateMember) {
				utils.WriteBadRequestResponse(w, "User already invited")
				return
			}
			utils.WriteInternalServerErrorResponse(w, err.Error())
			return
		}
		utils.WriteCreatedResponse(w, map[string]interface{}{
			"message":    "Invitation sent",
			"invitation": invitation,
		})
		return
	default:
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
}

// POST /campaigns/invitation/respond
// Only the invited user may accept or decline, and only while the row is in
// status "invited".
func (h *CampaignsHandler) RespondInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.RespondInvitationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.InvitationID) == "" {
		utils.WriteBadRequestResponse(w, "invitationId required")
		return
	}

	invitation, err := h.db.GetCampaignMember(req.InvitationID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return
	}
	if invitation.UserID != user.ID {
		utils.WriteForbiddenResponse(w, "Not your invitation")
		return
	}
	if invitation.Status != models.StatusInvited {
		utils.WriteBadRequestResponse(w, "Invitation already responded")
		return
	}

	var message string
	switch req.Response {
	case "accept":
		invitation.Status = models.StatusActive
		message = "Invitation accepted"
	case "decline":
		invitation.Status = models.StatusDeclined
		message = "Invitation declined"
	default:
		utils.WriteBadRequestResponse(w, "Invalid response")
		return
	}

	if err := h.db.UpdateCampaignMember(invitation); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message":    message,
		"invitation": invitation,
	})
}

// GET /campaigns/invitations/pending
func (h *CampaignsHandler) ListPendingInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	invitations, err := h.db.ListPendingInvitations(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invitations})
}

// DELETE /campaigns/{campaignId}/player/{playerId}
// Owner removes a member row from the campaign. The owner's own row (if any)
// is not removable through this path.
func (h *CampaignsHandler) RemovePlayer(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	campaignID := chiRoute.URLParam(r, "id")
	playerID := chiRoute.URLParam(r, "playerId")

	campaign := h.requireOwnedCampaign(w, campaignID, user.ID)
	if campaign == nil {
		return
	}

	member, err := h.db.GetCampaignMember(playerID)
	if err != nil || member.CampaignID != campaign.ID {
		utils.WriteNotFoundResponse(w, "Player not found in campaign")
		return
	}
	if member.UserID == campaign.OwnerID {
		utils.WriteForbiddenResponse(w, "The campaign owner cannot be removed")
		return
	}

	if err := h.db.DeleteCampaignMember(member.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"message": "Player removed", "id": member.ID})
}
