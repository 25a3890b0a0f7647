package database

import (
	"testing"

	"masterhelp-backend/pkg/models"

	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) DatabaseInterface {
	t.Helper()
	return NewLocalDatabase(t.TempDir())
}

func seedUser(t *testing.T, db DatabaseInterface, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Password: "hash"}
	require.NoError(t, db.CreateUser(u))
	return u
}

func TestLocalUserRoundTrip(t *testing.T) {
	db := newLocal(t)
	u := seedUser(t, db, "alice")

	// the password hash survives persistence even though it is hidden from
	// API responses
	got, err := db.GetUserByUsername("alice")
	require.NoError(t, err)
	require.Equal(t, "hash", got.Password)

	got, err = db.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = db.GetUserByID("missing")
	require.ErrorIs(t, err, ErrNotFound)

	// duplicate username or email is refused
	require.Error(t, db.CreateUser(&models.User{Username: "alice", Email: "x@example.com"}))
	require.Error(t, db.CreateUser(&models.User{Username: "bob", Email: "alice@example.com"}))
}

func TestLocalDuplicateMember(t *testing.T) {
	db := newLocal(t)
	owner := seedUser(t, db, "owner")
	player := seedUser(t, db, "player")

	c := &models.Campaign{Name: "c", OwnerID: owner.ID}
	require.NoError(t, db.CreateCampaign(c))

	first := &models.CampaignMember{
		CampaignID: c.ID, UserID: player.ID,
		Role: models.RolePlayer, Status: models.StatusInvited,
	}
	require.NoError(t, db.CreateCampaignMember(first))

	// one row per (campaign, user), regardless of status
	second := &models.CampaignMember{
		CampaignID: c.ID, UserID: player.ID,
		Role: models.RolePlayer, Status: models.StatusInvited,
	}
	require.ErrorIs(t, db.CreateCampaignMember(second), ErrDuplicateMember)

	// the same user can join a different campaign
	c2 := &models.Campaign{Name: "c2", OwnerID: owner.ID}
	require.NoError(t, db.CreateCampaign(c2))
	require.NoError(t, db.CreateCampaignMember(&models.CampaignMember{
		CampaignID: c2.ID, UserID: player.ID,
		Role: models.RolePlayer, Status: models.StatusInvited,
	}))
}

func TestLocalCampaignCascade(t *testing.T) {
	db := newLocal(t)
	owner := seedUser(t, db, "owner")
	player := seedUser(t, db, "player")

	c := &models.Campaign{Name: "c", OwnerID: owner.ID}
	require.NoError(t, db.CreateCampaign(c))
	m := &models.CampaignMember{CampaignID: c.ID, UserID: player.ID, Role: models.RolePlayer, Status: models.StatusActive}
	require.NoError(t, db.CreateCampaignMember(m))

	require.NoError(t, db.DeleteCampaign(c.ID))

	_, err := db.GetCampaignMember(m.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalPendingInvitationsNested(t *testing.T) {
	db := newLocal(t)
	owner := seedUser(t, db, "owner")
	player := seedUser(t, db, "player")

	c := &models.Campaign{Name: "The Keep", OwnerID: owner.ID}
	require.NoError(t, db.CreateCampaign(c))
	require.NoError(t, db.CreateCampaignMember(&models.CampaignMember{
		CampaignID: c.ID, UserID: player.ID,
		Role: models.RolePlayer, Status: models.StatusInvited,
	}))
	// an active row elsewhere must not show up
	c2 := &models.Campaign{Name: "Other", OwnerID: owner.ID}
	require.NoError(t, db.CreateCampaign(c2))
	require.NoError(t, db.CreateCampaignMember(&models.CampaignMember{
		CampaignID: c2.ID, UserID: player.ID,
		Role: models.RolePlayer, Status: models.StatusActive,
	}))

	pending, err := db.ListPendingInvitations(player.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Campaign)
	require.Equal(t, "The Keep", pending[0].Campaign.Name)
	require.NotNil(t, pending[0].Campaign.Owner)
	require.Equal(t, "owner", pending[0].Campaign.Owner.Username)
}

func TestLocalSongDataPersists(t *testing.T) {
	db := newLocal(t)
	owner := seedUser(t, db, "owner")

	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	s := &models.Song{
		Name: "track", MimeType: "audio/mpeg", Size: len(audio),
		Data: audio, OwnerID: owner.ID,
	}
	require.NoError(t, db.CreateSong(s))

	got, err := db.GetSong(s.ID)
	require.NoError(t, err)
	require.Equal(t, audio, got.Data)

	// associations are a set keyed by (song, campaign)
	c := &models.Campaign{Name: "c", OwnerID: owner.ID}
	require.NoError(t, db.CreateCampaign(c))
	require.NoError(t, db.AssociateSong(s.ID, c.ID))
	require.NoError(t, db.AssociateSong(s.ID, c.ID))

	got, err = db.GetSong(s.ID)
	require.NoError(t, err)
	require.Equal(t, []string{c.ID}, got.CampaignIDs)

	require.NoError(t, db.UnassociateSong(s.ID, c.ID))
	got, err = db.GetSong(s.ID)
	require.NoError(t, err)
	require.Empty(t, got.CampaignIDs)

	// deleting the song clears its associations too
	require.NoError(t, db.AssociateSong(s.ID, c.ID))
	require.NoError(t, db.DeleteSong(s.ID))
	songs, err := db.ListSongsByCampaign(c.ID)
	require.NoError(t, err)
	require.Empty(t, songs)
}
