package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"masterhelp-backend/pkg/models"

	"github.com/google/uuid"
)

// LocalDatabase is a JSON-file backed store used for development and tests.
// Every collection lives in one file under dataDir; writes rewrite the file.
type LocalDatabase struct {
	dataDir string
	mu      sync.RWMutex
}

// NewLocalDatabase creates a local database instance rooted at dataDir
func NewLocalDatabase(dataDir string) DatabaseInterface {
	if dataDir == "" {
		dataDir = "./data/db"
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fmt.Printf("Warning: failed to create data directory: %v\n", err)
		dataDir = filepath.Join(os.TempDir(), "masterhelp-data")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			fmt.Printf("Warning: failed to create temp data directory: %v\n", err)
			dataDir = "."
		}
	}

	return &LocalDatabase{dataDir: dataDir}
}

// ==== file helpers ====

func (db *LocalDatabase) load(name string, v interface{}) error {
	path := filepath.Join(db.dataDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // empty collection
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func (db *LocalDatabase) save(name string, v interface{}) error {
	path := filepath.Join(db.dataDir, name+".json")
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// storedUser persists the password hash that models.User keeps out of JSON
// responses.
type storedUser struct {
	models.User
	Password string `json:"password_hash"`
}

func (db *LocalDatabase) loadUsers() ([]models.User, error) {
	var stored []storedUser
	if err := db.load("users", &stored); err != nil {
		return nil, err
	}
	users := make([]models.User, len(stored))
	for i := range stored {
		users[i] = stored[i].User
		users[i].Password = stored[i].Password
	}
	return users, nil
}

func (db *LocalDatabase) saveUsers(users []models.User) error {
	stored := make([]storedUser, len(users))
	for i := range users {
		stored[i] = storedUser{User: users[i], Password: users[i].Password}
	}
	return db.save("users", stored)
}

func (db *LocalDatabase) loadCampaigns() ([]models.Campaign, error) {
	var campaigns []models.Campaign
	err := db.load("campaigns", &campaigns)
	return campaigns, err
}

func (db *LocalDatabase) loadMembers() ([]models.CampaignMember, error) {
	var members []models.CampaignMember
	err := db.load("campaign_members", &members)
	return members, err
}

// storedSong re-exposes the audio bytes that models.Song hides from JSON
// responses; the file store has to persist them.
type storedSong struct {
	models.Song
	Data []byte `json:"data"`
}

func (db *LocalDatabase) loadSongs() ([]models.Song, error) {
	var stored []storedSong
	if err := db.load("songs", &stored); err != nil {
		return nil, err
	}
	songs := make([]models.Song, len(stored))
	for i := range stored {
		songs[i] = stored[i].Song
		songs[i].Data = stored[i].Data
	}
	return songs, nil
}

func (db *LocalDatabase) saveSongs(songs []models.Song) error {
	stored := make([]storedSong, len(songs))
	for i := range songs {
		stored[i] = storedSong{Song: songs[i], Data: songs[i].Data}
	}
	return db.save("songs", stored)
}

// ==== users ====

func (db *LocalDatabase) CreateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return err
	}

	for _, u := range users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("username or email already exists")
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	users = append(users, *user)
	return db.saveUsers(users)
}

func (db *LocalDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users, err := db.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

func (db *LocalDatabase) GetUserByUsername(username string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users, err := db.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

func (db *LocalDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.getUserByIDLocked(id)
}

func (db *LocalDatabase) getUserByIDLocked(id string) (*models.User, error) {
	users, err := db.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

func (db *LocalDatabase) UpdateUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == user.ID {
			user.UpdatedAt = time.Now()
			users[i] = *user
			return db.saveUsers(users)
		}
	}
	return ErrNotFound
}

func (db *LocalDatabase) DeleteUser(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == id {
			users = append(users[:i], users[i+1:]...)
			return db.saveUsers(users)
		}
	}
	return ErrNotFound
}

// ==== campaigns ====

func (db *LocalDatabase) CreateCampaign(c *models.Campaign) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	campaigns, err := db.loadCampaigns()
	if err != nil {
		return err
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()

	stored := *c
	stored.Owner = nil
	stored.Players = nil
	campaigns = append(campaigns, stored)
	return db.save("campaigns", campaigns)
}

func (db *LocalDatabase) GetCampaign(id string) (*models.Campaign, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.getCampaignLocked(id)
}

func (db *LocalDatabase) getCampaignLocked(id string) (*models.Campaign, error) {
	campaigns, err := db.loadCampaigns()
	if err != nil {
		return nil, err
	}
	for i := range campaigns {
		if campaigns[i].ID == id {
			c := campaigns[i]
			db.attachRelations(&c)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// attachRelations loads the owner and member rows for a campaign
func (db *LocalDatabase) attachRelations(c *models.Campaign) {
	if owner, err := db.getUserByIDLocked(c.OwnerID); err == nil {
		c.Owner = owner
	}
	members, err := db.loadMembers()
	if err != nil {
		return
	}
	c.Players = []models.CampaignMember{}
	for i := range members {
		if members[i].CampaignID == c.ID {
			m := members[i]
			if u, err := db.getUserByIDLocked(m.UserID); err == nil {
				m.User = u
			}
			c.Players = append(c.Players, m)
		}
	}
}

func (db *LocalDatabase) UpdateCampaign(c *models.Campaign) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	campaigns, err := db.loadCampaigns()
	if err != nil {
		return err
	}
	for i := range campaigns {
		if campaigns[i].ID == c.ID {
			c.UpdatedAt = time.Now()
			stored := *c
			stored.Owner = nil
			stored.Players = nil
			campaigns[i] = stored
			return db.save("campaigns", campaigns)
		}
	}
	return ErrNotFound
}

func (db *LocalDatabase) DeleteCampaign(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	campaigns, err := db.loadCampaigns()
	if err != nil {
		return err
	}
	found := false
	for i := range campaigns {
		if campaigns[i].ID == id {
			campaigns = append(campaigns[:i], campaigns[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	if err := db.save("campaigns", campaigns); err != nil {
		return err
	}

	// Cascade: drop membership rows of the deleted campaign
	members, err := db.loadMembers()
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, m := range members {
		if m.CampaignID != id {
			kept = append(kept, m)
		}
	}
	return db.save("campaign_members", kept)
}

func (db *LocalDatabase) ListCampaignsOwnedBy(userID string) ([]models.Campaign, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	campaigns, err := db.loadCampaigns()
	if err != nil {
		return nil, err
	}
	var out []models.Campaign
	for i := range campaigns {
		if campaigns[i].OwnerID == userID {
			c := campaigns[i]
			db.attachRelations(&c)
			out = append(out, c)
		}
	}
	return out, nil
}

func (db *LocalDatabase) ListCampaignsWithMember(userID string) ([]models.Campaign, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	members, err := db.loadMembers()
	if err != nil {
		return nil, err
	}
	var out []models.Campaign
	for _, m := range members {
		if m.UserID != userID {
			continue
		}
		if c, err := db.getCampaignLocked(m.CampaignID); err == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// ==== campaign members ====

func (db *LocalDatabase) CreateCampaignMember(m *models.CampaignMember) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	members, err := db.loadMembers()
	if err != nil {
		return err
	}

	// Same invariant the Postgres unique constraint enforces
	for _, existing := range members {
		if existing.CampaignID == m.CampaignID && existing.UserID == m.UserID {
			return ErrDuplicateMember
		}
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = time.Now()

	stored := *m
	stored.User = nil
	stored.Campaign = nil
	members = append(members, stored)
	return db.save("campaign_members", members)
}

func (db *LocalDatabase) GetCampaignMember(id string) (*models.CampaignMember, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	members, err := db.loadMembers()
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].ID == id {
			m := members[i]
			if u, err := db.getUserByIDLocked(m.UserID); err == nil {
				m.User = u
			}
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (db *LocalDatabase) FindCampaignMember(campaignID, userID string) (*models.CampaignMember, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	members, err := db.loadMembers()
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].CampaignID == campaignID && members[i].UserID == userID {
			return &members[i], nil
		}
	}
	return nil, ErrNotFound
}

func (db *LocalDatabase) UpdateCampaignMember(m *models.CampaignMember) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	members, err := db.loadMembers()
	if err != nil {
		return err
	}
	for i := range members {
		if members[i].ID == m.ID {
			m.UpdatedAt = time.Now()
			stored := *m
			stored.User = nil
			stored.Campaign = nil
			members[i] = stored
			return db.save("campaign_members", members)
		}
	}
	return ErrNotFound
}

func (db *LocalDatabase) DeleteCampaignMember(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	members, err := db.loadMembers()
	if err != nil {
		return err
	}
	for i := range members {
		if members[i].ID == id {
			members = append(members[:i], members[i+1:]...)
			return db.save("campaign_members", members)
		}
	}
	return ErrNotFound
}

func (db *LocalDatabase) ListCampaignMembers(campaignID string) ([]models.CampaignMember, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	members, err := db.loadMembers()
	if err != nil {
		return nil, err
	}
	var out []models.CampaignMember
	for i := range members {
		if members[i].CampaignID == campaignID {
			m := members[i]
			if u, err := db.getUserByIDLocked(m.UserID); err == nil {
				m.User = u
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func (db *LocalDatabase) ListPendingInvitations(userID string) ([]models.CampaignMember, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	members, err := db.loadMembers()
	if err != nil {
		return nil, err
	}
	out := []models.CampaignMember{}
	for i := range members {
		if members[i].UserID != userID || members[i].Status != models.StatusInvited {
			continue
		}
		m := members[i]
		if c, err := db.getCampaignLocked(m.CampaignID); err == nil {
			c.Players = nil // keep the payload small, callers want campaign + owner
			m.Campaign = c
		}
		out = append(out, m)
	}
	return out, nil
}

// ==== songs ====

type songAssociation struct {
	SongID     string `json:"song_id"`
	CampaignID string `json:"campaign_id"`
}

func (db *LocalDatabase) loadAssociations() ([]songAssociation, error) {
	var assocs []songAssociation
	err := db.load("song_campaigns", &assocs)
	return assocs, err
}

func (db *LocalDatabase) attachAssociations(s *models.Song) {
	assocs, err := db.loadAssociations()
	if err != nil {
		return
	}
	s.CampaignIDs = []string{}
	for _, a := range assocs {
		if a.SongID == s.ID {
			s.CampaignIDs = append(s.CampaignIDs, a.CampaignID)
		}
	}
}

func (db *LocalDatabase) CreateSong(s *models.Song) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	songs, err := db.loadSongs()
	if err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()

	stored := *s
	campaignIDs := stored.CampaignIDs
	stored.CampaignIDs = nil
	songs = append(songs, stored)
	if err := db.saveSongs(songs); err != nil {
		return err
	}

	// Initial associations, if any
	if len(campaignIDs) > 0 {
		assocs, err := db.loadAssociations()
		if err != nil {
			return err
		}
		for _, cid := range campaignIDs {
			assocs = append(assocs, songAssociation{SongID: s.ID, CampaignID: cid})
		}
		return db.save("song_campaigns", assocs)
	}
	return nil
}

func (db *LocalDatabase) GetSong(id string) (*models.Song, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	songs, err := db.loadSongs()
	if err != nil {
		return nil, err
	}
	for i := range songs {
		if songs[i].ID == id {
			s := songs[i]
			db.attachAssociations(&s)
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (db *LocalDatabase) UpdateSong(s *models.Song) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	songs, err := db.loadSongs()
	if err != nil {
		return err
	}
	for i := range songs {
		if songs[i].ID == s.ID {
			s.UpdatedAt = time.Now()
			stored := *s
			stored.CampaignIDs = nil
			songs[i] = stored
			return db.saveSongs(songs)
		}
	}
	return ErrNotFound
}

func (db *LocalDatabase) DeleteSong(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	songs, err := db.loadSongs()
	if err != nil {
		return err
	}
	for i := range songs {
		if songs[i].ID == id {
			songs = append(songs[:i], songs[i+1:]...)
			if err := db.saveSongs(songs); err != nil {
				return err
			}
			assocs, err := db.loadAssociations()
			if err != nil {
				return err
			}
			kept := assocs[:0]
			for _, a := range assocs {
				if a.SongID != id {
					kept = append(kept, a)
				}
			}
			return db.save("song_campaigns", kept)
		}
	}
	return ErrNotFound
}

func (db *LocalDatabase) ListSongsByOwner(ownerID string) ([]models.Song, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	songs, err := db.loadSongs()
	if err != nil {
		return nil, err
	}
	var out []models.Song
	for i := range songs {
		if songs[i].OwnerID == ownerID {
			s := songs[i]
			db.attachAssociations(&s)
			out = append(out, s)
		}
	}
	return out, nil
}

func (db *LocalDatabase) ListSongsByCampaign(campaignID string) ([]models.Song, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	assocs, err := db.loadAssociations()
	if err != nil {
		return nil, err
	}
	wanted := map[string]bool{}
	for _, a := range assocs {
		if a.CampaignID == campaignID {
			wanted[a.SongID] = true
		}
	}

	songs, err := db.loadSongs()
	if err != nil {
		return nil, err
	}
	var out []models.Song
	for i := range songs {
		if wanted[songs[i].ID] {
			s := songs[i]
			db.attachAssociations(&s)
			out = append(out, s)
		}
	}
	return out, nil
}

func (db *LocalDatabase) AssociateSong(songID, campaignID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	assocs, err := db.loadAssociations()
	if err != nil {
		return err
	}
	for _, a := range assocs {
		if a.SongID == songID && a.CampaignID == campaignID {
			return nil // already associated
		}
	}
	assocs = append(assocs, songAssociation{SongID: songID, CampaignID: campaignID})
	return db.save("song_campaigns", assocs)
}

func (db *LocalDatabase) UnassociateSong(songID, campaignID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	assocs, err := db.loadAssociations()
	if err != nil {
		return err
	}
	kept := assocs[:0]
	for _, a := range assocs {
		if !(a.SongID == songID && a.CampaignID == campaignID) {
			kept = append(kept, a)
		}
	}
	return db.save("song_campaigns", kept)
}

// ==== misc ====

func (db *LocalDatabase) HealthCheck() error {
	if _, err := os.Stat(db.dataDir); err != nil {
		return fmt.Errorf("data directory not accessible: %w", err)
	}
	return nil
}

func (db *LocalDatabase) Close() error {
	return nil
}
