package database

import (
	"errors"
	"fmt"
	"sync"

	"masterhelp-backend/pkg/models"
)

// Sentinel errors shared by all implementations
var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicateMember is returned when a second membership row for the same
	// (campaign, user) pair would be created. Postgres reports this through the
	// unique constraint; the local store checks before writing.
	ErrDuplicateMember = errors.New("membership already exists")
)

// DatabaseInterface defines the persistence operations used by the handlers
type DatabaseInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error
	DeleteUser(id string) error

	// Campaigns
	CreateCampaign(c *models.Campaign) error
	// GetCampaign loads a campaign with its owner and member rows (members
	// include their users).
	GetCampaign(id string) (*models.Campaign, error)
	UpdateCampaign(c *models.Campaign) error
	DeleteCampaign(id string) error
	ListCampaignsOwnedBy(userID string) ([]models.Campaign, error)
	ListCampaignsWithMember(userID string) ([]models.Campaign, error)

	// Campaign members. A membership row is the sole representation of a
	// user's relationship to a campaign; an "invitation" is a row in status
	// invited. At most one row per (campaign, user).
	CreateCampaignMember(m *models.CampaignMember) error
	GetCampaignMember(id string) (*models.CampaignMember, error)
	FindCampaignMember(campaignID, userID string) (*models.CampaignMember, error)
	UpdateCampaignMember(m *models.CampaignMember) error
	DeleteCampaignMember(id string) error
	ListCampaignMembers(campaignID string) ([]models.CampaignMember, error)
	// ListPendingInvitations returns the user's invited rows with nested
	// campaign and campaign owner for display.
	ListPendingInvitations(userID string) ([]models.CampaignMember, error)

	// Soundtrack
	CreateSong(s *models.Song) error
	GetSong(id string) (*models.Song, error)
	UpdateSong(s *models.Song) error
	DeleteSong(id string) error
	ListSongsByOwner(ownerID string) ([]models.Song, error)
	ListSongsByCampaign(campaignID string) ([]models.Song, error)
	AssociateSong(songID, campaignID string) error
	UnassociateSong(songID, campaignID string) error

	// Health check
	HealthCheck() error

	// Close the underlying store
	Close() error
}

// DatabaseConfig selects and configures a database implementation
type DatabaseConfig struct {
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string
	Debug        bool
}

// NewDatabase picks an implementation from the configuration
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	if config.PostgresDSN != "" && !config.UseLocalDB {
		fmt.Printf("Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if config.UseLocalDB {
		fmt.Printf("Using local file database at %s\n", config.LocalDataDir)
		return NewLocalDatabase(config.LocalDataDir)
	}

	panic("No valid database configuration found. Please configure POSTGRES_DSN or USE_LOCAL_DB=true")
}

var (
	sharedDB   DatabaseInterface
	sharedOnce sync.Once
)

// GetShared returns the process-wide database instance, creating it on first
// use. Later calls ignore the passed configuration.
func GetShared(config DatabaseConfig) DatabaseInterface {
	sharedOnce.Do(func() {
		sharedDB = NewDatabase(config)
	})
	return sharedDB
}
