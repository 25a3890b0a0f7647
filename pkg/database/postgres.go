package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"masterhelp-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase is the PostgreSQL implementation
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a PostgreSQL connection and verifies it
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		panic(fmt.Sprintf("Failed to open PostgreSQL connection: %v", err))
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		panic(fmt.Sprintf("Failed to ping PostgreSQL: %v", err))
	}

	return &PostgresDatabase{db: db}
}

// isUniqueViolation reports whether err is a Postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ==== users ====

func (db *PostgresDatabase) CreateUser(user *models.User) error {
	if user.Language == "" {
		user.Language = "es"
	}
	if user.Theme == "" {
		user.Theme = "light"
	}
	query := `
		INSERT INTO users (username, email, password_hash, language, theme, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, user.Username, user.Email, user.Password, user.Language, user.Theme).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username or email already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password,
		&user.Language, &user.Theme, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

const userColumns = `id, username, email, COALESCE(password_hash,''), COALESCE(language,'es'), COALESCE(theme,'light'), created_at, updated_at`

func (db *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	return db.scanUser(db.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (db *PostgresDatabase) GetUserByUsername(username string) (*models.User, error) {
	return db.scanUser(db.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (db *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	return db.scanUser(db.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (db *PostgresDatabase) UpdateUser(user *models.User) error {
	query := `
		UPDATE users SET username = $2, email = $3, password_hash = $4, language = $5, theme = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, user.ID, user.Username, user.Email, user.Password, user.Language, user.Theme).
		Scan(&user.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteUser(id string) error {
	res, err := db.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ==== campaigns ====

func (db *PostgresDatabase) CreateCampaign(c *models.Campaign) error {
	query := `
		INSERT INTO campaigns (name, description, image_url, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, c.Name, c.Description, c.ImageURL, c.OwnerID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) GetCampaign(id string) (*models.Campaign, error) {
	query := `
		SELECT id, name, COALESCE(description,''), COALESCE(image_url,''), owner_id, created_at, updated_at
		FROM campaigns WHERE id = $1
	`
	c := &models.Campaign{}
	err := db.db.QueryRow(query, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	if owner, err := db.GetUserByID(c.OwnerID); err == nil {
		owner.Password = ""
		c.Owner = owner
	}
	members, err := db.ListCampaignMembers(c.ID)
	if err != nil {
		return nil, err
	}
	c.Players = members
	return c, nil
}

func (db *PostgresDatabase) UpdateCampaign(c *models.Campaign) error {
	query := `
		UPDATE campaigns SET name = $2, description = $3, image_url = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, c.ID, c.Name, c.Description, c.ImageURL).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteCampaign(id string) error {
	res, err := db.db.Exec(`DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) listCampaigns(query string, args ...interface{}) ([]models.Campaign, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var out []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Attach owner and member rows per campaign. N+1 is acceptable at this
	// scale; campaign lists are small.
	for i := range out {
		if owner, err := db.GetUserByID(out[i].OwnerID); err == nil {
			owner.Password = ""
			out[i].Owner = owner
		}
		members, err := db.ListCampaignMembers(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Players = members
	}
	return out, nil
}

const campaignColumns = `id, name, COALESCE(description,''), COALESCE(image_url,''), owner_id, created_at, updated_at`

func (db *PostgresDatabase) ListCampaignsOwnedBy(userID string) ([]models.Campaign, error) {
	return db.listCampaigns(`SELECT `+campaignColumns+` FROM campaigns WHERE owner_id = $1 ORDER BY created_at`, userID)
}

func (db *PostgresDatabase) ListCampaignsWithMember(userID string) ([]models.Campaign, error) {
	query := `
		SELECT c.id, c.name, COALESCE(c.description,''), COALESCE(c.image_url,''), c.owner_id, c.created_at, c.updated_at
		FROM campaigns c
		JOIN campaign_members m ON m.campaign_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at
	`
	return db.listCampaigns(query, userID)
}

// ==== campaign members ====

func (db *PostgresDatabase) CreateCampaignMember(m *models.CampaignMember) error {
	query := `
		INSERT INTO campaign_members (campaign_id, user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, m.CampaignID, m.UserID, m.Role, m.Status).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		// The unique index on (campaign_id, user_id) closes the concurrent
		// double-invite race; report it as the same "already exists" signal
		// the application-level check produces.
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("failed to create campaign member: %w", err)
	}
	return nil
}

const memberColumns = `id, campaign_id, user_id, role, status, created_at, updated_at`

func (db *PostgresDatabase) scanMember(row *sql.Row) (*models.CampaignMember, error) {
	m := &models.CampaignMember{}
	err := row.Scan(&m.ID, &m.CampaignID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan campaign member: %w", err)
	}
	return m, nil
}

func (db *PostgresDatabase) GetCampaignMember(id string) (*models.CampaignMember, error) {
	m, err := db.scanMember(db.db.QueryRow(`SELECT `+memberColumns+` FROM campaign_members WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if u, err := db.GetUserByID(m.UserID); err == nil {
		u.Password = ""
		m.User = u
	}
	return m, nil
}

func (db *PostgresDatabase) FindCampaignMember(campaignID, userID string) (*models.CampaignMember, error) {
	return db.scanMember(db.db.QueryRow(
		`SELECT `+memberColumns+` FROM campaign_members WHERE campaign_id = $1 AND user_id = $2`,
		campaignID, userID))
}

func (db *PostgresDatabase) UpdateCampaignMember(m *models.CampaignMember) error {
	query := `
		UPDATE campaign_members SET role = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, m.ID, m.Role, m.Status).Scan(&m.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update campaign member: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteCampaignMember(id string) error {
	res, err := db.db.Exec(`DELETE FROM campaign_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) ListCampaignMembers(campaignID string) ([]models.CampaignMember, error) {
	query := `
		SELECT m.id, m.campaign_id, m.user_id, m.role, m.status, m.created_at, m.updated_at,
		       u.id, u.username, u.email
		FROM campaign_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.campaign_id = $1
		ORDER BY m.created_at
	`
	rows, err := db.db.Query(query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign members: %w", err)
	}
	defer rows.Close()

	out := []models.CampaignMember{}
	for rows.Next() {
		var m models.CampaignMember
		var u models.User
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt,
			&u.ID, &u.Username, &u.Email); err != nil {
			return nil, fmt.Errorf("failed to scan campaign member: %w", err)
		}
		m.User = &u
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *PostgresDatabase) ListPendingInvitations(userID string) ([]models.CampaignMember, error) {
	query := `
		SELECT m.id, m.campaign_id, m.user_id, m.role, m.status, m.created_at, m.updated_at,
		       c.id, c.name, COALESCE(c.description,''), COALESCE(c.image_url,''), c.owner_id,
		       o.id, o.username, o.email
		FROM campaign_members m
		JOIN campaigns c ON c.id = m.campaign_id
		JOIN users o ON o.id = c.owner_id
		WHERE m.user_id = $1 AND m.status = 'invited'
		ORDER BY m.created_at
	`
	rows, err := db.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}
	defer rows.Close()

	out := []models.CampaignMember{}
	for rows.Next() {
		var m models.CampaignMember
		var c models.Campaign
		var o models.User
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.UserID, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt,
			&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.OwnerID,
			&o.ID, &o.Username, &o.Email); err != nil {
			return nil, fmt.Errorf("failed to scan pending invitation: %w", err)
		}
		c.Owner = &o
		m.Campaign = &c
		out = append(out, m)
	}
	return out, rows.Err()
}

// ==== songs ====

func (db *PostgresDatabase) CreateSong(s *models.Song) error {
	query := `
		INSERT INTO songs (name, group_name, original_source, mime_type, size, is_public, data, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := db.db.QueryRow(query, s.Name, s.Group, s.OriginalSource, s.MimeType, s.Size, s.IsPublic, s.Data, s.OwnerID).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create song: %w", err)
	}
	for _, cid := range s.CampaignIDs {
		if err := db.AssociateSong(s.ID, cid); err != nil {
			return err
		}
	}
	return nil
}

const songColumns = `id, name, COALESCE(group_name,''), COALESCE(original_source,''), mime_type, size, is_public, data, owner_id, created_at, updated_at`

func (db *PostgresDatabase) GetSong(id string) (*models.Song, error) {
	s := &models.Song{}
	err := db.db.QueryRow(`SELECT `+songColumns+` FROM songs WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Group, &s.OriginalSource, &s.MimeType, &s.Size, &s.IsPublic, &s.Data, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get song: %w", err)
	}
	s.CampaignIDs, err = db.songCampaignIDs(s.ID)
	return s, err
}

func (db *PostgresDatabase) songCampaignIDs(songID string) ([]string, error) {
	rows, err := db.db.Query(`SELECT campaign_id FROM song_campaigns WHERE song_id = $1`, songID)
	if err != nil {
		return nil, fmt.Errorf("failed to list song associations: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *PostgresDatabase) UpdateSong(s *models.Song) error {
	query := `
		UPDATE songs SET name = $2, group_name = $3, is_public = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := db.db.QueryRow(query, s.ID, s.Name, s.Group, s.IsPublic).Scan(&s.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update song: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) DeleteSong(id string) error {
	res, err := db.db.Exec(`DELETE FROM songs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgresDatabase) listSongs(query string, args ...interface{}) ([]models.Song, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	defer rows.Close()

	var out []models.Song
	for rows.Next() {
		var s models.Song
		if err := rows.Scan(&s.ID, &s.Name, &s.Group, &s.OriginalSource, &s.MimeType, &s.Size, &s.IsPublic, &s.Data, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		ids, err := db.songCampaignIDs(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].CampaignIDs = ids
	}
	return out, nil
}

func (db *PostgresDatabase) ListSongsByOwner(ownerID string) ([]models.Song, error) {
	return db.listSongs(`SELECT `+songColumns+` FROM songs WHERE owner_id = $1 ORDER BY created_at`, ownerID)
}

func (db *PostgresDatabase) ListSongsByCampaign(campaignID string) ([]models.Song, error) {
	query := `
		SELECT s.id, s.name, COALESCE(s.group_name,''), COALESCE(s.original_source,''), s.mime_type, s.size, s.is_public, s.data, s.owner_id, s.created_at, s.updated_at
		FROM songs s
		JOIN song_campaigns sc ON sc.song_id = s.id
		WHERE sc.campaign_id = $1
		ORDER BY s.created_at
	`
	return db.listSongs(query, campaignID)
}

func (db *PostgresDatabase) AssociateSong(songID, campaignID string) error {
	_, err := db.db.Exec(`
		INSERT INTO song_campaigns (song_id, campaign_id) VALUES ($1, $2)
		ON CONFLICT (song_id, campaign_id) DO NOTHING
	`, songID, campaignID)
	if err != nil {
		return fmt.Errorf("failed to associate song: %w", err)
	}
	return nil
}

func (db *PostgresDatabase) UnassociateSong(songID, campaignID string) error {
	_, err := db.db.Exec(`DELETE FROM song_campaigns WHERE song_id = $1 AND campaign_id = $2`, songID, campaignID)
	if err != nil {
		return fmt.Errorf("failed to unassociate song: %w", err)
	}
	return nil
}

// ==== misc ====

func (db *PostgresDatabase) HealthCheck() error {
	return db.db.Ping()
}

func (db *PostgresDatabase) Close() error {
	return db.db.Close()
}
