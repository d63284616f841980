package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

// DB wraps gorm with the single-table operations the services use. The
// services assemble related rows in memory; there are no join queries here.
type DB struct {
	*gorm.DB
}

// NewMySQL connects to MySQL, tunes the pool and migrates the schema.
func NewMySQL(host, port, user, password, dbname string) (*DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return New(db)
}

// New wraps an already-open gorm connection and migrates the schema. Tests
// use this with the sqlite driver.
func New(db *gorm.DB) (*DB, error) {
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &DB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Song{},
		&models.Comparison{},
		&models.Comment{},
	)
}

// User operations

func (db *DB) CreateUser(user *models.User) error {
	return db.Create(user).Error
}

func (db *DB) GetUserByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *DB) UpdateUser(user *models.User) error {
	return db.Save(user).Error
}

// Room operations

func (db *DB) CreateRoom(room *models.Room) error {
	return db.Create(room).Error
}

func (db *DB) GetRoomByID(id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRoomByInviteCode resolves an invite code among non-deleted rooms.
// Codes of deleted rooms are considered free for reuse.
func (db *DB) GetRoomByInviteCode(code string) (*models.Room, error) {
	var room models.Room
	if err := db.First(&room, "invite_code = ? AND status <> ?", code, models.RoomStatusDeleted).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (db *DB) UpdateRoom(room *models.Room) error {
	return db.Save(room).Error
}

func (db *DB) ListRoomsByStatuses(statuses []models.RoomStatus) ([]*models.Room, error) {
	var rooms []*models.Room
	if err := db.Where("status IN ?", statuses).
		Order("created_at DESC").
		Find(&rooms).Error; err != nil {
		return nil, err
	}
	return rooms, nil
}

// TouchLastAccessed bumps only the last-accessed column so read tracking
// does not disturb updated_at.
func (db *DB) TouchLastAccessed(id uuid.UUID, at time.Time) error {
	return db.Model(&models.Room{}).
		Where("id = ?", id).
		UpdateColumn("last_accessed_at", at).Error
}

// Song operations

func (db *DB) CreateSong(song *models.Song) error {
	return db.Create(song).Error
}

func (db *DB) GetSongByID(id uuid.UUID) (*models.Song, error) {
	var song models.Song
	if err := db.First(&song, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &song, nil
}

// GetSongsByRoom returns a room's songs in creation order. The pairing
// engine depends on this ordering being stable.
func (db *DB) GetSongsByRoom(roomID uuid.UUID) ([]models.Song, error) {
	var songs []models.Song
	if err := db.Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&songs).Error; err != nil {
		return nil, err
	}
	return songs, nil
}

func (db *DB) CountSongsByRoom(roomID uuid.UUID) (int64, error) {
	var count int64
	if err := db.Model(&models.Song{}).
		Where("room_id = ?", roomID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (db *DB) DeleteSong(id uuid.UUID) error {
	return db.Delete(&models.Song{}, "id = ?", id).Error
}

// Comparison operations

// UpsertComparison records a vote, replacing any prior vote by the same
// voter on the same unordered pair in one statement.
func (db *DB) UpsertComparison(cmp *models.Comparison) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "room_id"}, {Name: "voter_id"}, {Name: "pair_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"song_a_id", "song_b_id", "winner_id", "created_at",
		}),
	}).Create(cmp).Error
}

func (db *DB) GetComparisonsByRoomAndVoter(roomID, voterID uuid.UUID) ([]models.Comparison, error) {
	var cmps []models.Comparison
	if err := db.Where("room_id = ? AND voter_id = ?", roomID, voterID).
		Order("created_at ASC").
		Find(&cmps).Error; err != nil {
		return nil, err
	}
	return cmps, nil
}

func (db *DB) GetComparisonsForSong(roomID, songID uuid.UUID) ([]models.Comparison, error) {
	var cmps []models.Comparison
	if err := db.Where("room_id = ? AND (song_a_id = ? OR song_b_id = ?)", roomID, songID, songID).
		Find(&cmps).Error; err != nil {
		return nil, err
	}
	return cmps, nil
}

// Comment operations

func (db *DB) CreateComment(comment *models.Comment) error {
	return db.Create(comment).Error
}

func (db *DB) GetCommentByID(id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := db.First(&comment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (db *DB) GetCommentsByRoom(roomID uuid.UUID) ([]models.Comment, error) {
	var comments []models.Comment
	if err := db.Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
