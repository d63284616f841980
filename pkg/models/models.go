package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleAdmin    = "admin"
	RoleArtist   = "artist"
	RoleListener = "listener"
)

// User account statuses.
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
	UserStatusDeleted  = "deleted"
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusDraft    RoomStatus = "draft"
	RoomStatusActive   RoomStatus = "active"
	RoomStatusArchived RoomStatus = "archived"
	RoomStatusDeleted  RoomStatus = "deleted"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusDraft, RoomStatusActive, RoomStatusArchived, RoomStatusDeleted:
		return true
	}
	return false
}

// RoomAccessType controls how reviewers get into a room.
type RoomAccessType string

const (
	AccessPrivate        RoomAccessType = "private"
	AccessInvitedArtists RoomAccessType = "invited-artists"
	AccessInviteCode     RoomAccessType = "invite-code"
)

func (a RoomAccessType) Valid() bool {
	switch a {
	case AccessPrivate, AccessInvitedArtists, AccessInviteCode:
		return true
	}
	return false
}

// SongSourceType says where the audio came from.
type SongSourceType string

const (
	SourceDirect          SongSourceType = "direct"
	SourceSoundcloud      SongSourceType = "soundcloud"
	SourceSoundcloudEmbed SongSourceType = "soundcloud_embed"
)

func (s SongSourceType) Valid() bool {
	switch s {
	case SourceDirect, SourceSoundcloud, SourceSoundcloudEmbed:
		return true
	}
	return false
}

// SongStorageType says who hosts the playable file.
type SongStorageType string

const (
	StorageExternal   SongStorageType = "external"
	StorageCloudflare SongStorageType = "cloudflare"
)

func (s SongStorageType) Valid() bool {
	switch s {
	case StorageExternal, StorageCloudflare:
		return true
	}
	return false
}

// IDList is a list of user ids stored as a JSON text column.
type IDList []string

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		l = IDList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IDList) Scan(src interface{}) error {
	if src == nil {
		*l = IDList{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("unsupported type %T for IDList", src)
}

func (l IDList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

type User struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:64"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Bio          string    `json:"bio"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Room struct {
	ID               uuid.UUID      `json:"id" gorm:"primaryKey"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	ArtistID         uuid.UUID      `json:"artist_id" gorm:"index"`
	InvitedArtistIDs IDList         `json:"invited_artist_ids" gorm:"type:text"`
	InviteCode       string         `json:"invite_code" gorm:"index;size:6"`
	AccessType       RoomAccessType `json:"access_type"`
	Status           RoomStatus     `json:"status" gorm:"index"`
	IsStarter        bool           `json:"is_starter"`
	ArtistName       string         `json:"artist_name"`
	ArtistBio        string         `json:"artist_bio"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	LastAccessedAt   time.Time      `json:"last_accessed_at"`
}

type Song struct {
	ID           uuid.UUID       `json:"id" gorm:"primaryKey"`
	RoomID       uuid.UUID       `json:"room_id" gorm:"index"`
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	UploaderID   uuid.UUID       `json:"uploader_id"`
	UploaderName string          `json:"uploader_name"`
	SourceType   SongSourceType  `json:"source_type"`
	StorageType  SongStorageType `json:"storage_type"`
	StorageKey   string          `json:"storage_key,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Comparison is one reviewer's recorded preference between two songs.
// PairKey is the order-independent key of the song pair, so the unique
// index allows at most one row per (room, voter, pair).
type Comparison struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	RoomID    uuid.UUID `json:"room_id" gorm:"uniqueIndex:idx_room_voter_pair"`
	VoterID   uuid.UUID `json:"voter_id" gorm:"uniqueIndex:idx_room_voter_pair"`
	PairKey   string    `json:"-" gorm:"uniqueIndex:idx_room_voter_pair;size:80"`
	SongAID   uuid.UUID `json:"song_a_id"`
	SongBID   uuid.UUID `json:"song_b_id"`
	WinnerID  uuid.UUID `json:"winner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PairKey builds the order-independent key for a song pair.
func PairKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}

type Comment struct {
	ID         uuid.UUID  `json:"id" gorm:"primaryKey"`
	SongID     uuid.UUID  `json:"song_id" gorm:"index"`
	RoomID     uuid.UUID  `json:"room_id" gorm:"index"`
	AuthorID   uuid.UUID  `json:"author_id"`
	AuthorName string     `json:"author_name"`
	Text       string     `json:"text"`
	Anonymous  bool       `json:"anonymous"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty"`
	Hidden     bool       `json:"hidden"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
