package song

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/room"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/events"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/storage"
)

// Service manages the songs under a room and the comments under songs.
// It leans on the room service for every status and permission check.
type Service struct {
	db      *database.DB
	rooms   *room.Service
	storage *storage.Service
	events  *events.KafkaClient
	logger  *zap.Logger
}

// NewService builds the song service. store and ev may be nil.
func NewService(db *database.DB, rooms *room.Service, store *storage.Service, ev *events.KafkaClient, logger *zap.Logger) *Service {
	return &Service{db: db, rooms: rooms, storage: store, events: ev, logger: logger}
}

// AddSongInput is the validated payload for adding one song version.
type AddSongInput struct {
	Title       string
	URL         string
	SourceType  models.SongSourceType
	StorageType models.SongStorageType
	StorageKey  string
}

// AddSong attaches a new song version to a room. Owners add songs while
// the room is a draft; admins may add at any time. The two-song ceiling
// holds regardless of who asks or what status the room is in.
func (s *Service) AddSong(ctx context.Context, roomID, requesterID, role string, input AddSongInput) (*models.Song, error) {
	rm, err := s.rooms.ManagedRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return nil, err
	}

	if role != models.RoleAdmin && rm.Status != models.RoomStatusDraft {
		return nil, fmt.Errorf("%w: songs can only be added while the room is a draft", apperr.ErrForbidden)
	}

	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("%w: song title is required", apperr.ErrValidation)
	}
	if strings.TrimSpace(input.URL) == "" {
		return nil, fmt.Errorf("%w: song url is required", apperr.ErrValidation)
	}
	if input.SourceType == "" {
		input.SourceType = models.SourceDirect
	}
	if !input.SourceType.Valid() {
		return nil, fmt.Errorf("%w: invalid source type %q", apperr.ErrValidation, input.SourceType)
	}
	if input.StorageType == "" {
		input.StorageType = models.StorageExternal
	}
	if !input.StorageType.Valid() {
		return nil, fmt.Errorf("%w: invalid storage type %q", apperr.ErrValidation, input.StorageType)
	}
	if input.StorageType == models.StorageCloudflare && input.StorageKey == "" {
		return nil, fmt.Errorf("%w: storage key is required for hosted files", apperr.ErrValidation)
	}

	count, err := s.db.CountSongsByRoom(rm.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count songs: %w", err)
	}
	if count >= room.MaxSongs {
		return nil, fmt.Errorf("%w: room already has %d songs", apperr.ErrValidation, room.MaxSongs)
	}

	uploader, err := s.loadUser(requesterID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	song := &models.Song{
		ID:           uuid.New(),
		RoomID:       rm.ID,
		Title:        strings.TrimSpace(input.Title),
		URL:          input.URL,
		UploaderID:   uploader.ID,
		UploaderName: uploader.DisplayName,
		SourceType:   input.SourceType,
		StorageType:  input.StorageType,
		StorageKey:   input.StorageKey,
		CreatedAt:    now,
	}

	if err := s.db.CreateSong(song); err != nil {
		return nil, fmt.Errorf("failed to create song: %w", err)
	}

	rm.UpdatedAt = now
	if err := s.db.UpdateRoom(rm); err != nil {
		s.logger.Warn("failed to touch room after song add", zap.String("room_id", roomID), zap.Error(err))
	}
	s.rooms.InvalidateCache(ctx, roomID)

	s.publish(ctx, events.EventTypeSongAdded, roomID, requesterID, events.SongAddedPayload{
		SongID: song.ID.String(),
		Title:  song.Title,
	})

	s.logger.Info("song added",
		zap.String("room_id", roomID),
		zap.String("song_id", song.ID.String()),
		zap.String("source_type", string(song.SourceType)))

	return song, nil
}

// RemoveSong removes a song version. Only legal while the room is a
// draft; once a room has gone active its songs are permanent.
func (s *Service) RemoveSong(ctx context.Context, roomID, songID, requesterID, role string) error {
	rm, err := s.rooms.ManagedRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return err
	}

	if rm.Status != models.RoomStatusDraft {
		return fmt.Errorf("%w: songs can only be removed while the room is a draft", apperr.ErrValidation)
	}

	song, err := s.loadRoomSong(rm.ID, songID)
	if err != nil {
		return err
	}

	if err := s.db.DeleteSong(song.ID); err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}

	rm.UpdatedAt = time.Now()
	if err := s.db.UpdateRoom(rm); err != nil {
		s.logger.Warn("failed to touch room after song removal", zap.String("room_id", roomID), zap.Error(err))
	}
	s.rooms.InvalidateCache(ctx, roomID)

	s.publish(ctx, events.EventTypeSongRemoved, roomID, requesterID, events.SongRemovedPayload{
		SongID: song.ID.String(),
	})

	return nil
}

// AddComment attaches feedback to a song. Rooms only take comments while
// active. Anonymous comments display as "Anonymous" but keep the real
// author id on the row.
func (s *Service) AddComment(ctx context.Context, roomID, songID, authorID, role, text string, anonymous bool, parentID string) (*models.Comment, error) {
	rm, err := s.rooms.GetRoom(ctx, roomID, authorID, role)
	if err != nil {
		return nil, err
	}

	if rm.Status != models.RoomStatusActive {
		return nil, fmt.Errorf("%w: comments are only allowed while the room is active", apperr.ErrForbidden)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: comment text is required", apperr.ErrValidation)
	}

	song, err := s.loadRoomSong(rm.ID, songID)
	if err != nil {
		return nil, err
	}

	var parent *uuid.UUID
	if parentID != "" {
		pid, err := uuid.Parse(parentID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid parent comment id", apperr.ErrValidation)
		}
		parentComment, err := s.db.GetCommentByID(pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: parent comment", apperr.ErrNotFound)
			}
			return nil, fmt.Errorf("failed to load parent comment: %w", err)
		}
		if parentComment.SongID != song.ID {
			return nil, fmt.Errorf("%w: parent comment belongs to a different song", apperr.ErrValidation)
		}
		parent = &pid
	}

	author, err := s.loadUser(authorID)
	if err != nil {
		return nil, err
	}

	authorName := author.DisplayName
	if authorName == "" {
		authorName = author.Username
	}
	if anonymous {
		authorName = "Anonymous"
	}

	now := time.Now()
	comment := &models.Comment{
		ID:         uuid.New(),
		SongID:     song.ID,
		RoomID:     rm.ID,
		AuthorID:   author.ID,
		AuthorName: authorName,
		Text:       text,
		Anonymous:  anonymous,
		ParentID:   parent,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.db.CreateComment(comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.publish(ctx, events.EventTypeCommentAdded, roomID, authorID, events.CommentAddedPayload{
		CommentID:  comment.ID.String(),
		SongID:     song.ID.String(),
		AuthorName: comment.AuthorName,
		Text:       comment.Text,
	})

	return comment, nil
}

// SetCommentHidden hides or reveals a comment. Room owner or admin only.
func (s *Service) SetCommentHidden(ctx context.Context, roomID, commentID, requesterID, role string, hidden bool) error {
	rm, err := s.rooms.ManagedRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return err
	}

	cid, err := uuid.Parse(commentID)
	if err != nil {
		return fmt.Errorf("%w: invalid comment id", apperr.ErrValidation)
	}
	comment, err := s.db.GetCommentByID(cid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: comment", apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to load comment: %w", err)
	}
	if comment.RoomID != rm.ID {
		return fmt.Errorf("%w: comment", apperr.ErrNotFound)
	}

	comment.Hidden = hidden
	comment.UpdatedAt = time.Now()
	if err := s.db.Save(comment).Error; err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}

	return nil
}

// IssueUploadURL hands out a presigned PUT ticket for a song file. Gated
// exactly like AddSong so nobody can stage uploads for rooms they cannot
// add songs to.
func (s *Service) IssueUploadURL(ctx context.Context, roomID, requesterID, role, filename string) (*storage.UploadTicket, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("uploads are not configured")
	}

	rm, err := s.rooms.ManagedRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && rm.Status != models.RoomStatusDraft {
		return nil, fmt.Errorf("%w: songs can only be added while the room is a draft", apperr.ErrForbidden)
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", apperr.ErrValidation)
	}

	count, err := s.db.CountSongsByRoom(rm.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count songs: %w", err)
	}
	if count >= room.MaxSongs {
		return nil, fmt.Errorf("%w: room already has %d songs", apperr.ErrValidation, room.MaxSongs)
	}

	key := storage.BuildSongKey(rm.ID.String(), filename)
	return s.storage.IssueUploadURL(ctx, key)
}

func (s *Service) loadUser(userID string) (*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", apperr.ErrValidation)
	}
	user, err := s.db.GetUserByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *Service) loadRoomSong(roomID uuid.UUID, songID string) (*models.Song, error) {
	id, err := uuid.Parse(songID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid song id", apperr.ErrValidation)
	}
	song, err := s.db.GetSongByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: song", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load song: %w", err)
	}
	if song.RoomID != roomID {
		return nil, fmt.Errorf("%w: song", apperr.ErrNotFound)
	}
	return song, nil
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, roomID, userID string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(ctx, eventType, roomID, userID, payload); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("type", string(eventType)),
			zap.String("room_id", roomID),
			zap.Error(err))
	}
}
