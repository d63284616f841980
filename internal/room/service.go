package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/events"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
	redisstore "github.com/rooms-songpig/songpig-rooms-sub000/pkg/redis"
)

const (
	inviteCodeLength   = 6
	inviteCodeCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeAttempts = 10

	// Maximum number of songs a room can ever hold.
	MaxSongs = 2

	fetchTimeout  = 10 * time.Second
	maxRetryDelay = 2 * time.Second
)

// RetryConfig tunes the lookup-after-create retries that paper over
// replica read lag. Attempts <= 1 disables retrying.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 5, BaseDelay: 200 * time.Millisecond}
}

// Service owns the room lifecycle: the draft/active/archived/deleted state
// machine and every permission predicate that depends on it.
type Service struct {
	db     *database.DB
	cache  *redisstore.RoomCache
	events *events.KafkaClient
	logger *zap.Logger
	retry  RetryConfig
}

// NewService builds the room service. cache and ev may be nil (tests run
// without Redis or Kafka).
func NewService(db *database.DB, cache *redisstore.RoomCache, ev *events.KafkaClient, logger *zap.Logger, retry RetryConfig) *Service {
	if retry.Attempts < 1 {
		retry = DefaultRetryConfig()
	}
	return &Service{db: db, cache: cache, events: ev, logger: logger, retry: retry}
}

// CreateRoom creates a draft room owned by the artist, with a fresh
// collision-checked invite code and a snapshot of the artist's profile.
func (s *Service) CreateRoom(ctx context.Context, ownerID, role, name, description string, accessType models.RoomAccessType) (*models.Room, error) {
	if role != models.RoleArtist && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only artists can create rooms", apperr.ErrForbidden)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: room name is required", apperr.ErrValidation)
	}
	if accessType == "" {
		accessType = models.AccessPrivate
	}
	if !accessType.Valid() {
		return nil, fmt.Errorf("%w: invalid access type %q", apperr.ErrValidation, accessType)
	}

	ownerUUID, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid owner id", apperr.ErrValidation)
	}
	owner, err := s.db.GetUserByID(ownerUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: owner", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}

	code, err := s.generateInviteCode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &models.Room{
		ID:               uuid.New(),
		Name:             strings.TrimSpace(name),
		Description:      description,
		ArtistID:         owner.ID,
		InvitedArtistIDs: models.IDList{},
		InviteCode:       code,
		AccessType:       accessType,
		Status:           models.RoomStatusDraft,
		ArtistName:       owner.DisplayName,
		ArtistBio:        owner.Bio,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastAccessedAt:   now,
	}

	if err := s.db.CreateRoom(room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	// Verification read-back. Against a replica-lagged store the insert
	// may not be visible yet, so this retries before declaring failure.
	created, err := s.getRoomWithRetry(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("room not visible after create: %w", err)
	}

	s.cacheRoom(ctx, created)
	s.publish(ctx, events.EventTypeRoomCreated, created.ID.String(), ownerID, nil)

	s.logger.Info("room created",
		zap.String("room_id", created.ID.String()),
		zap.String("artist_id", ownerID),
		zap.String("invite_code", created.InviteCode))

	return created, nil
}

// generateInviteCode produces a 6-character uppercase code that no
// non-deleted room currently uses.
func (s *Service) generateInviteCode() (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code := make([]byte, inviteCodeLength)
		for i := range code {
			code[i] = inviteCodeCharset[rand.Intn(len(inviteCodeCharset))]
		}

		_, err := s.db.GetRoomByInviteCode(string(code))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return string(code), nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		// Collision, try again.
	}
	return "", fmt.Errorf("could not generate a unique invite code")
}

// getRoomWithRetry polls for the room with linear backoff. Compensates for
// read-after-write lag; the attempt count and base delay are configured,
// not hardcoded per call site.
func (s *Service) getRoomWithRetry(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		room, err := s.db.GetRoomByID(id)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load room: %w", err)
		}
		lastErr = err

		if attempt == s.retry.Attempts {
			break
		}
		delay := s.retry.BaseDelay * time.Duration(attempt)
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	// Retries exhausted: degrade to not-found.
	return nil, fmt.Errorf("%w: room (%v)", apperr.ErrNotFound, lastErr)
}

// GetRoom loads a room and applies the visibility predicate. Successful
// reads by authenticated non-admins bump the room's last-accessed time.
func (s *Service) GetRoom(ctx context.Context, roomID, requesterID, role string) (*models.Room, error) {
	id, err := uuid.Parse(roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid room id", apperr.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	room := s.cachedRoom(ctx, roomID)
	if room == nil {
		room, err = s.getRoomWithRetry(ctx, id)
		if err != nil {
			return nil, err
		}
		s.cacheRoom(ctx, room)
	}

	if !Visible(room, requesterID, role) {
		return nil, fmt.Errorf("%w: room", apperr.ErrNotFound)
	}

	if requesterID != "" && role != models.RoleAdmin {
		if err := s.db.TouchLastAccessed(room.ID, time.Now()); err != nil {
			s.logger.Warn("failed to touch last accessed", zap.String("room_id", roomID), zap.Error(err))
		}
	}

	return room, nil
}

// SongDetail is a song with its comments attached.
type SongDetail struct {
	models.Song
	Comments []models.Comment `json:"comments"`
}

// Detail is a fully assembled room: the row plus its songs and their
// comments, joined in memory from separate queries.
type Detail struct {
	*models.Room
	Songs []SongDetail `json:"songs"`
}

// GetRoomDetail assembles the full room view. Hidden comments are only
// included for admins and the room owner; anonymous comments drop their
// author id for everyone else.
func (s *Service) GetRoomDetail(ctx context.Context, roomID, requesterID, role string) (*Detail, error) {
	room, err := s.GetRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return nil, err
	}

	songs, err := s.db.GetSongsByRoom(room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load songs: %w", err)
	}
	comments, err := s.db.GetCommentsByRoom(room.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	privileged := CanManage(room, requesterID, role)

	bySong := make(map[uuid.UUID][]models.Comment, len(songs))
	for _, c := range comments {
		if c.Hidden && !privileged {
			continue
		}
		if c.Anonymous && !privileged {
			c.AuthorID = uuid.Nil
		}
		bySong[c.SongID] = append(bySong[c.SongID], c)
	}

	detail := &Detail{Room: room, Songs: make([]SongDetail, 0, len(songs))}
	for _, song := range songs {
		sc := bySong[song.ID]
		if sc == nil {
			sc = []models.Comment{}
		}
		detail.Songs = append(detail.Songs, SongDetail{Song: song, Comments: sc})
	}

	return detail, nil
}

// GetRoomByInviteCode resolves an invite code for joining. Only active
// rooms are joinable; a room in any other status yields a distinct
// "room is not active" error instead of not-found.
func (s *Service) GetRoomByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != inviteCodeLength {
		return nil, fmt.Errorf("%w: invite code must be %d characters", apperr.ErrValidation, inviteCodeLength)
	}

	room, err := s.db.GetRoomByInviteCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: room", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	if room.Status != models.RoomStatusActive {
		return nil, apperr.ErrRoomNotActive
	}

	s.cacheRoom(ctx, room)
	return room, nil
}

// UpdateRoomStatus moves the room through its lifecycle. Activation
// requires exactly two songs; deleted rooms are only reachable (and
// revivable) by admins.
func (s *Service) UpdateRoomStatus(ctx context.Context, roomID, requesterID, role string, newStatus models.RoomStatus) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: invalid status %q", apperr.ErrValidation, newStatus)
	}

	room, err := s.ManagedRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return err
	}

	if newStatus == models.RoomStatusActive {
		count, err := s.db.CountSongsByRoom(room.ID)
		if err != nil {
			return fmt.Errorf("failed to count songs: %w", err)
		}
		if count != MaxSongs {
			return fmt.Errorf("%w: a room needs exactly %d songs to go active, has %d", apperr.ErrValidation, MaxSongs, count)
		}
	}

	oldStatus := room.Status
	room.Status = newStatus
	room.UpdatedAt = time.Now()
	if err := s.db.UpdateRoom(room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	s.invalidateRoom(ctx, roomID)
	s.publish(ctx, events.EventTypeRoomStatusChanged, roomID, requesterID, events.RoomStatusPayload{
		OldStatus: string(oldStatus),
		NewStatus: string(newStatus),
	})

	s.logger.Info("room status changed",
		zap.String("room_id", roomID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(newStatus)))

	return nil
}

// UpdateRoomMetadata edits name and description. Draft-only.
func (s *Service) UpdateRoomMetadata(ctx context.Context, roomID, requesterID, role, name, description string) (*models.Room, error) {
	room, err := s.ManagedRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return nil, err
	}

	if room.Status != models.RoomStatusDraft {
		return nil, fmt.Errorf("%w: metadata can only be edited while the room is a draft", apperr.ErrForbidden)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: room name is required", apperr.ErrValidation)
	}

	room.Name = strings.TrimSpace(name)
	room.Description = description
	room.UpdatedAt = time.Now()
	if err := s.db.UpdateRoom(room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	s.invalidateRoom(ctx, roomID)
	return room, nil
}

// SetStarterFlag toggles the starter-room flag. Admin-only, any status.
func (s *Service) SetStarterFlag(ctx context.Context, roomID, role string, isStarter bool) error {
	if role != models.RoleAdmin {
		return fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}

	id, err := uuid.Parse(roomID)
	if err != nil {
		return fmt.Errorf("%w: invalid room id", apperr.ErrValidation)
	}
	room, err := s.db.GetRoomByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: room", apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to load room: %w", err)
	}

	room.IsStarter = isStarter
	room.UpdatedAt = time.Now()
	if err := s.db.UpdateRoom(room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	s.invalidateRoom(ctx, roomID)
	return nil
}

// InviteArtist adds an artist to the room's invite list.
func (s *Service) InviteArtist(ctx context.Context, roomID, requesterID, role, artistID string) error {
	room, err := s.ManagedRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return err
	}

	artistUUID, err := uuid.Parse(artistID)
	if err != nil {
		return fmt.Errorf("%w: invalid artist id", apperr.ErrValidation)
	}
	artist, err := s.db.GetUserByID(artistUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: artist", apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to load artist: %w", err)
	}
	if artist.Role != models.RoleArtist {
		return fmt.Errorf("%w: only artists can be invited", apperr.ErrValidation)
	}

	if room.InvitedArtistIDs.Contains(artistID) {
		return nil
	}
	room.InvitedArtistIDs = append(room.InvitedArtistIDs, artistID)
	room.UpdatedAt = time.Now()
	if err := s.db.UpdateRoom(room); err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	s.invalidateRoom(ctx, roomID)
	return nil
}

// ListRoomsForUser returns the rooms visible in the requester's dashboard.
// Admins see everything matching the filter (default: all non-deleted);
// everyone else sees owned and invited rooms, drafts only when owned.
func (s *Service) ListRoomsForUser(ctx context.Context, requesterID, role string, statusFilter []models.RoomStatus) ([]*models.Room, error) {
	for _, st := range statusFilter {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: invalid status filter %q", apperr.ErrValidation, st)
		}
	}

	statuses := statusFilter
	if len(statuses) == 0 {
		if role == models.RoleAdmin {
			statuses = []models.RoomStatus{models.RoomStatusDraft, models.RoomStatusActive, models.RoomStatusArchived}
		} else {
			statuses = []models.RoomStatus{models.RoomStatusDraft, models.RoomStatusActive}
		}
	}

	if role != models.RoleAdmin {
		// Deleted rooms never show up for non-admins, whatever the filter.
		filtered := statuses[:0:0]
		for _, st := range statuses {
			if st != models.RoomStatusDeleted {
				filtered = append(filtered, st)
			}
		}
		statuses = filtered
	}

	rooms, err := s.db.ListRoomsByStatuses(statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	if role == models.RoleAdmin {
		return rooms, nil
	}

	visible := make([]*models.Room, 0, len(rooms))
	for _, room := range rooms {
		owned := room.ArtistID.String() == requesterID
		invited := room.InvitedArtistIDs.Contains(requesterID)
		if !owned && !invited {
			continue
		}
		if room.Status == models.RoomStatusDraft && !owned {
			continue
		}
		visible = append(visible, room)
	}
	return visible, nil
}

// ManagedRoom loads a room for mutation, enforcing owner/admin rights.
// Deleted rooms are invisible to non-admins even for their owner, so the
// only way back from deleted is an admin status update. The song service
// shares this check for song and comment mutations.
func (s *Service) ManagedRoom(ctx context.Context, roomID, requesterID, role string) (*models.Room, error) {
	id, err := uuid.Parse(roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid room id", apperr.ErrValidation)
	}

	room, err := s.db.GetRoomByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: room", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load room: %w", err)
	}

	if room.Status == models.RoomStatusDeleted && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: room", apperr.ErrNotFound)
	}
	if !CanManage(room, requesterID, role) {
		return nil, fmt.Errorf("%w: not the room owner", apperr.ErrForbidden)
	}

	return room, nil
}

func (s *Service) cachedRoom(ctx context.Context, roomID string) *models.Room {
	if s.cache == nil {
		return nil
	}
	room, err := s.cache.Get(ctx, roomID)
	if err != nil {
		s.logger.Warn("room cache read failed", zap.String("room_id", roomID), zap.Error(err))
		return nil
	}
	return room
}

func (s *Service) cacheRoom(ctx context.Context, room *models.Room) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, room); err != nil {
		s.logger.Warn("room cache write failed", zap.String("room_id", room.ID.String()), zap.Error(err))
	}
}

// InvalidateCache drops the cached copy of a room. Sibling services call
// this after mutating rows that the assembled room view includes.
func (s *Service) InvalidateCache(ctx context.Context, roomID string) {
	s.invalidateRoom(ctx, roomID)
}

func (s *Service) invalidateRoom(ctx context.Context, roomID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, roomID); err != nil {
		s.logger.Warn("room cache invalidation failed", zap.String("room_id", roomID), zap.Error(err))
	}
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
