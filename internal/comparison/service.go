package comparison

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/room"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/events"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

// Service wires the pure pairing and tally logic to the store: it loads a
// room's songs and a reviewer's history, records votes and answers
// win-rate queries.
type Service struct {
	db     *database.DB
	rooms  *room.Service
	events *events.KafkaClient
	logger *zap.Logger
}

// NewService builds the comparison service. ev may be nil.
func NewService(db *database.DB, rooms *room.Service, ev *events.KafkaClient, logger *zap.Logger) *Service {
	return &Service{db: db, rooms: rooms, events: ev, logger: logger}
}

// NextPair returns the next pair for the voter, or nil when the room does
// not have enough songs to compare.
func (s *Service) NextPair(ctx context.Context, roomID, voterID, role string) (*Pair, error) {
	rm, err := s.reviewableRoom(ctx, roomID, voterID, role)
	if err != nil {
		return nil, err
	}

	songs, err := s.db.GetSongsByRoom(rm.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load songs: %w", err)
	}

	voterUUID, err := uuid.Parse(voterID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid voter id", apperr.ErrValidation)
	}
	voted, err := s.db.GetComparisonsByRoomAndVoter(rm.ID, voterUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vote history: %w", err)
	}

	pair, ok := NextPair(songs, voted)
	if !ok {
		return nil, nil
	}
	return &pair, nil
}

// RecordVote stores one preference. A second vote by the same voter on the
// same unordered pair replaces the first; the pair-key upsert keeps that
// atomic, so concurrent revotes cannot leave two rows behind.
func (s *Service) RecordVote(ctx context.Context, roomID, songAID, songBID, winnerID, voterID, role string) error {
	rm, err := s.reviewableRoom(ctx, roomID, voterID, role)
	if err != nil {
		return err
	}

	aID, err := uuid.Parse(songAID)
	if err != nil {
		return fmt.Errorf("%w: invalid song id", apperr.ErrValidation)
	}
	bID, err := uuid.Parse(songBID)
	if err != nil {
		return fmt.Errorf("%w: invalid song id", apperr.ErrValidation)
	}
	wID, err := uuid.Parse(winnerID)
	if err != nil {
		return fmt.Errorf("%w: invalid winner id", apperr.ErrValidation)
	}
	voterUUID, err := uuid.Parse(voterID)
	if err != nil {
		return fmt.Errorf("%w: invalid voter id", apperr.ErrValidation)
	}

	if aID == bID {
		return fmt.Errorf("%w: a comparison needs two different songs", apperr.ErrValidation)
	}
	if wID != aID && wID != bID {
		return fmt.Errorf("%w: winner must be one of the two songs", apperr.ErrValidation)
	}

	songs, err := s.db.GetSongsByRoom(rm.ID)
	if err != nil {
		return fmt.Errorf("failed to load songs: %w", err)
	}
	if !songInRoom(songs, aID) || !songInRoom(songs, bID) {
		return fmt.Errorf("%w: both songs must belong to the room", apperr.ErrValidation)
	}

	cmp := &models.Comparison{
		ID:        uuid.New(),
		RoomID:    rm.ID,
		VoterID:   voterUUID,
		PairKey:   models.PairKey(aID, bID),
		SongAID:   aID,
		SongBID:   bID,
		WinnerID:  wID,
		CreatedAt: time.Now(),
	}

	if err := s.db.UpsertComparison(cmp); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}

	rm.UpdatedAt = time.Now()
	if err := s.db.UpdateRoom(rm); err != nil {
		s.logger.Warn("failed to touch room after vote", zap.String("room_id", roomID), zap.Error(err))
	}
	s.rooms.InvalidateCache(ctx, roomID)

	s.publish(ctx, events.EventTypeVoteRecorded, roomID, voterID, events.VoteRecordedPayload{
		SongAID:  songAID,
		SongBID:  songBID,
		WinnerID: winnerID,
	})

	return nil
}

// WinRate recomputes a song's standing from its comparisons on every call.
func (s *Service) WinRate(ctx context.Context, roomID, songID, requesterID, role string) (*Stats, error) {
	rm, err := s.rooms.GetRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return nil, err
	}

	sID, err := uuid.Parse(songID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid song id", apperr.ErrValidation)
	}

	songs, err := s.db.GetSongsByRoom(rm.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load songs: %w", err)
	}
	if !songInRoom(songs, sID) {
		return nil, fmt.Errorf("%w: song", apperr.ErrNotFound)
	}

	comparisons, err := s.db.GetComparisonsForSong(rm.ID, sID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comparisons: %w", err)
	}

	stats := Tally(comparisons, sID)
	return &stats, nil
}

// reviewableRoom loads the room and checks it is open for comparison:
// visible to the requester and in active status.
func (s *Service) reviewableRoom(ctx context.Context, roomID, requesterID, role string) (*models.Room, error) {
	rm, err := s.rooms.GetRoom(ctx, roomID, requesterID, role)
	if err != nil {
		return nil, err
	}
	if rm.Status != models.RoomStatusActive {
		return nil, fmt.Errorf("%w: room is not open for comparison", apperr.ErrForbidden)
	}
	return rm, nil
}

func songInRoom(songs []models.Song, id uuid.UUID) bool {
	for _, song := range songs {
		if song.ID == id {
			return true
		}
	}
	return false
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
