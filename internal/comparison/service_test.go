package comparison

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/room"
	"github.com/rooms-songpig/songpig-rooms-sub000/internal/song"
	"github.com/rooms-songpig/songpig-rooms-sub000/internal/testutil"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

type fixture struct {
	db          *database.DB
	rooms       *room.Service
	songs       *song.Service
	comparisons *Service
	artist      *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.Logger()
	rooms := room.NewService(db, nil, nil, log, room.RetryConfig{Attempts: 1, BaseDelay: time.Millisecond})
	songs := song.NewService(db, rooms, nil, nil, log)
	return &fixture{
		db:          db,
		rooms:       rooms,
		songs:       songs,
		comparisons: NewService(db, rooms, nil, log),
		artist:      testutil.NewUser(t, db, "artist", models.RoleArtist),
	}
}

// activeRoom creates a room with two songs and activates it.
func (f *fixture) activeRoom(t *testing.T) (*models.Room, []models.Song) {
	t.Helper()
	ctx := context.Background()
	artistID := f.artist.ID.String()

	rm, err := f.rooms.CreateRoom(ctx, artistID, models.RoleArtist, "Mix check", "", "")
	require.NoError(t, err)

	for _, title := range []string{"Take 1", "Take 2"} {
		_, err := f.songs.AddSong(ctx, rm.ID.String(), artistID, models.RoleArtist, song.AddSongInput{
			Title: title,
			URL:   "https://cdn.example.com/" + title,
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.rooms.UpdateRoomStatus(ctx, rm.ID.String(), artistID, models.RoleArtist, models.RoomStatusActive))

	list, err := f.db.GetSongsByRoom(rm.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	return rm, list
}

func TestRecordVoteReplacesPriorVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rm, songs := f.activeRoom(t)
	voter := testutil.NewUser(t, f.db, "reviewer", models.RoleListener)

	roomID := rm.ID.String()
	a, b := songs[0], songs[1]

	require.NoError(t, f.comparisons.RecordVote(ctx, roomID, a.ID.String(), b.ID.String(), a.ID.String(), voter.ID.String(), models.RoleListener))
	// Revote on the same pair, in reversed order, with the other winner.
	require.NoError(t, f.comparisons.RecordVote(ctx, roomID, b.ID.String(), a.ID.String(), b.ID.String(), voter.ID.String(), models.RoleListener))

	rows, err := f.db.GetComparisonsByRoomAndVoter(rm.ID, voter.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b.ID, rows[0].WinnerID)
}

func TestWinRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rm, songs := f.activeRoom(t)
	roomID := rm.ID.String()
	x, y := songs[0], songs[1]

	// No comparisons yet: zeroes across the board.
	stats, err := f.comparisons.WinRate(ctx, roomID, x.ID.String(), "", "")
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)

	winners := []models.Song{x, x, y}
	for i, winner := range winners {
		voter := testutil.NewUser(t, f.db, "voter"+string(rune('a'+i)), models.RoleListener)
		require.NoError(t, f.comparisons.RecordVote(ctx, roomID, x.ID.String(), y.ID.String(), winner.ID.String(), voter.ID.String(), models.RoleListener))
	}

	stats, err = f.comparisons.WinRate(ctx, roomID, x.ID.String(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.InDelta(t, 66.67, stats.WinRate, 0.01)
}

func TestRecordVoteValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rm, songs := f.activeRoom(t)
	voter := testutil.NewUser(t, f.db, "reviewer", models.RoleListener)

	roomID := rm.ID.String()
	voterID := voter.ID.String()
	a, b := songs[0].ID.String(), songs[1].ID.String()

	// Winner must be one of the two songs.
	otherRoom, otherSongs := f.activeRoom(t)
	err := f.comparisons.RecordVote(ctx, roomID, a, b, otherSongs[0].ID.String(), voterID, models.RoleListener)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Both songs must belong to the room.
	err = f.comparisons.RecordVote(ctx, roomID, a, otherSongs[0].ID.String(), a, voterID, models.RoleListener)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// A pair needs two distinct songs.
	err = f.comparisons.RecordVote(ctx, roomID, a, a, a, voterID, models.RoleListener)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Voting is only open while the room is active.
	require.NoError(t, f.rooms.UpdateRoomStatus(ctx, otherRoom.ID.String(), f.artist.ID.String(), models.RoleArtist, models.RoomStatusArchived))
	err = f.comparisons.RecordVote(ctx, otherRoom.ID.String(), otherSongs[0].ID.String(), otherSongs[1].ID.String(), otherSongs[0].ID.String(), voterID, models.RoleListener)
	assert.Error(t, err)
}

func TestNextPairService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rm, songs := f.activeRoom(t)
	voter := testutil.NewUser(t, f.db, "reviewer", models.RoleListener)

	roomID := rm.ID.String()
	voterID := voter.ID.String()

	pair, err := f.comparisons.NextPair(ctx, roomID, voterID, models.RoleListener)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, songs[0].ID, pair.SongA.ID)
	assert.Equal(t, songs[1].ID, pair.SongB.ID)

	// Voting on the only pair exhausts the room; the same pair comes back.
	require.NoError(t, f.comparisons.RecordVote(ctx, roomID, songs[0].ID.String(), songs[1].ID.String(), songs[0].ID.String(), voterID, models.RoleListener))
	pair, err = f.comparisons.NextPair(ctx, roomID, voterID, models.RoleListener)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, songs[0].ID, pair.SongA.ID)
	assert.Equal(t, songs[1].ID, pair.SongB.ID)
}

// Walks the whole reviewer flow: draft room, two songs, activation, the
// song ceiling, pairing and win rates.
func TestReviewFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artistID := f.artist.ID.String()

	rm, err := f.rooms.CreateRoom(ctx, artistID, models.RoleArtist, "Which take?", "", "")
	require.NoError(t, err)
	require.Equal(t, models.RoomStatusDraft, rm.Status)
	roomID := rm.ID.String()

	// Activation with no songs is rejected.
	err = f.rooms.UpdateRoomStatus(ctx, roomID, artistID, models.RoleArtist, models.RoomStatusActive)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	take1, err := f.songs.AddSong(ctx, roomID, artistID, models.RoleArtist, song.AddSongInput{Title: "Take 1", URL: "https://cdn.example.com/t1"})
	require.NoError(t, err)
	take2, err := f.songs.AddSong(ctx, roomID, artistID, models.RoleArtist, song.AddSongInput{Title: "Take 2", URL: "https://cdn.example.com/t2"})
	require.NoError(t, err)

	require.NoError(t, f.rooms.UpdateRoomStatus(ctx, roomID, artistID, models.RoleArtist, models.RoomStatusActive))

	// The two-song ceiling holds once active, even for the owner's admin.
	_, err = f.songs.AddSong(ctx, roomID, artistID, models.RoleAdmin, song.AddSongInput{Title: "Take 3", URL: "https://cdn.example.com/t3"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	voter := testutil.NewUser(t, f.db, "reviewer", models.RoleListener)
	voterID := voter.ID.String()

	pair, err := f.comparisons.NextPair(ctx, roomID, voterID, models.RoleListener)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, take1.ID, pair.SongA.ID)
	assert.Equal(t, take2.ID, pair.SongB.ID)

	require.NoError(t, f.comparisons.RecordVote(ctx, roomID, take1.ID.String(), take2.ID.String(), take1.ID.String(), voterID, models.RoleListener))

	stats, err := f.comparisons.WinRate(ctx, roomID, take1.ID.String(), voterID, models.RoleListener)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Wins: 1, Losses: 0, WinRate: 100}, stats)

	stats, err = f.comparisons.WinRate(ctx, roomID, take2.ID.String(), voterID, models.RoleListener)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Wins: 0, Losses: 1, WinRate: 0}, stats)
}
