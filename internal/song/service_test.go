package song

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/room"
	"github.com/rooms-songpig/songpig-rooms-sub000/internal/testutil"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

type fixture struct {
	db     *database.DB
	rooms  *room.Service
	songs  *Service
	artist *models.User
	room   *models.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.Logger()
	rooms := room.NewService(db, nil, nil, log, room.RetryConfig{Attempts: 1, BaseDelay: time.Millisecond})
	songs := NewService(db, rooms, nil, nil, log)

	artist := testutil.NewUser(t, db, "frank", models.RoleArtist)
	rm, err := rooms.CreateRoom(context.Background(), artist.ID.String(), models.RoleArtist, "Shootout", "", "")
	require.NoError(t, err)

	return &fixture{db: db, rooms: rooms, songs: songs, artist: artist, room: rm}
}

func (f *fixture) addSong(t *testing.T, title string) *models.Song {
	t.Helper()
	song, err := f.songs.AddSong(context.Background(), f.room.ID.String(), f.artist.ID.String(), models.RoleArtist, AddSongInput{
		Title: title,
		URL:   "https://cdn.example.com/" + title,
	})
	require.NoError(t, err)
	return song
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, f.rooms.UpdateRoomStatus(context.Background(), f.room.ID.String(), f.artist.ID.String(), models.RoleArtist, models.RoomStatusActive))
}

func TestAddSongDefaultsAndSnapshot(t *testing.T) {
	f := newFixture(t)

	song := f.addSong(t, "Take 1")
	assert.Equal(t, models.SourceDirect, song.SourceType)
	assert.Equal(t, models.StorageExternal, song.StorageType)
	assert.Equal(t, f.artist.ID, song.UploaderID)
	assert.Equal(t, "frank", song.UploaderName)
}

func TestAddSongValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()
	artistID := f.artist.ID.String()

	_, err := f.songs.AddSong(ctx, roomID, artistID, models.RoleArtist, AddSongInput{Title: " ", URL: "https://x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.songs.AddSong(ctx, roomID, artistID, models.RoleArtist, AddSongInput{Title: "t", URL: "https://x", SourceType: "cassette"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.songs.AddSong(ctx, roomID, artistID, models.RoleArtist, AddSongInput{Title: "t", URL: "https://x", StorageType: "s3"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// Hosted files need their storage key.
	_, err = f.songs.AddSong(ctx, roomID, artistID, models.RoleArtist, AddSongInput{Title: "t", URL: "https://x", StorageType: models.StorageCloudflare})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSongCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()

	f.addSong(t, "Take 1")
	f.addSong(t, "Take 2")

	// Third song rejected while draft...
	_, err := f.songs.AddSong(ctx, roomID, f.artist.ID.String(), models.RoleArtist, AddSongInput{Title: "Take 3", URL: "https://x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// ...and still rejected once active, even for an admin.
	f.activate(t)
	admin := testutil.NewUser(t, f.db, "root", models.RoleAdmin)
	_, err = f.songs.AddSong(ctx, roomID, admin.ID.String(), models.RoleAdmin, AddSongInput{Title: "Take 3", URL: "https://x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAddSongPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()

	rival := testutil.NewUser(t, f.db, "rival", models.RoleArtist)
	_, err := f.songs.AddSong(ctx, roomID, rival.ID.String(), models.RoleArtist, AddSongInput{Title: "t", URL: "https://x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	f.addSong(t, "Take 1")
	f.addSong(t, "Take 2")
	f.activate(t)

	// The owner cannot add once the room left draft; only admins can,
	// and the ceiling stops everyone here anyway.
	_, err = f.songs.AddSong(ctx, roomID, f.artist.ID.String(), models.RoleArtist, AddSongInput{Title: "t", URL: "https://x"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestRemoveSongDraftOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()
	artistID := f.artist.ID.String()

	take1 := f.addSong(t, "Take 1")
	require.NoError(t, f.songs.RemoveSong(ctx, roomID, take1.ID.String(), artistID, models.RoleArtist))

	count, err := f.db.CountSongsByRoom(f.room.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	f.addSong(t, "Take 1")
	take2 := f.addSong(t, "Take 2")
	f.activate(t)

	err = f.songs.RemoveSong(ctx, roomID, take2.ID.String(), artistID, models.RoleArtist)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.rooms.UpdateRoomStatus(ctx, roomID, artistID, models.RoleArtist, models.RoomStatusArchived))
	err = f.songs.RemoveSong(ctx, roomID, take2.ID.String(), artistID, models.RoleArtist)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRemoveSongChecksMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.songs.RemoveSong(ctx, f.room.ID.String(), uuid.NewString(), f.artist.ID.String(), models.RoleArtist)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCommentsRequireActiveRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()
	artistID := f.artist.ID.String()

	take1 := f.addSong(t, "Take 1")
	f.addSong(t, "Take 2")

	_, err := f.songs.AddComment(ctx, roomID, take1.ID.String(), artistID, models.RoleArtist, "too quiet", false, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	f.activate(t)
	comment, err := f.songs.AddComment(ctx, roomID, take1.ID.String(), artistID, models.RoleArtist, "too quiet", false, "")
	require.NoError(t, err)
	assert.Equal(t, "frank", comment.AuthorName)
}

func TestAnonymousCommentKeepsAuthorID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()

	take1 := f.addSong(t, "Take 1")
	f.addSong(t, "Take 2")
	f.activate(t)

	reviewer := testutil.NewUser(t, f.db, "shy", models.RoleListener)
	comment, err := f.songs.AddComment(ctx, roomID, take1.ID.String(), reviewer.ID.String(), models.RoleListener, "hot take", true, "")
	require.NoError(t, err)

	assert.Equal(t, "Anonymous", comment.AuthorName)
	assert.Equal(t, reviewer.ID, comment.AuthorID)

	// The assembled room view blanks the author id for other readers but
	// keeps it for the room owner.
	detail, err := f.rooms.GetRoomDetail(ctx, roomID, "", "")
	require.NoError(t, err)
	require.Len(t, detail.Songs, 2)
	require.Len(t, detail.Songs[0].Comments, 1)
	assert.Equal(t, uuid.Nil, detail.Songs[0].Comments[0].AuthorID)

	detail, err = f.rooms.GetRoomDetail(ctx, roomID, f.artist.ID.String(), models.RoleArtist)
	require.NoError(t, err)
	assert.Equal(t, reviewer.ID, detail.Songs[0].Comments[0].AuthorID)
}

func TestCommentReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()
	artistID := f.artist.ID.String()

	take1 := f.addSong(t, "Take 1")
	take2 := f.addSong(t, "Take 2")
	f.activate(t)

	parent, err := f.songs.AddComment(ctx, roomID, take1.ID.String(), artistID, models.RoleArtist, "verse drags", false, "")
	require.NoError(t, err)

	reply, err := f.songs.AddComment(ctx, roomID, take1.ID.String(), artistID, models.RoleArtist, "agreed", false, parent.ID.String())
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	// A reply must hang off a comment on the same song.
	_, err = f.songs.AddComment(ctx, roomID, take2.ID.String(), artistID, models.RoleArtist, "wrong thread", false, parent.ID.String())
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestHiddenCommentsFilteredFromDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	roomID := f.room.ID.String()
	artistID := f.artist.ID.String()

	take1 := f.addSong(t, "Take 1")
	f.addSong(t, "Take 2")
	f.activate(t)

	comment, err := f.songs.AddComment(ctx, roomID, take1.ID.String(), artistID, models.RoleArtist, "spam", false, "")
	require.NoError(t, err)
	require.NoError(t, f.songs.SetCommentHidden(ctx, roomID, comment.ID.String(), artistID, models.RoleArtist, true))

	guest, err := f.rooms.GetRoomDetail(ctx, roomID, "", "")
	require.NoError(t, err)
	assert.Empty(t, guest.Songs[0].Comments)

	owner, err := f.rooms.GetRoomDetail(ctx, roomID, artistID, models.RoleArtist)
	require.NoError(t, err)
	assert.Len(t, owner.Songs[0].Comments, 1)
}
