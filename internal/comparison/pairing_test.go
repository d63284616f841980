package comparison

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

func makeSongs(n int) []models.Song {
	base := time.Now()
	songs := make([]models.Song, n)
	for i := range songs {
		songs[i] = models.Song{
			ID:        uuid.New(),
			Title:     string(rune('A' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
	}
	return songs
}

func votedOn(voter uuid.UUID, a, b models.Song) models.Comparison {
	return models.Comparison{
		ID:      uuid.New(),
		VoterID: voter,
		PairKey: models.PairKey(a.ID, b.ID),
		SongAID: a.ID,
		SongBID: b.ID,
	}
}

func TestNextPairWalksCreationOrder(t *testing.T) {
	songs := makeSongs(3)
	voter := uuid.New()

	pair, ok := NextPair(songs, nil)
	require.True(t, ok)
	assert.Equal(t, songs[0].ID, pair.SongA.ID)
	assert.Equal(t, songs[1].ID, pair.SongB.ID)

	// After voting on (A,B) and (A,C), the remaining pair is (B,C).
	voted := []models.Comparison{
		votedOn(voter, songs[0], songs[1]),
		votedOn(voter, songs[0], songs[2]),
	}
	pair, ok = NextPair(songs, voted)
	require.True(t, ok)
	assert.Equal(t, songs[1].ID, pair.SongA.ID)
	assert.Equal(t, songs[2].ID, pair.SongB.ID)
}

func TestNextPairIgnoresVoteOrientation(t *testing.T) {
	songs := makeSongs(2)
	voter := uuid.New()

	// The vote stored (B,A); the pair (A,B) still counts as seen.
	voted := []models.Comparison{votedOn(voter, songs[1], songs[0])}
	pair, ok := NextPair(songs, voted)
	require.True(t, ok)

	// Exhausted, so it falls back to the first pair.
	assert.Equal(t, songs[0].ID, pair.SongA.ID)
	assert.Equal(t, songs[1].ID, pair.SongB.ID)
}

func TestNextPairFallsBackOnExhaustion(t *testing.T) {
	songs := makeSongs(3)
	voter := uuid.New()

	voted := []models.Comparison{
		votedOn(voter, songs[0], songs[1]),
		votedOn(voter, songs[0], songs[2]),
		votedOn(voter, songs[1], songs[2]),
	}

	// Every pair voted on: the first pair comes back, never "none".
	pair, ok := NextPair(songs, voted)
	require.True(t, ok)
	assert.Equal(t, songs[0].ID, pair.SongA.ID)
	assert.Equal(t, songs[1].ID, pair.SongB.ID)
}

func TestNextPairIsDeterministic(t *testing.T) {
	songs := makeSongs(4)
	voter := uuid.New()
	voted := []models.Comparison{votedOn(voter, songs[0], songs[1])}

	first, ok := NextPair(songs, voted)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := NextPair(songs, voted)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestNextPairNeedsTwoSongs(t *testing.T) {
	_, ok := NextPair(nil, nil)
	assert.False(t, ok)

	_, ok = NextPair(makeSongs(1), nil)
	assert.False(t, ok)
}

func TestTally(t *testing.T) {
	songs := makeSongs(2)
	x, y := songs[0], songs[1]

	win := func(winner models.Song) models.Comparison {
		return models.Comparison{
			ID:       uuid.New(),
			VoterID:  uuid.New(),
			SongAID:  x.ID,
			SongBID:  y.ID,
			WinnerID: winner.ID,
		}
	}

	stats := Tally([]models.Comparison{win(x), win(x), win(y)}, x.ID)
	assert.Equal(t, 2, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.InDelta(t, 66.67, stats.WinRate, 0.01)

	// A song nobody compared has all zeroes, not a division by zero.
	stats = Tally(nil, x.ID)
	assert.Equal(t, Stats{}, stats)

	// Comparisons not involving the song are ignored.
	other := models.Comparison{ID: uuid.New(), SongAID: uuid.New(), SongBID: uuid.New(), WinnerID: uuid.New()}
	stats = Tally([]models.Comparison{other, win(y)}, x.ID)
	assert.Equal(t, 0, stats.Wins)
	assert.Equal(t, 1, stats.Losses)
	assert.Equal(t, float64(0), stats.WinRate)
}
