package comparison

import (
	"github.com/google/uuid"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

// Pair is the two songs a reviewer should listen to next.
type Pair struct {
	SongA models.Song `json:"song_a"`
	SongB models.Song `json:"song_b"`
}

// NextPair picks the next unseen song pair for one reviewer. songs must be
// in creation order; voted is the reviewer's comparison history in this
// room. It walks all unordered pairs (i,j) with i<j and returns the first
// one the reviewer has not voted on, in either order. Asking twice without
// voting in between returns the same pair.
//
// Once every pair has been voted on it falls back to the first pair by
// creation order rather than reporting completion, so a reviewer always
// has something to compare. With fewer than two songs there is no pair;
// that is a normal terminal state, not an error.
//
// Pure function of its inputs.
func NextPair(songs []models.Song, voted []models.Comparison) (Pair, bool) {
	if len(songs) < 2 {
		return Pair{}, false
	}

	seen := make(map[string]struct{}, len(voted))
	for _, v := range voted {
		seen[models.PairKey(v.SongAID, v.SongBID)] = struct{}{}
	}

	for i := 0; i < len(songs); i++ {
		for j := i + 1; j < len(songs); j++ {
			if _, ok := seen[models.PairKey(songs[i].ID, songs[j].ID)]; !ok {
				return Pair{SongA: songs[i], SongB: songs[j]}, true
			}
		}
	}

	return Pair{SongA: songs[0], SongB: songs[1]}, true
}

// Stats is a song's aggregated comparison record.
type Stats struct {
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
}

// Tally computes win/loss/win-rate for one song from the comparisons it
// appears in. Zero comparisons yields all zeroes, not a division by zero.
func Tally(comparisons []models.Comparison, songID uuid.UUID) Stats {
	var stats Stats
	for _, c := range comparisons {
		if c.SongAID != songID && c.SongBID != songID {
			continue
		}
		if c.WinnerID == songID {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}

	total := stats.Wins + stats.Losses
	if total > 0 {
		stats.WinRate = float64(stats.Wins) / float64(total) * 100
	}
	return stats
}
