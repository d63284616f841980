package room

import (
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

// Visible decides whether a requester may see a room at all. Invisible
// rooms surface as not-found, never as forbidden, so their existence does
// not leak. requesterID is empty for guests.
func Visible(room *models.Room, requesterID, role string) bool {
	if role == models.RoleAdmin {
		return true
	}
	if requesterID != "" && room.ArtistID.String() == requesterID {
		return true
	}

	switch room.Status {
	case models.RoomStatusActive:
		return true
	case models.RoomStatusArchived:
		return requesterID != "" && room.InvitedArtistIDs.Contains(requesterID)
	default:
		// Drafts belong to their owner; deleted rooms exist only for admins.
		return false
	}
}

// CanManage reports whether the requester may mutate the room's status,
// metadata or song membership.
func CanManage(room *models.Room, requesterID, role string) bool {
	if role == models.RoleAdmin {
		return true
	}
	return requesterID != "" && room.ArtistID.String() == requesterID
}
