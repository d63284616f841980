package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

const (
	roomKeyPrefix = "room:"
	roomCacheTTL  = 24 * time.Hour
)

// RoomCache keeps recently read rooms in Redis so hot rooms skip the
// database on reads. Misses and marshal failures are never fatal.
type RoomCache struct {
	client *redis.Client
}

func NewRoomCache(client *redis.Client) *RoomCache {
	return &RoomCache{client: client}
}

// Get returns the cached room, or nil on a miss.
func (c *RoomCache) Get(ctx context.Context, roomID string) (*models.Room, error) {
	key := roomKeyPrefix + roomID
	roomJSON, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached room: %w", err)
	}

	var room models.Room
	if err := json.Unmarshal(roomJSON, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached room: %w", err)
	}
	return &room, nil
}

func (c *RoomCache) Set(ctx context.Context, room *models.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	key := roomKeyPrefix + room.ID.String()
	if err := c.client.Set(ctx, key, roomJSON, roomCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache room: %w", err)
	}
	return nil
}

func (c *RoomCache) Invalidate(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, roomKeyPrefix+roomID).Err()
}
