package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// Session is the server-side record backing a login token. Deleting it
// revokes the token before its JWT expiry.
type Session struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// StoreSession stores the user's session, expiring it alongside the token.
func (s *SessionStore) StoreSession(ctx context.Context, userID string, session *Session) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionKeyPrefix + userID
	ttl := time.Until(session.ExpiresAt)
	if err := s.client.Set(ctx, key, sessionJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

// GetSession retrieves the user's session from Redis.
func (s *SessionStore) GetSession(ctx context.Context, userID string) (*Session, error) {
	key := sessionKeyPrefix + userID
	sessionJSON, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(sessionJSON, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// DeleteSession revokes the user's session.
func (s *SessionStore) DeleteSession(ctx context.Context, userID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+userID).Err()
}
