package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/jwt"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
	redisstore "github.com/rooms-songpig/songpig-rooms-sub000/pkg/redis"
)

const defaultTokenTTL = 24 * time.Hour

type Service struct {
	db       *database.DB
	sessions *redisstore.SessionStore
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewService builds the auth service. sessions may be nil, in which case
// tokens are stateless (used by tests).
func NewService(db *database.DB, sessions *redisstore.SessionStore, secret []byte, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		sessions: sessions,
		secret:   secret,
		tokenTTL: defaultTokenTTL,
		logger:   logger,
	}
}

// Register creates an account. Only artist and listener roles can be
// self-registered; admins come from seeding.
func (s *Service) Register(ctx context.Context, username, password, displayName, bio, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 64 {
		return nil, fmt.Errorf("%w: username must be 3-64 characters", apperr.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", apperr.ErrValidation)
	}
	if role == "" {
		role = models.RoleArtist
	}
	if role != models.RoleArtist && role != models.RoleListener {
		return nil, fmt.Errorf("%w: invalid role %q", apperr.ErrValidation, role)
	}

	if _, err := s.db.GetUserByUsername(username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", apperr.ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Bio:          bio,
		Role:         role,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.CreateUser(user); err != nil {
		// The unique index is the authority; the pre-check above only
		// narrows the race window.
		if strings.Contains(err.Error(), "Duplicate") || strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: username already taken", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", role))
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.db.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("%w: invalid credentials", apperr.ErrForbidden)
		}
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user.Status != models.UserStatusActive {
		return "", nil, fmt.Errorf("%w: account is %s", apperr.ErrForbidden, user.Status)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", apperr.ErrForbidden)
	}

	token, err := jwt.GenerateToken(s.secret, user.ID.String(), user.Role, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if s.sessions != nil {
		session := &redisstore.Session{
			Token:     token,
			Role:      user.Role,
			ExpiresAt: time.Now().Add(s.tokenTTL),
		}
		if err := s.sessions.StoreSession(ctx, user.ID.String(), session); err != nil {
			return "", nil, fmt.Errorf("failed to store session: %w", err)
		}
	}

	return token, user, nil
}

// Logout revokes the user's session.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.DeleteSession(ctx, userID)
}

// GetUser loads an account by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
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

// SetUserStatus lets an admin disable, delete or reactivate an account.
// Disabling revokes the session immediately.
func (s *Service) SetUserStatus(ctx context.Context, requesterRole, userID, status string) error {
	if requesterRole != models.RoleAdmin {
		return fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
	}
	switch status {
	case models.UserStatusActive, models.UserStatusDisabled, models.UserStatusDeleted:
	default:
		return fmt.Errorf("%w: invalid user status %q", apperr.ErrValidation, status)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	user.Status = status
	user.UpdatedAt = time.Now()
	if err := s.db.UpdateUser(user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if status != models.UserStatusActive && s.sessions != nil {
		if err := s.sessions.DeleteSession(ctx, userID); err != nil {
			s.logger.Warn("failed to revoke session", zap.String("user_id", userID), zap.Error(err))
		}
	}

	return nil
}
