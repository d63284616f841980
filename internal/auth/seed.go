package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

// SeedAdmin creates the default admin account if it does not exist yet.
// Called once from main before the server starts; safe to call again.
func SeedAdmin(db *database.DB, username, password string, log *zap.Logger) error {
	if username == "" || password == "" {
		return fmt.Errorf("admin username and password must be configured")
	}

	_, err := db.GetUserByUsername(username)
	if err == nil {
		log.Info("admin account already present", zap.String("username", username))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check admin account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  "Administrator",
		Role:         models.RoleAdmin,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := db.CreateUser(admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Info("admin account seeded", zap.String("username", username))
	return nil
}
