// Package testutil provides shared fixtures for service tests: an
// isolated sqlite-backed store per test and account factories.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/database"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
)

// NewDB opens a fresh sqlite database in the test's temp dir and runs the
// migrations against it.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	db, err := database.New(gdb)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// NewUser inserts an account with the given role and returns it.
func NewUser(t *testing.T, db *database.DB, username, role string) *models.User {
	t.Helper()

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: "x",
		DisplayName:  username,
		Role:         role,
		Status:       models.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.CreateUser(user); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

// Logger returns a no-op logger for wiring services under test.
func Logger() *zap.Logger {
	return zap.NewNop()
}
