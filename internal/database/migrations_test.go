package database

import (
	"path/filepath"
	"testing"

	"github.com/loomin-app/backend/internal/notifications"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsReadFlag(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	// Stage the pre-read-flag schema: the column exists but is nullable, as
	// written by releases that predate the constraint.
	if err := database.Exec(`CREATE TABLE notifications (
		id text PRIMARY KEY,
		sender_id text,
		receiver_id text,
		type text,
		post_id text,
		read numeric,
		created_at datetime
	)`).Error; err != nil {
		testContext.Fatalf("failed to create legacy table: %v", err)
	}
	if err := database.Exec(
		"INSERT INTO notifications (id, sender_id, receiver_id, type, read) VALUES (?, ?, ?, ?, NULL)",
		"notif-1", "user-1", "user-2", string(notifications.TypeLike),
	).Error; err != nil {
		testContext.Fatalf("failed to insert legacy notification: %v", err)
	}
	if err := database.AutoMigrate(&migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var readFlag bool
	if err := database.Raw("SELECT read FROM notifications WHERE id = ?", "notif-1").Scan(&readFlag).Error; err != nil {
		testContext.Fatalf("failed to reload notification: %v", err)
	}
	if readFlag {
		testContext.Fatalf("expected read flag backfilled to false")
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillNotificationReadFlag).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenSQLiteRequiresPath(testContext *testing.T) {
	if _, err := OpenSQLite("", zap.NewNop()); err == nil {
		testContext.Fatalf("expected error for empty database path")
	}
}
