package database

import (
	"errors"
	"time"

	"github.com/loomin-app/backend/internal/notifications"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillNotificationReadFlag = "2026-06-18_backfill_notification_read_flag"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillNotificationReadFlag, apply: backfillNotificationReadFlag},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before the read flag existed carry NULL there.
func backfillNotificationReadFlag(db *gorm.DB) error {
	return db.Model(&notifications.Notification{}).
		Where("read IS NULL").
		Update("read", false).Error
}
