package db

import (
	"fmt"
	"time"

	"dealhub/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the users, deals and deal_images tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Deal{}, &models.DealImage{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return backfillTitleKeys(db)
}

// backfillTitleKeys fills title_key for rows written before the column existed.
func backfillTitleKeys(db *gorm.DB) error {
	var deals []models.Deal
	res := db.Select("id", "title").
		Where("title_key IS NULL OR title_key = ''").
		Where("title <> ''").
		FindInBatches(&deals, 200, func(tx *gorm.DB, _ int) error {
			for _, d := range deals {
				err := tx.Model(&models.Deal{}).Where("id = ?", d.ID).
					Update("title_key", models.FoldTitle(d.Title)).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
	if res.Error != nil {
		return fmt.Errorf("failed to backfill deal title keys: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logrus.WithField("deals", res.RowsAffected).Info("Backfilled deal title keys")
	}
	return nil
}
