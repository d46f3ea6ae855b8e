package database

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nftmetrics/floor-tracker/internal/models"
)

// Open connects to the sqlite database at dbPath and migrates the schema.
// The returned handle is passed explicitly to every component that needs it.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")

	err = db.AutoMigrate(
		&models.Collection{},
		&models.PriceRecord{},
		&models.SelectionPeriod{},
		&models.SyncLog{},
	)
	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")
	return db, nil
}
