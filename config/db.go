package config

import (
	"fmt"

	"github.com/bellapacxx/bingo-coach/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// SetupDatabase connects to postgres and runs migrations.
func SetupDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to DB: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the services use.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.GameAction{},
		&models.RoomStat{},
		&models.Transaction{},
		&models.Decision{},
	); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
