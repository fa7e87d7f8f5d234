// Package repository implements the persistent membership and message
// stores on gorm. Every mutation touching more than one row runs inside
// db.Transaction so partial application cannot be observed.
package repository

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Julfy0228/WebMessenger/internal/apperr"
	"github.com/Julfy0228/WebMessenger/internal/models"
)

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Chat{},
		&models.Participant{},
		&models.Message{},
		&models.AttachmentRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// translate maps store-level errors to the shared taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrConflict
	default:
		return err
	}
}
