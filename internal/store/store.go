// Package store persists board items, the like ledger and the latest
// aggregate on top of gorm. Every mutation runs in its own transaction.
package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sujalbistaa/retroboard/internal/models"
)

// Store is the Item Store and Like Ledger.
type Store struct {
	db    *gorm.DB
	locks *keyLocks
	now   func() time.Time
}

// New wraps an open gorm connection. Migrate must have been run.
func New(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		locks: newKeyLocks(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates the board tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Item{}, &models.Like{}, &AggregateRecord{}); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
