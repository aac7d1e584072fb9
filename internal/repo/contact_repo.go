// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Contact model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Field validation (non-empty name,
// well-formed e-mail) is the caller's responsibility; values arrive here
// already normalized.
//
// Error semantics:
//   - Updates and deletes that match zero rows succeed silently; the contact
//     manager deliberately treats edits and deletes of a vanished id as
//     no-ops rather than errors.
//   - On DB errors (constraint violations, missing table, connectivity),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-contacts-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateContact inserts a new contact row with favorite=0 and CreatedAt set
// to the current instant (Unix milliseconds). Phone and email may be nil.
//
// On success, it returns the persisted Contact including the id SQLite
// assigned. On failure, it returns a DB error.
func CreateContact(ctx context.Context, db *gorm.DB, name string, phone, email *string) (*domain.Contact, error) {
	now := time.Now().UnixMilli()
	c := &domain.Contact{
		Name:      name,
		Phone:     phone,
		Email:     email,
		Favorite:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListContacts returns all contacts ordered by creation time descending
// (most recent first), with id descending as a deterministic tiebreak for
// rows created within the same millisecond. It returns an empty slice when
// the table is empty. On DB error, it returns the error.
func ListContacts(ctx context.Context, db *gorm.DB) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// GetContact fetches a single contact by id, or ErrNotFound if missing.
func GetContact(ctx context.Context, db *gorm.DB, id int64) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateContact overwrites name, phone, and email of the contact identified
// by id and bumps UpdatedAt. Favorite and CreatedAt are never touched here.
// When id matches no row the update affects zero rows and the call still
// succeeds.
func UpdateContact(ctx context.Context, db *gorm.DB, id int64, name string, phone, email *string) error {
	return db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"name":       name,
			"phone":      phone,
			"email":      email,
			"updated_at": time.Now().UnixMilli(),
		}).Error
}

// SetFavorite overwrites the favorite column for the contact identified by id
// and bumps UpdatedAt. The value is expected to be 0 or 1 (enforced upstream
// and by the DB check constraint). A missing id is a silent no-op.
func SetFavorite(ctx context.Context, db *gorm.DB, id int64, value int) error {
	return db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"favorite":   value,
			"updated_at": time.Now().UnixMilli(),
		}).Error
}

// DeleteContact removes the contact row identified by id. Deleting a
// non-existent id affects zero rows and succeeds.
func DeleteContact(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).
		Delete(&domain.Contact{}, "id = ?", id).Error
}

// CountContacts returns the total number of stored contacts.
// A raw COUNT is used so a missing table surfaces as an error.
func CountContacts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM contacts").Scan(&total).Error
	return total, err
}
