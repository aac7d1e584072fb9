// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver): opening the handle, schema migration, and
// first-run sample data seeding.
package repo

import (
	"context"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/tbourn/go-contacts-backend/internal/domain"
)

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate ensures the contacts and idempotency tables exist.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Contact{},
		&domain.Idempotency{},
	)
}

// SeedContacts inserts three sample contacts when (and only when) the
// contacts table is empty. The check-then-insert pair makes the function
// idempotent: calling it any number of times after the first successful run
// inserts nothing and returns nil. Two of the samples carry timestamps one
// and two hours in the past so the default descending order is visible out
// of the box; the third has no e-mail address.
func SeedContacts(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Contact{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	samples := []domain.Contact{
		{
			Name:      "Nguyễn Văn A",
			Phone:     strptr("0901234567"),
			Email:     strptr("nguyenvana@email.com"),
			Favorite:  1,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			Name:      "Trần Thị B",
			Phone:     strptr("0912345678"),
			Email:     strptr("tranthib@email.com"),
			Favorite:  0,
			CreatedAt: now - time.Hour.Milliseconds(),
			UpdatedAt: now - time.Hour.Milliseconds(),
		},
		{
			Name:      "Lê Văn C",
			Phone:     strptr("0923456789"),
			Email:     nil,
			Favorite:  1,
			CreatedAt: now - 2*time.Hour.Milliseconds(),
			UpdatedAt: now - 2*time.Hour.Milliseconds(),
		},
	}
	return db.WithContext(ctx).Create(&samples).Error
}

// strptr returns a pointer to s. Seed rows only.
func strptr(s string) *string { return &s }
