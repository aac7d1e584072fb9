// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-contacts-backend/internal/domain"
)

// ContactsStats returns aggregate metadata for the contact table: the total
// number of rows and the greatest UpdatedAt timestamp (Unix milliseconds)
// among them. Every write bumps updated_at (inserts set it to created_at),
// so the pair (count, max updated_at) changes whenever stored content
// changes, which makes it a cheap ETag source. Count alone covers deletes,
// where the maximum can move backwards.
//
// Return values:
//   - count:      total contacts
//   - maxUpdated: greatest updated_at, or 0 when the table is empty
//   - err:        database error, if any
func ContactsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdated int64, err error) {
	q := db.WithContext(ctx).Model(&domain.Contact{})

	if err = q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	var row struct {
		UpdatedAt int64
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.UpdatedAt, nil
}
