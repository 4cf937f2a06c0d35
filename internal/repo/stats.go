// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries used for conditional
// responses (ETag generation) in the HTTP layer and for the statistics
// service. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/domain"
)

// TicketsStats returns aggregate metadata for the tickets table: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// It executes two lightweight queries. When there are no tickets, the
// returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total tickets
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func TicketsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Ticket{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ListTicketsCreatedSince returns all tickets created at or after since, with
// classifications preloaded, ordered by creation time ascending. The stats
// service aggregates over this slice in memory; ticket volumes within a
// bounded window keep that cheap.
func ListTicketsCreatedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := db.WithContext(ctx).
		Preload("Classification").
		Where("created_at >= ?", since).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
