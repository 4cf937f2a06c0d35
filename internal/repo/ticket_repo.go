// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Ticket
// model and its associations.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a ticket is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateTicket(ctx, db, t) -> error
//     Inserts a new Ticket row (auto-increment ID, UTC timestamps).
//
//   - GetTicket(ctx, db, id) -> *domain.Ticket, error
//     Fetches a ticket with its classification and tags preloaded, or
//     ErrNotFound if missing.
//
//   - CountTickets(ctx, db, category) -> (int64, error)
//     Returns the number of tickets, optionally restricted to a
//     classification category.
//
//   - ListTicketsPage(ctx, db, category, offset, limit) -> []domain.Ticket, error
//     Returns a paginated slice of tickets ordered newest first. A non-empty
//     category restricts the result to classified tickets in that category.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.TicketService) which enforces business rules and drives
// classification.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateTicket inserts a new Ticket row. CreatedAt/UpdatedAt are set to UTC
// and the auto-increment ID is written back into t. On failure, it returns a
// DB error.
func CreateTicket(ctx context.Context, db *gorm.DB, t *domain.Ticket) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return db.WithContext(ctx).Create(t).Error
}

// GetTicket fetches a single ticket by its ID with the classification and
// tags preloaded. If the record does not exist, it returns ErrNotFound.
// On other DB errors, the raw error is returned.
func GetTicket(ctx context.Context, db *gorm.DB, id uint) (*domain.Ticket, error) {
	var t domain.Ticket
	err := db.WithContext(ctx).
		Preload("Classification").
		Preload("Tags", func(q *gorm.DB) *gorm.DB { return q.Order("tag_position asc") }).
		First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTickets returns the total number of tickets. When category is
// non-empty, it counts only tickets whose classification matches that
// category (unclassified tickets are excluded). On DB error, it returns the
// error.
func CountTickets(ctx context.Context, db *gorm.DB, category string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Ticket{})
	if category != "" {
		q = q.Joins("JOIN classifications ON classifications.ticket_id = tickets.id").
			Where("classifications.category = ?", category)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListTicketsPage returns a paginated slice of tickets ordered by creation
// time descending (most recent first), with classifications preloaded. When
// category is non-empty the result contains only classified tickets in that
// category. Use CountTickets to obtain the total for pagination metadata.
// On DB error, it returns the error.
//
// The caller is responsible for validating offset and limit.
func ListTicketsPage(ctx context.Context, db *gorm.DB, category string, offset, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	q := db.WithContext(ctx).Model(&domain.Ticket{}).Preload("Classification")
	if category != "" {
		q = q.Joins("JOIN classifications ON classifications.ticket_id = tickets.id").
			Where("classifications.category = ?", category)
	}
	err := q.
		Order("tickets.created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
