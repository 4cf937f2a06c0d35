// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Classification and TicketTag models.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-support-backend/internal/domain"
)

// CreateClassification inserts the classification verdict for a ticket.
// CreatedAt is set to UTC. The unique index on ticket_id rejects a second
// classification for the same ticket; that violation surfaces as
// ErrDuplicate. On other DB errors, the raw error is returned.
func CreateClassification(ctx context.Context, db *gorm.DB, c *domain.Classification) error {
	c.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateTicketTags inserts the ordered tag rows for a ticket. A nil or empty
// slice is a no-op.
func CreateTicketTags(ctx context.Context, db *gorm.DB, tags []domain.TicketTag) error {
	if len(tags) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range tags {
		tags[i].CreatedAt = now
	}
	return db.WithContext(ctx).Create(&tags).Error
}
