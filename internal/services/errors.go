// Package services defines the business logic for ticket intake,
// classification, statistics, and dataset import. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Ticket-related errors.
var (
	// ErrTicketNotFound indicates that the requested ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrEmptyBody is returned when a ticket creation request carries no
	// usable text at all.
	ErrEmptyBody = errors.New("request text is empty")

	// ErrBodyTooShort is returned when the ticket body has fewer than the
	// required number of meaningful characters.
	ErrBodyTooShort = errors.New("request text too short")

	// ErrBodyTooLong is returned when the ticket text exceeds the maximum
	// configured length limit.
	ErrBodyTooLong = errors.New("request text too long")

	// ErrInvalidCategory is returned when a list filter names a category
	// outside the supported set.
	ErrInvalidCategory = errors.New("invalid category")
)

// Import-related errors.
var (
	// ErrUnsupportedLanguage indicates that a dataset record's language does
	// not match the configured import filter.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)
