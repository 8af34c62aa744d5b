// Package services defines the business logic for companies, communication
// methods, communication logs, follow-up schedules, users, and notifications.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Company-related errors.
var (
	// ErrCompanyNotFound indicates that the requested company does not exist
	// or has been deleted.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrCompanyNameRequired is returned when a company is created or renamed
	// with a blank name.
	ErrCompanyNameRequired = errors.New("company name is required")

	// ErrCompanyEmailRequired is returned when a company would end up without
	// any email address.
	ErrCompanyEmailRequired = errors.New("at least one email is required")

	// ErrInvalidPeriodicity is returned for a cadence outside
	// weekly|biweekly|monthly|quarterly|yearly.
	ErrInvalidPeriodicity = errors.New("invalid communication periodicity")

	// ErrEmptyQuery is returned when a search is issued without a query.
	ErrEmptyQuery = errors.New("search query is empty")
)

// Communication method errors.
var (
	ErrMethodNotFound     = errors.New("communication method not found")
	ErrMethodNameRequired = errors.New("communication method name is required")

	// ErrSequenceTaken is returned when an update would give a method the
	// sequence number of another method.
	ErrSequenceTaken = errors.New("sequence already in use")

	// ErrInvalidSequence is returned for a sequence < 1 or one that would
	// leave a gap after the last method.
	ErrInvalidSequence = errors.New("sequence must be >= 1")

	// ErrInvalidDirection is returned by Move for anything but "up" or "down".
	ErrInvalidDirection = errors.New("direction must be up or down")

	// ErrCannotMove is returned when moving the first method up or the last
	// method down.
	ErrCannotMove = errors.New("method cannot be moved further")
)

// User and notification errors.
var (
	ErrInvalidRole          = errors.New("role must be user or admin")
	ErrUserEmailRequired    = errors.New("user has no email address")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrMissingPerformer     = errors.New("performed_by is required")
)
