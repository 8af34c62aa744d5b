// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package), and the translation of service
// errors into status/code pairs. These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., schedule_failed, create_failed) are reserved for
//     failures that cannot be conveyed by status alone.
//
// Example response:
//
//	{
//	  "success": false,
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "sequence already in use"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-followup-backend/internal/followup"
	"github.com/tbourn/go-followup-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "service_unavailable"

	// Domain-specific:
	ErrCodeValidation       = "validation_failed"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeUpdateFailed     = "update_failed"
	ErrCodeDeleteFailed     = "delete_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeScheduleFailed   = "schedule_failed"
	ErrCodeNoMethods        = "no_communication_methods"
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeWebhookFailed    = "webhook_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failService maps a service error to an HTTP response. Unrecognized errors
// become a 500 with fallbackCode.
func failService(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrCompanyNotFound),
		errors.Is(err, services.ErrMethodNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case errors.Is(err, services.ErrCompanyNameRequired),
		errors.Is(err, services.ErrCompanyEmailRequired),
		errors.Is(err, services.ErrInvalidPeriodicity),
		errors.Is(err, services.ErrEmptyQuery),
		errors.Is(err, services.ErrMethodNameRequired),
		errors.Is(err, services.ErrInvalidSequence),
		errors.Is(err, services.ErrInvalidDirection),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrUserEmailRequired):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())

	case errors.Is(err, services.ErrSequenceTaken),
		errors.Is(err, services.ErrCannotMove):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, services.ErrMissingPerformer):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())

	case errors.Is(err, followup.ErrNoCommunicationMethods):
		fail(c, http.StatusInternalServerError, ErrCodeNoMethods, err.Error())

	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}
