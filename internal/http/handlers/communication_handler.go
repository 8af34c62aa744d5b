// Communication log HTTP handlers.
//
// This file exposes REST endpoints for a company's communication history:
//   - POST /companies/{id}/communications   (record a completed outreach)
//   - GET  /companies/{id}/communications   (list, paginated, newest first)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, company, key), the handler returns that recorded
// entry with 200 and sets `Idempotency-Replayed: true`.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-followup-backend/internal/domain"
	"github.com/tbourn/go-followup-backend/internal/http/middleware"
	"github.com/tbourn/go-followup-backend/internal/services"
)

// PostCommunicationRequest is the JSON payload for recording a communication.
type PostCommunicationRequest struct {
	MethodID string  `json:"method_id" binding:"required" example:"0b6f1c1e-9d0a-4f3c-9a55-3f1d2c4b5a6e"`
	Notes    *string `json:"notes" binding:"omitempty,max=4000" example:"Sent the Q3 deck"`
}

// ListCommunicationsResponse contains a page of log entries and pagination metadata.
type ListCommunicationsResponse struct {
	Communications []domain.CommunicationLog `json:"communications"`
	Pagination     Pagination                `json:"pagination"`
}

// PostCommunication godoc
// @ID          postCommunication
// @Summary     Record a communication
// @Description Logs a completed outreach against the company, performed by the caller.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Communications
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       id               path    string  true  "Company ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostCommunicationRequest  true  "Log entry"
//
// @Success     201  {object}  handlers.Response{data=domain.CommunicationLog}  "Recorded"
// @Success     200  {object}  handlers.Response{data=domain.CommunicationLog}  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Company or method not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /companies/{id}/communications [post]
func (h *Handlers) PostCommunication(c *gin.Context) {
	var req PostCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "method_id required")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	l, replayed, err := h.commSvc.Record(c.Request.Context(), services.RecordInput{
		UserID:         userID(c),
		CompanyID:      c.Param("id"),
		MethodID:       req.MethodID,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	if replayed {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, l, "communication already recorded")
		return
	}
	ok(c, http.StatusCreated, l, "communication recorded")
}

// ListCommunications godoc
// @ID          listCommunications
// @Summary     List a company's communications
// @Tags        Communications
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true  "Company ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"        minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"     minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.Response{data=handlers.ListCommunicationsResponse}
// @Failure     404  {object} handlers.ErrorResponse "Company not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /companies/{id}/communications [get]
func (h *Handlers) ListCommunications(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.commSvc.ListPage(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.CommunicationLog{}
	}
	ok(c, http.StatusOK, ListCommunicationsResponse{
		Communications: items,
		Pagination:     newPagination(page, pageSize, total),
	}, "communications retrieved")
}
