// Communication method HTTP handlers.
//
// This file exposes REST endpoints for the ordered list of communication methods:
//   - GET    /communication-methods           (list by sequence, ETag support)
//   - POST   /communication-methods           (create, admin)
//   - PUT    /communication-methods/{id}      (update, admin)
//   - DELETE /communication-methods/{id}      (delete and compact, admin)
//   - PUT    /communication-methods/{id}/move (swap with neighbour, admin)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-followup-backend/internal/services"
)

// CreateMethodRequest is the JSON payload for creating a method. A missing
// sequence appends the method at the end.
type CreateMethodRequest struct {
	Name        string `json:"name" binding:"required,max=128" example:"LinkedIn Post"`
	Description string `json:"description" example:"Comment on their latest post"`
	Sequence    *int   `json:"sequence" example:"1"`
	Mandatory   bool   `json:"mandatory" example:"true"`
}

// UpdateMethodRequest is the JSON payload for updating a method. Omitted
// fields are left unchanged.
type UpdateMethodRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=128"`
	Description *string `json:"description"`
	Sequence    *int    `json:"sequence"`
	Mandatory   *bool   `json:"mandatory"`
}

// MoveMethodRequest is the JSON payload for reordering a method.
type MoveMethodRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down UP DOWN" example:"up"`
}

// ListMethods godoc
// @ID          listMethods
// @Summary     List communication methods
// @Description Returns all methods ordered by sequence. Supports weak ETag via If-None-Match.
// @Tags        CommunicationMethods
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.Response{data=[]domain.CommunicationMethod}
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /communication-methods [get]
func (h *Handlers) ListMethods(c *gin.Context) {
	if checkETag(c, h.methodStats, "methods") {
		return
	}
	out, err := h.methodSvc.List(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, out, "communication methods retrieved")
}

// CreateMethod godoc
// @ID          createMethod
// @Summary     Create a communication method
// @Tags        CommunicationMethods
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateMethodRequest  true  "Method payload"
//
// @Success     201  {object} handlers.Response{data=domain.CommunicationMethod}
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     403  {object} handlers.ErrorResponse "Admin role required"
// @Failure     409  {object} handlers.ErrorResponse "Sequence already in use"
// @Router      /communication-methods [post]
func (h *Handlers) CreateMethod(c *gin.Context) {
	var req CreateMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
		return
	}
	m, err := h.methodSvc.Create(c.Request.Context(), services.MethodInput{
		Name:        req.Name,
		Description: req.Description,
		Sequence:    req.Sequence,
		Mandatory:   req.Mandatory,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, m, "communication method created")
}

// UpdateMethod godoc
// @ID          updateMethod
// @Summary     Update a communication method
// @Description Use the move endpoint to reorder; a sequence held by another method is rejected.
// @Tags        CommunicationMethods
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                        true  "Method ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateMethodRequest  true  "Fields to change"
//
// @Success     200  {object} handlers.Response{data=domain.CommunicationMethod}
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Method not found"
// @Failure     409  {object} handlers.ErrorResponse "Sequence already in use"
// @Router      /communication-methods/{id} [put]
func (h *Handlers) UpdateMethod(c *gin.Context) {
	var req UpdateMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, err := h.methodSvc.Update(c.Request.Context(), c.Param("id"), services.MethodPatch{
		Name:        req.Name,
		Description: req.Description,
		Sequence:    req.Sequence,
		Mandatory:   req.Mandatory,
	})
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, m, "communication method updated")
}

// DeleteMethod godoc
// @ID          deleteMethod
// @Summary     Delete a communication method
// @Description Later methods move up one position. Existing log entries are kept.
// @Tags        CommunicationMethods
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Method ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Method not found"
// @Router      /communication-methods/{id} [delete]
func (h *Handlers) DeleteMethod(c *gin.Context) {
	if err := h.methodSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}

// MoveMethod godoc
// @ID          moveMethod
// @Summary     Move a communication method up or down
// @Tags        CommunicationMethods
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                      true  "Method ID (UUID)"  format(uuid)
// @Param       body  body  handlers.MoveMethodRequest  true  "Direction"
//
// @Success     200  {object} handlers.Response{data=[]domain.CommunicationMethod}
// @Failure     400  {object} handlers.ErrorResponse "Invalid direction"
// @Failure     404  {object} handlers.ErrorResponse "Method not found"
// @Failure     409  {object} handlers.ErrorResponse "Already first or last"
// @Router      /communication-methods/{id}/move [put]
func (h *Handlers) MoveMethod(c *gin.Context) {
	var req MoveMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "direction must be up or down")
		return
	}
	out, err := h.methodSvc.Move(c.Request.Context(), c.Param("id"), req.Direction)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, out, "communication method moved")
}
