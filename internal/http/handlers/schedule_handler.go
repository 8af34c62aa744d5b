// Schedule and notification HTTP handlers.
//
// This file exposes the derived follow-up views and the user's notifications:
//   - GET   /companies/{id}/schedule      (one company)
//   - GET   /schedule/companies           (every company)
//   - GET   /schedule/notifications       (overdue and due-today partition)
//   - GET   /notifications                (caller's notifications)
//   - PATCH /notifications/{id}/read      (mark one as read)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCompanySchedule godoc
// @ID          getCompanySchedule
// @Summary     Follow-up schedule of a company
// @Description Returns the five most recent communications, overdue and due-today flags, and the next suggested communication.
// @Tags        Schedule
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Company ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.Response{data=services.CompanySchedule}
// @Failure     404  {object} handlers.ErrorResponse "Company not found"
// @Failure     500  {object} handlers.ErrorResponse "No communication methods configured"
// @Router      /companies/{id}/schedule [get]
func (h *Handlers) GetCompanySchedule(c *gin.Context) {
	sc, err := h.scheduleSvc.ForCompany(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeScheduleFailed)
		return
	}
	ok(c, http.StatusOK, sc, "schedule retrieved")
}

// ListSchedules godoc
// @ID          listSchedules
// @Summary     Follow-up schedule of every company
// @Tags        Schedule
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.Response{data=[]services.CompanySchedule}
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /schedule/companies [get]
func (h *Handlers) ListSchedules(c *gin.Context) {
	out, err := h.scheduleSvc.ForAll(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeScheduleFailed)
		return
	}
	ok(c, http.StatusOK, out, "schedules retrieved")
}

// GetFollowUps godoc
// @ID          getFollowUps
// @Summary     Companies needing follow-up
// @Description Partitions companies into overdue and due today.
// @Tags        Schedule
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.Response{data=services.FollowUps}
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /schedule/notifications [get]
func (h *Handlers) GetFollowUps(c *gin.Context) {
	out, err := h.scheduleSvc.FollowUps(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeScheduleFailed)
		return
	}
	ok(c, http.StatusOK, out, "follow-ups retrieved")
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List my notifications
// @Description Unread first, newest first.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object} handlers.Response{data=[]domain.Notification}
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	out, err := h.notifySvc.List(c.Request.Context(), userID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, out, "notifications retrieved")
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification as read
// @Tags        Notifications
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Notification ID (ULID)"
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Notification not found"
// @Router      /notifications/{id}/read [patch]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if err := h.notifySvc.MarkRead(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}
