// User and identity webhook HTTP handlers.
//
//   - GET  /users/{role}         (list users by role, admin)
//   - POST /webhooks/identity    (identity-provider user events, signed)
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-followup-backend/internal/http/middleware"
	"github.com/tbourn/go-followup-backend/internal/webhook"
)

// ListUsersByRole godoc
// @ID          listUsersByRole
// @Summary     List users by role
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
//
// @Param       role  path  string  true  "user or admin"  Enums(user, admin)
//
// @Success     200  {object} handlers.Response{data=[]domain.User}
// @Failure     400  {object} handlers.ErrorResponse "Invalid role"
// @Failure     403  {object} handlers.ErrorResponse "Admin role required"
// @Router      /users/{role} [get]
func (h *Handlers) ListUsersByRole(c *gin.Context) {
	out, err := h.userSvc.ListByRole(c.Request.Context(), c.Param("role"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, out, "users retrieved")
}

// IdentityWebhook godoc
// @ID          identityWebhook
// @Summary     Identity-provider webhook
// @Description Provisions, updates, and removes users. Deliveries must carry valid svix-id, svix-timestamp, and svix-signature headers.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Success     200  {object} handlers.Response "Processed (unknown event types are acknowledged and ignored)"
// @Failure     400  {object} handlers.ErrorResponse "Missing headers, bad signature, or user without email"
// @Failure     500  {object} handlers.ErrorResponse "Not configured or processing failed"
// @Router      /webhooks/identity [post]
func (h *Handlers) IdentityWebhook(c *gin.Context) {
	if h.verifier == nil {
		fail(c, http.StatusInternalServerError, ErrCodeWebhookFailed, "webhook secret not configured")
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	if err := h.verifier.Verify(c.Request.Header, body); err != nil {
		if errors.Is(err, webhook.ErrMissingHeaders) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing signature headers")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, "invalid signature")
		return
	}

	ev, err := webhook.Decode(body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	lg := middleware.LoggerFrom(c)
	handled, err := h.userSvc.ApplyEvent(c.Request.Context(), ev)
	if err != nil {
		failService(c, err, ErrCodeWebhookFailed)
		return
	}
	if !handled {
		lg.Warn().Str("event_type", ev.Type).Msg("unhandled webhook event")
	} else {
		lg.Info().Str("event_type", ev.Type).Msg("webhook processed")
	}
	ok(c, http.StatusOK, nil, "webhook processed")
}
