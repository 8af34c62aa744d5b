// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Identify runs globally
// and resolves the caller from the Authorization header so that later
// middleware (idempotency lookup, rate limiting, logging) see the real user.
// RequireAuth and RequireAdmin guard route groups.
//
// Context keys set on success:
//   - "userID": internal user id (token claim "uid")
//   - "role":   "user" or "admin"
//   - "claims": *auth.Claims
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-followup-backend/internal/auth"
)

const (
	ctxKeyUserID    = "userID"
	ctxKeyRole      = "role"
	ctxKeyClaims    = "claims"
	ctxKeyAuthError = "auth.error"
)

// Identify parses an "Authorization: Bearer <token>" header when present.
// A missing header leaves the request anonymous; an invalid token is
// remembered and rejected by RequireAuth.
func Identify(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.Next()
			return
		}
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Set(ctxKeyAuthError, "malformed authorization header")
			c.Next()
			return
		}
		claims, err := auth.Parse(strings.TrimSpace(token), secret)
		if err != nil {
			c.Set(ctxKeyAuthError, "invalid or expired token")
			c.Next()
			return
		}
		c.Set(ctxKeyUserID, claims.UserID)
		c.Set(ctxKeyRole, claims.Role)
		c.Set(ctxKeyClaims, claims)
		c.Next()
	}
}

// RequireAuth rejects requests without a valid identity with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := ClaimsFrom(c); ok {
			c.Next()
			return
		}
		msg := "authentication required"
		if v, ok := c.Get(ctxKeyAuthError); ok {
			msg, _ = v.(string)
		}
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
		abortJSON(c, http.StatusUnauthorized, "unauthorized", msg)
	}
}

// RequireAdmin rejects non-admin callers with 403. It assumes RequireAuth
// ran earlier in the chain.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !claims.IsAdmin() {
			abortJSON(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the verified claims of the caller, if any.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ctxKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// UserID returns the authenticated user id or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// abortJSON writes the standard failure envelope. Handlers have their own
// helper; middleware cannot import the handlers package.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":    false,
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
