package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ninerlabs/ninerscore/internal/farcaster"
	"github.com/ninerlabs/ninerscore/internal/validation"
)

// Handler provides HTTP endpoints for session management.
type Handler struct {
	manager *Manager
	social  farcaster.Provider
}

// NewHandler creates a new session handler.
func NewHandler(manager *Manager, social farcaster.Provider) *Handler {
	return &Handler{manager: manager, social: social}
}

// RegisterRoutes sets up session routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/session", h.CreateSession)
	r.GET("/auth/session", h.GetSession)
	r.DELETE("/auth/session", h.RevokeSession)
}

// CreateSessionRequest identifies the caller to be verified.
type CreateSessionRequest struct {
	FID      int64  `json:"fid" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// CreateSession handles POST /v1/auth/session. The claimed identity is
// verified against the social provider before a token is issued.
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.IsValidFID(req.FID) || !validation.IsValidUsername(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Malformed fid or username",
		})
		return
	}

	user, err := h.social.UserByFID(c.Request.Context(), req.FID)
	if err != nil {
		switch {
		case errors.Is(err, farcaster.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "user_not_found",
				"message": "No such Farcaster user",
			})
		default:
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "upstream_unavailable",
				"message": "Identity verification is unavailable, try again shortly",
			})
		}
		return
	}
	if !strings.EqualFold(user.Username, req.Username) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "identity_mismatch",
			"message": "Username does not match the Farcaster ID",
		})
		return
	}

	token, s := h.manager.Create(c.Request.Context(), user.FID, user.Username)
	c.JSON(http.StatusCreated, gin.H{
		"token":   token,
		"session": s,
	})
}

// GetSession handles GET /v1/auth/session. It introspects the bearer token
// from the Authorization header and returns the session it identifies.
func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.manager.Validate(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNoToken):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "no_token",
				"message": "Authorization header required",
			})
		default:
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Session is invalid or expired",
			})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}

// RevokeSession handles DELETE /v1/auth/session.
func (h *Handler) RevokeSession(c *gin.Context) {
	token := c.GetHeader("Authorization")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "no_token",
			"message": "Authorization header required",
		})
		return
	}
	h.manager.Revoke(c.Request.Context(), token)
	c.Status(http.StatusNoContent)
}
