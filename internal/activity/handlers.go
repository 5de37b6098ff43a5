package activity

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MaxFeedLimit caps how many events a single feed request may return.
const MaxFeedLimit = 100

// Handler provides HTTP endpoints for the activity feed.
type Handler struct {
	store Store
}

// NewHandler creates a new activity handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up activity feed routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/activities", h.ListRecent)
}

// ListRecent handles GET /v1/activities
func (h *Handler) ListRecent(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	events, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load activity feed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"activities": events,
		"count":      len(events),
	})
}
