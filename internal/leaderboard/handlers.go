package leaderboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ninerlabs/ninerscore/internal/basechain"
	"github.com/ninerlabs/ninerscore/internal/farcaster"
)

// MaxLeaderboardLimit bounds how many entries one request can page through.
const MaxLeaderboardLimit = 100

// Handler provides HTTP endpoints for scoring and leaderboard reads.
type Handler struct {
	service *Service
}

// NewHandler creates a new leaderboard handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up scoring and leaderboard routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/scores", h.SubmitScore)
	r.GET("/leaderboard", h.Leaderboard)
	r.GET("/leaderboard/:fid", h.GetByFID)
	r.GET("/users/:username", h.GetByUsername)
	r.POST("/base/score", h.CacheBaseScore)
	r.GET("/base/activity", h.BaseActivity)
	r.POST("/nft/mint", h.RecordMint)
}

// SubmitScoreRequest identifies who is being scored. The score itself is
// never part of the request.
type SubmitScoreRequest struct {
	FID      int64  `json:"fid" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// BaseScoreRequest carries the wallets to aggregate for the base score.
type BaseScoreRequest struct {
	FID             int64    `json:"fid" binding:"required"`
	WalletAddresses []string `json:"walletAddresses" binding:"required"`
}

// MintRequest records an already-executed on-chain mint.
type MintRequest struct {
	FID             int64  `json:"fid" binding:"required"`
	TokenID         string `json:"tokenId" binding:"required"`
	TransactionHash string `json:"transactionHash" binding:"required"`
}

// SubmitScore handles POST /v1/scores
func (h *Handler) SubmitScore(c *gin.Context) {
	var req SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.SubmitScore(c.Request.Context(), req.FID, req.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.Inserted {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"entry":     result.Entry,
		"breakdown": result.Breakdown,
	})
}

// Leaderboard handles GET /v1/leaderboard
func (h *Handler) Leaderboard(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLeaderboardLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "limit must be between 1 and 100",
			})
			return
		}
		limit = n
	}

	order := SortByScore
	if c.Query("sort") == string(SortByCombined) {
		order = SortByCombined
	}

	entries, err := h.service.Top(c.Request.Context(), limit, order)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
		"sort":    order,
	})
}

// GetByFID handles GET /v1/leaderboard/:fid
func (h *Handler) GetByFID(c *gin.Context) {
	fid, err := strconv.ParseInt(c.Param("fid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "fid must be an integer",
		})
		return
	}

	entry, err := h.service.GetByFID(c.Request.Context(), fid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetByUsername handles GET /v1/users/:username
func (h *Handler) GetByUsername(c *gin.Context) {
	entry, err := h.service.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// CacheBaseScore handles POST /v1/base/score
func (h *Handler) CacheBaseScore(c *gin.Context) {
	var req BaseScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	entry, act, err := h.service.CacheBaseScore(c.Request.Context(), req.FID, req.WalletAddresses)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entry":    entry,
		"activity": act,
	})
}

// BaseActivity handles GET /v1/base/activity?addresses=0x..,0x..
func (h *Handler) BaseActivity(c *gin.Context) {
	raw := c.Query("addresses")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "addresses query parameter is required",
		})
		return
	}

	act, err := h.service.BaseActivity(c.Request.Context(), strings.Split(raw, ","))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, act)
}

// RecordMint handles POST /v1/nft/mint
func (h *Handler) RecordMint(c *gin.Context) {
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	entry, err := h.service.RecordMint(c.Request.Context(), req.FID, req.TokenID, req.TransactionHash)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// respondError maps service sentinel errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.Is(err, ErrUsernameMismatch):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "identity_mismatch",
			"message": "Username does not match the Farcaster ID",
		})
	case errors.Is(err, farcaster.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "user_not_found",
			"message": "No such Farcaster user",
		})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "No leaderboard entry for this identity",
		})
	case errors.Is(err, ErrNotInLeaderboard):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_in_leaderboard",
			"message": "Submit a score before linking wallets or minting",
		})
	case errors.Is(err, ErrAlreadyMinted):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_minted",
			"message": "Score NFT already minted for this identity",
		})
	case errors.Is(err, farcaster.ErrUnavailable), errors.Is(err, basechain.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "upstream_unavailable",
			"message": "Upstream data provider is unavailable, try again shortly",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong",
		})
	}
}
