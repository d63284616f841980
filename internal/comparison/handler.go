package comparison

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/auth"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms/:id")
	{
		rooms.GET("/pair", h.nextPair)
		rooms.POST("/votes", h.recordVote)
	}
}

// RegisterPublicRoutes registers the win-rate read, which is open to
// anyone who can see the room.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/rooms/:id/songs/:songId/winrate", h.winRate)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("comparison request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) nextPair(c *gin.Context) {
	userID, role := auth.Identity(c)
	pair, err := h.service.NextPair(c.Request.Context(), c.Param("id"), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if pair == nil {
		// Not an error: the room simply has fewer than two songs.
		c.JSON(http.StatusOK, gin.H{"pair": nil, "reason": "not_enough_songs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pair": pair})
}

type RecordVoteRequest struct {
	SongAID  string `json:"song_a_id" binding:"required"`
	SongBID  string `json:"song_b_id" binding:"required"`
	WinnerID string `json:"winner_id" binding:"required"`
}

func (h *Handler) recordVote(c *gin.Context) {
	var req RecordVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	if err := h.service.RecordVote(c.Request.Context(), c.Param("id"), req.SongAID, req.SongBID, req.WinnerID, userID, role); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) winRate(c *gin.Context) {
	userID, role := auth.Identity(c)
	stats, err := h.service.WinRate(c.Request.Context(), c.Param("id"), c.Param("songId"), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
