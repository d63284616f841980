package song

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rooms-songpig/songpig-rooms-sub000/internal/auth"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/apperr"
	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/models"
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
		rooms.POST("/songs", h.addSong)
		rooms.DELETE("/songs/:songId", h.removeSong)
		rooms.POST("/songs/:songId/comments", h.addComment)
		rooms.PUT("/comments/:commentId/hidden", h.setCommentHidden)
		rooms.POST("/uploads", h.issueUploadURL)
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("song request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type AddSongRequest struct {
	Title       string `json:"title" binding:"required"`
	URL         string `json:"url" binding:"required"`
	SourceType  string `json:"source_type"`
	StorageType string `json:"storage_type"`
	StorageKey  string `json:"storage_key"`
}

func (h *Handler) addSong(c *gin.Context) {
	var req AddSongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	song, err := h.service.AddSong(c.Request.Context(), c.Param("id"), userID, role, AddSongInput{
		Title:       req.Title,
		URL:         req.URL,
		SourceType:  models.SongSourceType(req.SourceType),
		StorageType: models.SongStorageType(req.StorageType),
		StorageKey:  req.StorageKey,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, song)
}

func (h *Handler) removeSong(c *gin.Context) {
	userID, role := auth.Identity(c)
	if err := h.service.RemoveSong(c.Request.Context(), c.Param("id"), c.Param("songId"), userID, role); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type AddCommentRequest struct {
	Text      string `json:"text" binding:"required"`
	Anonymous bool   `json:"anonymous"`
	ParentID  string `json:"parent_id"`
}

func (h *Handler) addComment(c *gin.Context) {
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	comment, err := h.service.AddComment(c.Request.Context(), c.Param("id"), c.Param("songId"), userID, role, req.Text, req.Anonymous, req.ParentID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

type SetCommentHiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

func (h *Handler) setCommentHidden(c *gin.Context) {
	var req SetCommentHiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	if err := h.service.SetCommentHidden(c.Request.Context(), c.Param("id"), c.Param("commentId"), userID, role, *req.Hidden); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type IssueUploadRequest struct {
	Filename string `json:"filename" binding:"required"`
}

func (h *Handler) issueUploadURL(c *gin.Context) {
	var req IssueUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	ticket, err := h.service.IssueUploadURL(c.Request.Context(), c.Param("id"), userID, role, req.Filename)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ticket)
}
