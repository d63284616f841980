package room

import (
	"net/http"
	"strings"

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

// RegisterPublicRoutes registers endpoints reachable by guests. They run
// behind optional auth so logged-in users still get owner visibility.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.GET("/code/:code", h.getRoomByInviteCode)
		rooms.GET("/:id", h.getRoom)
	}
}

// RegisterRoutes registers the authenticated room endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.POST("/", h.createRoom)
		rooms.GET("/", h.listRooms)
		rooms.PUT("/:id", h.updateMetadata)
		rooms.PUT("/:id/status", h.updateStatus)
		rooms.PUT("/:id/starter", h.setStarterFlag)
		rooms.POST("/:id/invites", h.inviteArtist)
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("room request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	AccessType  string `json:"access_type"`
}

func (h *Handler) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	room, err := h.service.CreateRoom(c.Request.Context(), userID, role, req.Name, req.Description, models.RoomAccessType(req.AccessType))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *Handler) getRoom(c *gin.Context) {
	userID, role := auth.Identity(c)
	detail, err := h.service.GetRoomDetail(c.Request.Context(), c.Param("id"), userID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) getRoomByInviteCode(c *gin.Context) {
	room, err := h.service.GetRoomByInviteCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *Handler) listRooms(c *gin.Context) {
	userID, role := auth.Identity(c)

	var filter []models.RoomStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filter = append(filter, models.RoomStatus(strings.TrimSpace(part)))
		}
	}

	rooms, err := h.service.ListRoomsForUser(c.Request.Context(), userID, role, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

type UpdateMetadataRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) updateMetadata(c *gin.Context) {
	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	room, err := h.service.UpdateRoomMetadata(c.Request.Context(), c.Param("id"), userID, role, req.Name, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	if err := h.service.UpdateRoomStatus(c.Request.Context(), c.Param("id"), userID, role, models.RoomStatus(req.Status)); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type SetStarterRequest struct {
	IsStarter *bool `json:"is_starter" binding:"required"`
}

func (h *Handler) setStarterFlag(c *gin.Context) {
	var req SetStarterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, role := auth.Identity(c)
	if err := h.service.SetStarterFlag(c.Request.Context(), c.Param("id"), role, *req.IsStarter); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type InviteArtistRequest struct {
	ArtistID string `json:"artist_id" binding:"required"`
}

func (h *Handler) inviteArtist(c *gin.Context) {
	var req InviteArtistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, role := auth.Identity(c)
	if err := h.service.InviteArtist(c.Request.Context(), c.Param("id"), userID, role, req.ArtistID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
