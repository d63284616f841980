package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rooms-songpig/songpig-rooms-sub000/pkg/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

// Handler fans room events out to connected reviewers, so open room pages
// see new votes and comments without polling. The feed is read-only; all
// writes go through the HTTP API.
type Handler struct {
	// Map of roomID -> map of connectionID -> *websocket.Conn
	rooms  map[string]map[string]*websocket.Conn
	mu     sync.RWMutex
	events *events.KafkaClient
	logger *zap.Logger
}

func NewHandler(ev *events.KafkaClient, logger *zap.Logger) *Handler {
	return &Handler{
		rooms:  make(map[string]map[string]*websocket.Conn),
		events: ev,
		logger: logger,
	}
}

func (h *Handler) HandleWebSocket(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	connID := uuid.New().String()
	h.register(roomID, connID, conn)
	defer h.unregister(roomID, connID)

	// Drain the connection; clients do not send anything meaningful, but
	// the read loop is what notices the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Run consumes the room event stream and broadcasts each event to the
// connections watching its room. Blocks until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) error {
	if h.events == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return h.events.ConsumeEvents(ctx, func(event events.Event) error {
		h.broadcast(event)
		return nil
	})
}

func (h *Handler) register(roomID, connID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*websocket.Conn)
	}
	h.rooms[roomID][connID] = conn
}

func (h *Handler) unregister(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomID]; ok {
		if conn, ok := conns[connID]; ok {
			conn.Close()
			delete(conns, connID)
		}
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Handler) broadcast(event events.Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("failed to marshal event for broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID, conn := range h.rooms[event.RoomID] {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Debug("websocket write failed",
				zap.String("room_id", event.RoomID),
				zap.String("conn_id", connID),
				zap.Error(err))
		}
	}
}
