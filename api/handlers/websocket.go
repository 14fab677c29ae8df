package handlers

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/secure-exam/relay/internal/ws"
)

// WebSocketHandler upgrades requests into student and teacher connections.
type WebSocketHandler struct {
	wsHandler *ws.Handler
	students  *ws.Hub
	teachers  *ws.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler, students, teachers *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		wsHandler: wsHandler,
		students:  students,
		teachers:  teachers,
	}
}

// Student handles GET /exam.
func (h *WebSocketHandler) Student(c *gin.Context) {
	h.attach(c, h.students)
}

// Teacher handles GET /monitoring.
func (h *WebSocketHandler) Teacher(c *gin.Context) {
	h.attach(c, h.teachers)
}

func (h *WebSocketHandler) attach(c *gin.Context, hub *ws.Hub) {
	// The upgrader has already written the HTTP error on failure.
	if _, err := h.wsHandler.HandleConnection(c.Writer, c.Request, hub); err != nil {
		log.Printf("[%s] upgrade failed: %v", hub.Name(), err)
	}
}

// RegisterRoutes registers the WebSocket endpoints.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/"+StudentNamespace, h.Student)
	r.GET("/"+TeacherNamespace, h.Teacher)
}
