package handlers

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/secure-exam/relay/internal/registry"
	"github.com/secure-exam/relay/internal/ws"
	"github.com/shirou/gopsutil/v3/process"
)

// Namespace names served by the relay.
const (
	StudentNamespace = "exam"
	TeacherNamespace = "monitoring"
)

// HealthHandler reports liveness and relay load.
type HealthHandler struct {
	hubs     *ws.HubManager
	registry *registry.Registry
	proc     *process.Process
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(hubs *ws.HubManager, reg *registry.Registry) *HealthHandler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("health: process metrics unavailable: %v", err)
	}
	return &HealthHandler{hubs: hubs, registry: reg, proc: proc}
}

// ConnectionCounts is the number of open connections per namespace.
type ConnectionCounts struct {
	Students int `json:"students"`
	Teachers int `json:"teachers"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string           `json:"status"`
	Connections ConnectionCounts `json:"connections"`
	Rooms       int              `json:"rooms"`
	Sessions    int              `json:"sessions"`
	MemoryRSS   uint64           `json:"memoryRss"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	counts := h.hubs.ClientCounts()
	stats := h.registry.Stats()

	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		Connections: ConnectionCounts{
			Students: counts[StudentNamespace],
			Teachers: counts[TeacherNamespace],
		},
		Rooms:     stats.Rooms,
		Sessions:  stats.Sessions,
		MemoryRSS: h.memoryRSS(),
	})
}

func (h *HealthHandler) memoryRSS() uint64 {
	if h.proc == nil {
		return 0
	}
	info, err := h.proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return info.RSS
}

// RegisterRoutes registers the health route.
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
}
