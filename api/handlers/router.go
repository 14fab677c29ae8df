package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/secure-exam/relay/internal/registry"
	"github.com/secure-exam/relay/internal/relay"
	"github.com/secure-exam/relay/internal/repository"
	"github.com/secure-exam/relay/internal/ws"
)

// Server holds everything the HTTP surface needs.
type Server struct {
	AllowedOrigins []string
	Hubs           *ws.HubManager
	Registry       *registry.Registry
	Relay          *relay.Relay
	Events         *repository.EventRepository
}

// NewRouter builds the gin engine serving the WebSocket namespaces, the
// health check and the exam API.
func NewRouter(s Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(CORSMiddleware(s.AllowedOrigins))

	wsHandler := NewWebSocketHandler(
		ws.NewHandler(s.AllowedOrigins),
		s.Hubs.GetOrCreate(StudentNamespace),
		s.Hubs.GetOrCreate(TeacherNamespace),
	)
	wsHandler.RegisterRoutes(r)

	NewHealthHandler(s.Hubs, s.Registry).RegisterRoutes(r)

	api := r.Group("/api")
	{
		NewExamHandler(s.Relay, s.Events).RegisterRoutes(api)
	}

	return r
}
