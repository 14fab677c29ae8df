package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/secure-exam/relay/internal/model"
	"github.com/secure-exam/relay/internal/relay"
	"github.com/secure-exam/relay/internal/repository"
)

// ExamHandler exposes read-only views of an exam's live state and audit trail.
type ExamHandler struct {
	relay  *relay.Relay
	events *repository.EventRepository
}

// NewExamHandler creates a new ExamHandler. events may be nil when the
// audit trail is disabled.
func NewExamHandler(r *relay.Relay, events *repository.EventRepository) *ExamHandler {
	return &ExamHandler{relay: r, events: events}
}

// StudentResponse represents a joined student in API responses.
type StudentResponse struct {
	ExamID       string `json:"examId"`
	StudentID    string `json:"studentId"`
	StudentName  string `json:"studentName"`
	ConnectionID string `json:"socketId"`
	JoinedAt     string `json:"joinedAt"`
	Duration     string `json:"duration"`
}

// StudentsResponse is the body of GET /api/exams/:examId/students.
type StudentsResponse struct {
	Students []*StudentResponse `json:"students"`
}

func toStudentResponse(s *model.StudentSession) *StudentResponse {
	return &StudentResponse{
		ExamID:       s.ExamID,
		StudentID:    s.StudentID,
		StudentName:  s.StudentName,
		ConnectionID: s.ConnectionID,
		JoinedAt:     model.FormatTimestamp(s.JoinedAt),
		Duration:     formatDuration(s.Duration()),
	}
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}

// EventsResponse is the body of GET /api/exams/:examId/events.
type EventsResponse struct {
	Events []*model.AuditEvent `json:"events"`
}

// Stats handles GET /api/exams/:examId/stats.
func (h *ExamHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.relay.Teachers.StatsFor(c.Param("examId")))
}

// Students handles GET /api/exams/:examId/students.
func (h *ExamHandler) Students(c *gin.Context) {
	sessions := h.relay.Registry.ListByExam(c.Param("examId"))

	resp := StudentsResponse{Students: make([]*StudentResponse, 0, len(sessions))}
	for i := range sessions {
		resp.Students = append(resp.Students, toStudentResponse(&sessions[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Student handles GET /api/students/:socketId.
func (h *ExamHandler) Student(c *gin.Context) {
	sess, ok := h.relay.Registry.Get(c.Param("socketId"))
	if !ok {
		sendError(c, http.StatusNotFound, "STUDENT_NOT_FOUND", "No student joined on connection "+c.Param("socketId"))
		return
	}
	c.JSON(http.StatusOK, toStudentResponse(&sess))
}

// Events handles GET /api/exams/:examId/events.
func (h *ExamHandler) Events(c *gin.Context) {
	if h.events == nil {
		sendError(c, http.StatusNotFound, "AUDIT_DISABLED", model.ErrAuditDisabled.Error())
		return
	}

	limit := repository.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.events.ListByExam(c.Request.Context(), c.Param("examId"), limit)
	if err != nil {
		log.Printf("failed to list events: %v", err)
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list events")
		return
	}

	c.JSON(http.StatusOK, EventsResponse{Events: events})
}

// RegisterRoutes registers the exam routes on a Gin router group.
func (h *ExamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	exams := rg.Group("/exams/:examId")
	{
		exams.GET("/stats", h.Stats)
		exams.GET("/students", h.Students)
		exams.GET("/events", h.Events)
	}
	rg.GET("/students/:socketId", h.Student)
}
