package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/secure-exam/relay/internal/db"
	"github.com/secure-exam/relay/internal/model"
	"github.com/secure-exam/relay/internal/registry"
	"github.com/secure-exam/relay/internal/relay"
	"github.com/secure-exam/relay/internal/repository"
	"github.com/secure-exam/relay/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	router   *gin.Engine
	hubs     *ws.HubManager
	relay    *relay.Relay
	events   *repository.EventRepository
	students *ws.Hub
	teachers *ws.Hub
}

func newTestServer(t *testing.T, withAudit bool) *testServer {
	t.Helper()

	hubs := ws.NewHubManager()
	students := hubs.GetOrCreate(StudentNamespace)
	teachers := hubs.GetOrCreate(TeacherNamespace)
	reg := registry.New()

	var events *repository.EventRepository
	if withAudit {
		testDB, err := db.NewTestDB()
		require.NoError(t, err)
		t.Cleanup(func() { testDB.Close() })
		events = repository.NewEventRepository(testDB)
	}

	r := relay.New(reg, students, teachers, relay.Config{})
	r.Bind(students, teachers)

	router := NewRouter(Server{
		AllowedOrigins: []string{"http://localhost:3000"},
		Hubs:           hubs,
		Registry:       reg,
		Relay:          r,
		Events:         events,
	})

	return &testServer{
		router:   router,
		hubs:     hubs,
		relay:    r,
		events:   events,
		students: students,
		teachers: teachers,
	}
}

func (s *testServer) get(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// joinStudent registers a connection without a socket and joins it to examID.
func (s *testServer) joinStudent(connID, examID, studentID, name string) {
	s.students.Register(ws.NewClient(s.students, nil, connID))
	s.relay.Students.Join(connID, model.JoinRoomRequest{
		ExamID:      examID,
		StudentID:   studentID,
		StudentName: name,
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	s.joinStudent("c1", "e1", "s1", "Alice")
	s.joinStudent("c2", "e2", "s2", "Bob")
	s.teachers.Register(ws.NewClient(s.teachers, nil, "t1"))

	w := s.get(t, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Connections.Students)
	assert.Equal(t, 1, resp.Connections.Teachers)
	assert.Equal(t, 2, resp.Rooms)
	assert.Equal(t, 2, resp.Sessions)
}

func TestExamStatsAndStudents(t *testing.T) {
	s := newTestServer(t, false)
	s.joinStudent("c1", "e1", "s1", "Alice")
	s.joinStudent("c2", "e1", "s2", "Bob")

	w := s.get(t, "/api/exams/e1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.StatsUpdate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "e1", stats.ExamID)
	assert.Equal(t, 2, stats.ActiveStudents)
	assert.NotEmpty(t, stats.Timestamp)

	w = s.get(t, "/api/exams/e1/students", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var students StudentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &students))
	require.Len(t, students.Students, 2)
	ids := []string{students.Students[0].StudentID, students.Students[1].StudentID}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	assert.NotEmpty(t, students.Students[0].JoinedAt)
	assert.NotEmpty(t, students.Students[0].Duration)

	w = s.get(t, "/api/students/c2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var one StudentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, "s2", one.StudentID)
	assert.Equal(t, "e1", one.ExamID)
	assert.Equal(t, "c2", one.ConnectionID)

	w = s.get(t, "/api/students/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.get(t, "/api/exams/none/students", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"students":[]}`, w.Body.String())
}

func TestExamEvents_Disabled(t *testing.T) {
	s := newTestServer(t, false)

	w := s.get(t, "/api/exams/e1/events", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AUDIT_DISABLED", resp.Error.Code)
}

func TestExamEvents_List(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()

	for _, kind := range []model.AuditKind{model.AuditJoin, model.AuditViolation, model.AuditKick} {
		require.NoError(t, s.events.Append(ctx, &model.AuditEvent{ExamID: "e1", Kind: kind, StudentID: "s1"}))
	}
	require.NoError(t, s.events.Append(ctx, &model.AuditEvent{ExamID: "e2", Kind: model.AuditJoin}))

	w := s.get(t, "/api/exams/e1/events?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, model.AuditKick, resp.Events[0].Kind)
	assert.Equal(t, model.AuditViolation, resp.Events[1].Kind)

	w = s.get(t, "/api/exams/e1/events", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Events, 3)
}

func TestExamEvents_InvalidLimit(t *testing.T) {
	s := newTestServer(t, true)

	for _, limit := range []string{"abc", "0", "-3"} {
		w := s.get(t, "/api/exams/e1/events?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, false)

	w := s.get(t, "/health", http.Header{"Origin": {"http://localhost:3000"}})
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.get(t, "/health", http.Header{"Origin": {"http://evil.example"}})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/exams/e1/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORS_Wildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"*"}))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://anything.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	data, err := ws.Encode(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func read(t *testing.T, conn *websocket.Conn) ws.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env ws.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestWebSocket_JoinAndKick(t *testing.T) {
	s := newTestServer(t, false)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	teacher := dial(t, srv, "/monitoring")
	emit(t, teacher, model.EventSubscribeExam, model.ExamRequest{ExamID: "e1"})
	env := read(t, teacher)
	require.Equal(t, model.EventCurrentStudents, env.Event)
	assert.JSONEq(t, `{"students":[]}`, string(env.Data))

	student := dial(t, srv, "/exam")
	emit(t, student, model.EventJoinRoom, model.JoinRoomRequest{ExamID: "e1", StudentID: "s1", StudentName: "Alice"})

	env = read(t, teacher)
	require.Equal(t, model.EventStudentJoined, env.Event)
	var joined model.StudentJoined
	require.NoError(t, env.Decode(&joined))
	assert.Equal(t, "s1", joined.StudentID)
	require.NotEmpty(t, joined.ConnectionID)

	emit(t, teacher, model.EventKickStudent, model.ModerationRequest{
		ExamID:       "e1",
		StudentID:    "s1",
		ConnectionID: joined.ConnectionID,
	})

	env = read(t, student)
	require.Equal(t, model.EventKicked, env.Event)
	var notice model.RemovalNotice
	require.NoError(t, env.Decode(&notice))
	assert.Equal(t, relay.DefaultKickReason, notice.Reason)

	student.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := student.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		got[read(t, teacher).Event] = true
	}
	assert.True(t, got[model.EventStudentDisconnected])
	assert.True(t, got[model.EventStudentKicked])

	assert.Equal(t, 0, s.relay.Registry.RoomSize("e1"))
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t, false)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/exam"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
