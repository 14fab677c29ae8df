package relay

import (
	"log"
	"sync"
	"time"

	"github.com/secure-exam/relay/internal/model"
	"github.com/secure-exam/relay/internal/registry"
	"github.com/secure-exam/relay/internal/ws"
)

// studentConn tracks one student connection. Its mutex serializes the
// connection's own events with moderation commands targeting it.
type studentConn struct {
	mu    sync.Mutex
	id    string
	state model.ConnState
}

// StudentChannel handles events originating from student connections.
type StudentChannel struct {
	registry *registry.Registry
	ns       Namespace
	notifier Notifier
	recorder Recorder
	now      func() time.Time

	mu    sync.Mutex
	conns map[string]*studentConn
}

// NewStudentChannel creates a student channel emitting through ns.
func NewStudentChannel(reg *registry.Registry, ns Namespace, cfg Config) *StudentChannel {
	cfg = cfg.withDefaults()
	return &StudentChannel{
		registry: reg,
		ns:       ns,
		recorder: cfg.Recorder,
		now:      cfg.Clock,
		conns:    make(map[string]*studentConn),
	}
}

// SetNotifier sets where presence and violation events are relayed.
func (s *StudentChannel) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *StudentChannel) notify(examID, event string, payload interface{}) {
	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()

	if n != nil {
		n.NotifyExam(examID, event, payload)
	}
}

func (s *StudentChannel) timestamp() string {
	return model.FormatTimestamp(s.now())
}

// acquire returns the locked tracker of connID, creating it on first use.
func (s *StudentChannel) acquire(connID string) *studentConn {
	s.mu.Lock()
	sc, ok := s.conns[connID]
	if !ok {
		sc = &studentConn{id: connID, state: model.ConnStateIdle}
		s.conns[connID] = sc
	}
	s.mu.Unlock()

	sc.mu.Lock()
	return sc
}

// State returns the lifecycle state of connID. Untracked connections are idle.
func (s *StudentChannel) State(connID string) model.ConnState {
	s.mu.Lock()
	sc, ok := s.conns[connID]
	s.mu.Unlock()

	if !ok {
		return model.ConnStateIdle
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.state
}

// HandleEvent decodes and dispatches one inbound student event.
func (s *StudentChannel) HandleEvent(connID string, env *ws.Envelope) {
	switch env.Event {
	case model.EventJoinRoom:
		var req model.JoinRoomRequest
		if decode(connID, env, &req) {
			s.Join(connID, req)
		}
	case model.EventLeaveRoom:
		var req model.ExamRequest
		if decode(connID, env, &req) {
			s.Leave(connID, req.ExamID)
		}
	case model.EventViolation:
		var report model.ViolationReport
		if decode(connID, env, &report) {
			s.ReportViolation(connID, report)
		}
	default:
		log.Printf("student %s: unknown event %q", connID, env.Event)
	}
}

// Join places the connection in the exam and tells the exam's teachers.
func (s *StudentChannel) Join(connID string, req model.JoinRoomRequest) {
	sc := s.acquire(connID)
	defer sc.mu.Unlock()

	if !sc.state.CanJoin() {
		log.Printf("student %s: join-room ignored in state %s", connID, sc.state)
		return
	}

	sess := s.registry.Join(req.ExamID, req.StudentID, req.StudentName, connID)
	sc.state = model.ConnStateJoined
	log.Printf("student %s (%s) joined exam %s", sess.StudentName, sess.StudentID, sess.ExamID)

	s.notify(req.ExamID, model.EventStudentJoined, model.StudentJoined{
		StudentID:    req.StudentID,
		StudentName:  req.StudentName,
		ConnectionID: connID,
		Timestamp:    s.timestamp(),
	})
	s.recorder.Record(model.AuditEvent{
		ExamID:       req.ExamID,
		Kind:         model.AuditJoin,
		StudentID:    req.StudentID,
		ConnectionID: connID,
		Detail:       req.StudentName,
	})
}

// Leave removes the connection from examID. Nothing is relayed when the
// connection had no session.
func (s *StudentChannel) Leave(connID, examID string) {
	sc := s.acquire(connID)
	defer sc.mu.Unlock()

	if sc.state.Terminal() {
		return
	}

	sess, ok := s.registry.Leave(connID, examID)
	if !ok {
		return
	}
	sc.state = model.ConnStateLeft
	log.Printf("student %s (%s) left exam %s", sess.StudentName, sess.StudentID, examID)

	s.notify(examID, model.EventStudentLeft, model.StudentPresence{
		StudentID:   sess.StudentID,
		StudentName: sess.StudentName,
		Timestamp:   s.timestamp(),
	})
	s.recorder.Record(model.AuditEvent{
		ExamID:       examID,
		Kind:         model.AuditLeave,
		StudentID:    sess.StudentID,
		ConnectionID: connID,
	})
}

// ReportViolation forwards a violation report, tagged with the connection id.
func (s *StudentChannel) ReportViolation(connID string, report model.ViolationReport) {
	sc := s.acquire(connID)
	defer sc.mu.Unlock()

	if sc.state.Terminal() {
		return
	}

	report.ConnectionID = connID
	log.Printf("violation from %s in exam %s: %s", report.StudentID, report.ExamID, report.Type)

	s.notify(report.ExamID, model.EventViolationAlert, report)
	s.recorder.Record(model.AuditEvent{
		ExamID:       report.ExamID,
		Kind:         model.AuditViolation,
		StudentID:    report.StudentID,
		ConnectionID: connID,
		Detail:       report.Type + ": " + report.Description,
	})
}

// Closed handles the transport closing the connection. A connection that
// was already removed by a moderator produces no further notification.
func (s *StudentChannel) Closed(connID string) {
	sc := s.acquire(connID)
	prev := sc.state
	sc.state = model.ConnStateClosed

	if prev != model.ConnStateRemoved {
		if sess, ok := s.registry.Disconnect(connID); ok {
			s.announceDisconnect(sess)
		}
	}
	sc.mu.Unlock()

	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()
}

func (s *StudentChannel) announceDisconnect(sess model.StudentSession) {
	log.Printf("student %s (%s) disconnected from exam %s", sess.StudentName, sess.StudentID, sess.ExamID)

	s.notify(sess.ExamID, model.EventStudentDisconnected, model.StudentPresence{
		StudentID:   sess.StudentID,
		StudentName: sess.StudentName,
		Timestamp:   s.timestamp(),
	})
	s.recorder.Record(model.AuditEvent{
		ExamID:       sess.ExamID,
		Kind:         model.AuditDisconnect,
		StudentID:    sess.StudentID,
		ConnectionID: sess.ConnectionID,
	})
}

// Broadcast delivers msg to every connection joined to examID and returns
// how many connections it was queued for.
func (s *StudentChannel) Broadcast(examID string, msg model.BroadcastMessage) int {
	delivered := 0
	for _, connID := range s.registry.Members(examID) {
		if err := s.ns.Emit(connID, model.EventBroadcast, msg); err == nil {
			delivered++
		}
	}
	return delivered
}

// Expel sends event (kicked or blocked) to connID, removes it from the
// registry and terminates it, all under the connection's lock so no
// further student event from it is handled. A connection that is already
// gone only loses its registry entry, if any.
func (s *StudentChannel) Expel(examID, connID, event, reason string) {
	sc := s.acquire(connID)
	defer sc.mu.Unlock()

	if err := s.ns.Emit(connID, event, model.RemovalNotice{
		Reason:    reason,
		Timestamp: s.timestamp(),
	}); err != nil {
		log.Printf("%s for %s not delivered: %v", event, connID, err)
	}

	sc.state = model.ConnStateRemoved
	if sess, ok := s.registry.Remove(connID); ok {
		if sess.ExamID != examID {
			log.Printf("expelled %s from exam %s while joined to %s", connID, examID, sess.ExamID)
		}
		s.announceDisconnect(sess)
	}

	if !s.ns.Disconnect(connID) {
		// No close callback will follow for a connection the transport no longer knows.
		s.mu.Lock()
		if s.conns[connID] == sc {
			delete(s.conns, connID)
		}
		s.mu.Unlock()
	}
}
