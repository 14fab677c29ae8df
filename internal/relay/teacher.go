package relay

import (
	"log"
	"time"

	"github.com/secure-exam/relay/internal/model"
	"github.com/secure-exam/relay/internal/registry"
	"github.com/secure-exam/relay/internal/ws"
)

// TeacherChannel handles events originating from proctor connections.
type TeacherChannel struct {
	registry    *registry.Registry
	ns          Namespace
	students    StudentControl
	recorder    Recorder
	now         func() time.Time
	kickReason  string
	blockReason string
}

// NewTeacherChannel creates a teacher channel emitting through ns and
// moderating students through students.
func NewTeacherChannel(reg *registry.Registry, ns Namespace, students StudentControl, cfg Config) *TeacherChannel {
	cfg = cfg.withDefaults()
	return &TeacherChannel{
		registry:    reg,
		ns:          ns,
		students:    students,
		recorder:    cfg.Recorder,
		now:         cfg.Clock,
		kickReason:  cfg.KickReason,
		blockReason: cfg.BlockReason,
	}
}

func (t *TeacherChannel) timestamp() string {
	return model.FormatTimestamp(t.now())
}

// NotifyExam delivers an event to every teacher subscribed to examID.
func (t *TeacherChannel) NotifyExam(examID, event string, payload interface{}) {
	t.ns.EmitGroup(MonitorGroup(examID), event, payload)
}

func (t *TeacherChannel) reply(connID, event string, payload interface{}) {
	if err := t.ns.Emit(connID, event, payload); err != nil {
		log.Printf("teacher %s: %s not delivered: %v", connID, event, err)
	}
}

// HandleEvent decodes and dispatches one inbound teacher event.
func (t *TeacherChannel) HandleEvent(connID string, env *ws.Envelope) {
	var exam model.ExamRequest
	var broadcast model.SendBroadcastRequest
	var mod model.ModerationRequest

	switch env.Event {
	case model.EventSubscribeExam:
		if decode(connID, env, &exam) {
			t.Subscribe(connID, exam.ExamID)
		}
	case model.EventUnsubscribeExam:
		if decode(connID, env, &exam) {
			t.Unsubscribe(connID, exam.ExamID)
		}
	case model.EventGetStats:
		if decode(connID, env, &exam) {
			t.Stats(connID, exam.ExamID)
		}
	case model.EventSendBroadcast:
		if decode(connID, env, &broadcast) {
			t.SendBroadcast(connID, broadcast)
		}
	case model.EventKickStudent:
		if decode(connID, env, &mod) {
			t.Kick(connID, mod)
		}
	case model.EventBlockStudent:
		if decode(connID, env, &mod) {
			t.Block(connID, mod)
		}
	case model.EventRestoreStudent:
		if decode(connID, env, &mod) {
			t.Restore(connID, mod)
		}
	default:
		log.Printf("teacher %s: unknown event %q", connID, env.Event)
	}
}

func decode(connID string, env *ws.Envelope, v interface{}) bool {
	if err := env.Decode(v); err != nil {
		log.Printf("connection %s: %v", connID, err)
		return false
	}
	return true
}

// Subscribe adds the teacher to the exam's monitoring group and replies
// with the students currently joined.
func (t *TeacherChannel) Subscribe(connID, examID string) {
	t.ns.Join(connID, MonitorGroup(examID))
	log.Printf("teacher %s subscribed to exam %s", connID, examID)

	t.reply(connID, model.EventCurrentStudents, model.CurrentStudents{
		Students: t.registry.ListByExam(examID),
	})
}

// Unsubscribe removes the teacher from the exam's monitoring group.
func (t *TeacherChannel) Unsubscribe(connID, examID string) {
	t.ns.Leave(connID, MonitorGroup(examID))
	log.Printf("teacher %s unsubscribed from exam %s", connID, examID)
}

// SendBroadcast delivers a message to every student of the exam. The
// recipient count is the room size read after delivery and may differ from
// the number of students that actually received the message.
func (t *TeacherChannel) SendBroadcast(connID string, req model.SendBroadcastRequest) {
	log.Printf("broadcast to exam %s: %s", req.ExamID, req.Message)

	t.students.Broadcast(req.ExamID, model.BroadcastMessage{
		Message:   req.Message,
		From:      req.TeacherName,
		Timestamp: t.timestamp(),
	})

	t.reply(connID, model.EventBroadcastSent, model.BroadcastSent{
		ExamID:         req.ExamID,
		RecipientCount: t.registry.RoomSize(req.ExamID),
	})
	t.recorder.Record(model.AuditEvent{
		ExamID: req.ExamID,
		Kind:   model.AuditBroadcast,
		Detail: req.TeacherName + ": " + req.Message,
	})
}

// Kick removes a student connection. The confirmation is sent whether or
// not the connection still existed.
func (t *TeacherChannel) Kick(connID string, req model.ModerationRequest) {
	reason := req.Reason
	if reason == "" {
		reason = t.kickReason
	}
	log.Printf("kicking student %s from exam %s", req.StudentID, req.ExamID)

	t.students.Expel(req.ExamID, req.ConnectionID, model.EventKicked, reason)

	t.reply(connID, model.EventStudentKicked, model.ModerationResult{
		StudentID: req.StudentID,
		Success:   true,
	})
	t.recorder.Record(model.AuditEvent{
		ExamID:       req.ExamID,
		Kind:         model.AuditKick,
		StudentID:    req.StudentID,
		ConnectionID: req.ConnectionID,
		Detail:       reason,
	})
}

// Block removes a student connection with the fixed blocked reason. Making
// the block stick across future joins is the job of the exam database.
func (t *TeacherChannel) Block(connID string, req model.ModerationRequest) {
	log.Printf("blocking student %s from exam %s", req.StudentID, req.ExamID)

	t.students.Expel(req.ExamID, req.ConnectionID, model.EventBlocked, t.blockReason)

	t.reply(connID, model.EventStudentBlocked, model.ModerationResult{
		StudentID: req.StudentID,
		Success:   true,
	})
	t.recorder.Record(model.AuditEvent{
		ExamID:       req.ExamID,
		Kind:         model.AuditBlock,
		StudentID:    req.StudentID,
		ConnectionID: req.ConnectionID,
		Detail:       t.blockReason,
	})
}

// Restore echoes a restoration already performed by the exam database.
// It has no effect on the registry.
func (t *TeacherChannel) Restore(connID string, req model.ModerationRequest) {
	log.Printf("restoring student %s for exam %s", req.StudentID, req.ExamID)

	t.reply(connID, model.EventStudentRestored, model.ModerationResult{
		StudentID: req.StudentID,
		Success:   true,
	})
	t.recorder.Record(model.AuditEvent{
		ExamID:    req.ExamID,
		Kind:      model.AuditRestore,
		StudentID: req.StudentID,
	})
}

// Stats replies with the number of students currently joined to examID.
func (t *TeacherChannel) Stats(connID, examID string) {
	t.reply(connID, model.EventStatsUpdate, t.StatsFor(examID))
}

// StatsFor builds the stats-update payload for examID.
func (t *TeacherChannel) StatsFor(examID string) model.StatsUpdate {
	return model.StatsUpdate{
		ExamID:         examID,
		ActiveStudents: t.registry.RoomSize(examID),
		Timestamp:      t.timestamp(),
	}
}
