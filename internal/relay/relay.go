// Package relay implements the two channel handlers of the proctoring relay.
//
// StudentChannel mediates student connections and TeacherChannel mediates
// proctor connections. They never call each other directly: students reach
// teachers through a Notifier and teachers reach students through a
// StudentControl, both of which are satisfied by the other handler.
package relay

import (
	"log"
	"time"

	"github.com/secure-exam/relay/internal/model"
	"github.com/secure-exam/relay/internal/registry"
	"github.com/secure-exam/relay/internal/ws"
)

const (
	// DefaultKickReason is sent with kicked when the proctor gives no reason.
	DefaultKickReason = "Anda telah dikeluarkan dari ujian oleh pengawas"

	// DefaultBlockReason is always sent with blocked.
	DefaultBlockReason = "Anda telah diblokir dari ujian oleh pengawas"
)

// Namespace is the transport surface a channel handler emits through.
type Namespace interface {
	Emit(connID, event string, payload interface{}) error
	EmitGroup(group, event string, payload interface{}) int
	Join(connID, group string)
	Leave(connID, group string)
	Disconnect(connID string) bool
}

// Notifier delivers an event to the teachers monitoring an exam.
type Notifier interface {
	NotifyExam(examID, event string, payload interface{})
}

// StudentControl lets moderators act on student connections.
type StudentControl interface {
	Broadcast(examID string, msg model.BroadcastMessage) int
	Expel(examID, connID, event, reason string)
}

// Recorder receives audit events. Implementations must not block.
type Recorder interface {
	Record(ev model.AuditEvent)
}

type noopRecorder struct{}

func (noopRecorder) Record(model.AuditEvent) {}

// Config holds relay options.
type Config struct {
	KickReason  string
	BlockReason string
	Recorder    Recorder
	Clock       func() time.Time
}

func (c Config) withDefaults() Config {
	if c.KickReason == "" {
		c.KickReason = DefaultKickReason
	}
	if c.BlockReason == "" {
		c.BlockReason = DefaultBlockReason
	}
	if c.Recorder == nil {
		c.Recorder = noopRecorder{}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Relay wires a StudentChannel and a TeacherChannel over one registry.
type Relay struct {
	Registry *registry.Registry
	Students *StudentChannel
	Teachers *TeacherChannel
}

// New builds both channels and connects them to each other.
func New(reg *registry.Registry, students, teachers Namespace, cfg Config) *Relay {
	cfg = cfg.withDefaults()

	sc := NewStudentChannel(reg, students, cfg)
	tc := NewTeacherChannel(reg, teachers, sc, cfg)
	sc.SetNotifier(tc)

	return &Relay{Registry: reg, Students: sc, Teachers: tc}
}

// Bind routes the hubs' inbound events and connection closes to the channels.
func (r *Relay) Bind(students, teachers *ws.Hub) {
	students.SetOnMessage(func(c *ws.Client, env *ws.Envelope) {
		r.Students.HandleEvent(c.ID(), env)
	})
	students.SetOnClose(func(c *ws.Client) {
		r.Students.Closed(c.ID())
	})

	teachers.SetOnMessage(func(c *ws.Client, env *ws.Envelope) {
		r.Teachers.HandleEvent(c.ID(), env)
	})
	teachers.SetOnClose(func(c *ws.Client) {
		log.Printf("teacher %s left monitoring", c.ID())
	})
}

// MonitorGroup is the transport group of teachers subscribed to examID.
func MonitorGroup(examID string) string {
	return "monitor:" + examID
}
