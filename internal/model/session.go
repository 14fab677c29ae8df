package model

import "time"

// TimestampLayout is the ISO-8601 layout used for every emitted timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// StudentSession represents one student connection joined to an exam.
type StudentSession struct {
	ExamID       string    `json:"examId"`
	StudentID    string    `json:"studentId"`
	StudentName  string    `json:"studentName"`
	ConnectionID string    `json:"socketId"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// Duration returns how long the student has been joined.
func (s *StudentSession) Duration() time.Duration {
	return time.Since(s.JoinedAt)
}

// ConnState is the lifecycle state of a student connection.
type ConnState string

const (
	ConnStateIdle    ConnState = "idle"
	ConnStateJoined  ConnState = "joined"
	ConnStateLeft    ConnState = "left"
	ConnStateClosed  ConnState = "closed"
	ConnStateRemoved ConnState = "removed"
)

// Terminal reports whether no further student events are accepted in this state.
func (s ConnState) Terminal() bool {
	return s == ConnStateClosed || s == ConnStateRemoved
}

// CanJoin reports whether a join-room event is accepted in this state.
func (s ConnState) CanJoin() bool {
	return !s.Terminal()
}
