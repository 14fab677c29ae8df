package model

// Event names exchanged on the two channels.
const (
	// Student channel, inbound
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	EventViolation = "violation"

	// Student channel, outbound
	EventBroadcast = "broadcast"
	EventKicked    = "kicked"
	EventBlocked   = "blocked"

	// Teacher channel, inbound
	EventSubscribeExam   = "subscribe-exam"
	EventUnsubscribeExam = "unsubscribe-exam"
	EventSendBroadcast   = "send-broadcast"
	EventKickStudent     = "kick-student"
	EventBlockStudent    = "block-student"
	EventRestoreStudent  = "restore-student"
	EventGetStats        = "get-stats"

	// Teacher channel, outbound
	EventCurrentStudents     = "current-students"
	EventBroadcastSent       = "broadcast-sent"
	EventStudentKicked       = "student-kicked"
	EventStudentBlocked      = "student-blocked"
	EventStudentRestored     = "student-restored"
	EventStatsUpdate         = "stats-update"
	EventStudentJoined       = "student-joined"
	EventStudentLeft         = "student-left"
	EventStudentDisconnected = "student-disconnected"
	EventViolationAlert      = "violation-alert"
)

// JoinRoomRequest is the payload of join-room.
type JoinRoomRequest struct {
	ExamID      string `json:"examId"`
	SessionID   string `json:"sessionId,omitempty"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
}

// ExamRequest carries only an exam id (leave-room, subscribe-exam, unsubscribe-exam, get-stats).
type ExamRequest struct {
	ExamID string `json:"examId"`
}

// ViolationReport is the payload of violation and, with ConnectionID set, of violation-alert.
type ViolationReport struct {
	ExamID       string `json:"examId"`
	StudentID    string `json:"studentId"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	Timestamp    string `json:"timestamp"`
	ConnectionID string `json:"socketId,omitempty"`
}

// SendBroadcastRequest is the payload of send-broadcast.
type SendBroadcastRequest struct {
	ExamID      string `json:"examId"`
	Message     string `json:"message"`
	TeacherName string `json:"teacherName"`
}

// ModerationRequest is the payload of kick-student, block-student and restore-student.
type ModerationRequest struct {
	ExamID       string `json:"examId"`
	StudentID    string `json:"studentId"`
	ConnectionID string `json:"socketId,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// StudentJoined is relayed to teachers when a student joins.
type StudentJoined struct {
	StudentID    string `json:"studentId"`
	StudentName  string `json:"studentName"`
	ConnectionID string `json:"socketId"`
	Timestamp    string `json:"timestamp"`
}

// StudentPresence is relayed to teachers on student-left and student-disconnected.
type StudentPresence struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Timestamp   string `json:"timestamp"`
}

// BroadcastMessage is delivered to every student of an exam.
type BroadcastMessage struct {
	Message   string `json:"message"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
}

// RemovalNotice is delivered to a kicked or blocked student.
type RemovalNotice struct {
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// CurrentStudents answers subscribe-exam.
type CurrentStudents struct {
	Students []StudentSession `json:"students"`
}

// BroadcastSent confirms send-broadcast.
type BroadcastSent struct {
	ExamID         string `json:"examId"`
	RecipientCount int    `json:"recipientCount"`
}

// ModerationResult confirms kick, block and restore. Success is always true.
type ModerationResult struct {
	StudentID string `json:"studentId"`
	Success   bool   `json:"success"`
}

// StatsUpdate answers get-stats.
type StatsUpdate struct {
	ExamID         string `json:"examId"`
	ActiveStudents int    `json:"activeStudents"`
	Timestamp      string `json:"timestamp"`
}
