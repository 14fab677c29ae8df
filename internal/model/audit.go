package model

import "time"

// AuditKind classifies a relay audit record.
type AuditKind string

const (
	AuditJoin       AuditKind = "join"
	AuditLeave      AuditKind = "leave"
	AuditDisconnect AuditKind = "disconnect"
	AuditViolation  AuditKind = "violation"
	AuditKick       AuditKind = "kick"
	AuditBlock      AuditKind = "block"
	AuditRestore    AuditKind = "restore"
	AuditBroadcast  AuditKind = "broadcast"
)

// AuditEvent is one row of the local relay audit trail.
type AuditEvent struct {
	ID           int64     `json:"id"`
	ExamID       string    `json:"examId"`
	Kind         AuditKind `json:"kind"`
	StudentID    string    `json:"studentId,omitempty"`
	ConnectionID string    `json:"socketId,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
