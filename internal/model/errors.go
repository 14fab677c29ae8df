package model

import "errors"

var (
	// ErrExamIDRequired is returned when a request is missing the exam identifier.
	ErrExamIDRequired = errors.New("exam id is required")

	// ErrAuditDisabled is returned when the audit trail is queried but no database is configured.
	ErrAuditDisabled = errors.New("audit trail disabled")

	// ErrConnectionClosed is returned when sending to a connection that is gone.
	ErrConnectionClosed = errors.New("connection closed")
)
