package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/secure-exam/relay/internal/model"
)

// DefaultListLimit bounds ListByExam when the caller passes no limit.
const DefaultListLimit = 100

// MaxListLimit is the largest page ListByExam will return.
const MaxListLimit = 1000

// EventRepository provides data access for relay audit events.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts an event and sets its ID. A zero CreatedAt is set to now.
func (r *EventRepository) Append(ctx context.Context, event *model.AuditEvent) error {
	if event.ExamID == "" {
		return model.ErrExamIDRequired
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.CreatedAt = event.CreatedAt.UTC()

	query := `
		INSERT INTO relay_events (exam_id, kind, student_id, socket_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.ExamID,
		string(event.Kind),
		event.StudentID,
		event.ConnectionID,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event id: %w", err)
	}
	event.ID = id

	return nil
}

// ListByExam returns the most recent events of an exam, newest first.
// A non-positive limit means DefaultListLimit.
func (r *EventRepository) ListByExam(ctx context.Context, examID string, limit int) ([]*model.AuditEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, exam_id, kind, student_id, socket_id, detail, created_at
		FROM relay_events
		WHERE exam_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, examID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := make([]*model.AuditEvent, 0)
	for rows.Next() {
		event := &model.AuditEvent{}
		var kind string
		var studentID, socketID, detail sql.NullString

		err := rows.Scan(
			&event.ID,
			&event.ExamID,
			&kind,
			&studentID,
			&socketID,
			&detail,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event.Kind = model.AuditKind(kind)
		event.StudentID = studentID.String
		event.ConnectionID = socketID.String
		event.Detail = detail.String
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// CountByExam returns the number of events recorded for an exam.
func (r *EventRepository) CountByExam(ctx context.Context, examID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relay_events WHERE exam_id = ?`, examID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// DeleteBefore removes events created before cutoff and returns how many
// were removed.
func (r *EventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM relay_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
