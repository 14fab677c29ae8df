package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/secure-exam/relay/internal/db"
	"github.com/secure-exam/relay/internal/model"
)

var auditKinds = []model.AuditKind{
	model.AuditJoin,
	model.AuditLeave,
	model.AuditDisconnect,
	model.AuditViolation,
	model.AuditKick,
	model.AuditBlock,
	model.AuditRestore,
	model.AuditBroadcast,
}

func newTestRepo(t *testing.T) *EventRepository {
	t.Helper()
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })
	return NewEventRepository(testDB)
}

// **Property 1: appended events read back intact**
// For any event with a non-empty exam id, ListByExam returns it with every
// field preserved and the id assigned by Append.
func TestEventRoundTripProperty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	nonEmptyString := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 40
	})

	properties.Property("appended event is listed unchanged", prop.ForAll(
		func(examID, studentID, detail string, kindIdx int, offset int) bool {
			examID = "exam-" + examID
			in := &model.AuditEvent{
				ExamID:       examID,
				Kind:         auditKinds[kindIdx],
				StudentID:    studentID,
				ConnectionID: "conn-" + studentID,
				Detail:       detail,
				CreatedAt:    base.Add(time.Duration(offset) * time.Second),
			}
			if err := repo.Append(ctx, in); err != nil {
				t.Logf("append failed: %v", err)
				return false
			}
			if in.ID == 0 {
				return false
			}

			events, err := repo.ListByExam(ctx, examID, 1)
			if err != nil || len(events) != 1 {
				t.Logf("list failed: %v (%d events)", err, len(events))
				return false
			}
			out := events[0]
			return out.ID == in.ID &&
				out.ExamID == in.ExamID &&
				out.Kind == in.Kind &&
				out.StudentID == in.StudentID &&
				out.ConnectionID == in.ConnectionID &&
				out.Detail == in.Detail &&
				out.CreatedAt.Equal(in.CreatedAt)
		},
		nonEmptyString,
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, len(auditKinds)-1),
		gen.IntRange(0, 86400),
	))

	properties.TestingRun(t)
}

// **Property 2: listing is newest first, bounded and scoped to the exam**
func TestListOrderingProperty(t *testing.T) {
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("list returns the last min(limit, n) events in reverse order", prop.ForAll(
		func(n, other, limit int) bool {
			repo := newTestRepo(t)

			var ids []int64
			for i := 0; i < n; i++ {
				e := &model.AuditEvent{ExamID: "target", Kind: model.AuditViolation}
				if err := repo.Append(ctx, e); err != nil {
					return false
				}
				ids = append(ids, e.ID)

				if i < other {
					if err := repo.Append(ctx, &model.AuditEvent{ExamID: "noise", Kind: model.AuditJoin}); err != nil {
						return false
					}
				}
			}

			events, err := repo.ListByExam(ctx, "target", limit)
			if err != nil {
				return false
			}

			want := n
			if limit < want {
				want = limit
			}
			if len(events) != want {
				return false
			}
			for i, e := range events {
				if e.ExamID != "target" || e.ID != ids[n-1-i] {
					return false
				}
			}

			count, err := repo.CountByExam(ctx, "target")
			return err == nil && count == n
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 10),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

func TestAppend_RequiresExamID(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Append(context.Background(), &model.AuditEvent{Kind: model.AuditJoin})
	if !errors.Is(err, model.ErrExamIDRequired) {
		t.Errorf("expected ErrExamIDRequired, got %v", err)
	}
}

func TestAppend_DefaultsCreatedAt(t *testing.T) {
	repo := newTestRepo(t)
	before := time.Now().Add(-time.Second)

	e := &model.AuditEvent{ExamID: "e1", Kind: model.AuditJoin}
	if err := repo.Append(context.Background(), e); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if e.CreatedAt.Before(before) {
		t.Errorf("CreatedAt not set: %v", e.CreatedAt)
	}
}

func TestListByExam_EmptyAndDefaultLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	events, err := repo.ListByExam(ctx, "nothing", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if events == nil || len(events) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", events)
	}

	for i := 0; i < DefaultListLimit+5; i++ {
		if err := repo.Append(ctx, &model.AuditEvent{ExamID: "busy", Kind: model.AuditViolation}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	events, err = repo.ListByExam(ctx, "busy", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != DefaultListLimit {
		t.Errorf("expected %d events, got %d", DefaultListLimit, len(events))
	}
}

func TestDeleteBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		e := &model.AuditEvent{ExamID: "e1", Kind: model.AuditJoin, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	n, err := repo.DeleteBefore(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	count, _ := repo.CountByExam(ctx, "e1")
	if count != 2 {
		t.Errorf("expected 2 remaining, got %d", count)
	}
}
