package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/model"
)

func newTestAttemptService(t *testing.T) (*AttemptService, *memAttemptStore, *model.Exam, *model.User) {
	t.Helper()

	exam := &model.Exam{
		ID:              uuid.New(),
		Name:            "Algebra Midterm",
		DurationMinutes: 60,
		AnswerKey: map[string]string{
			"q1": "a",
			"q2": "b",
			"q3": "c",
		},
	}
	user := &model.User{ID: 1, Name: "Dewi", Email: "dewi@example.com", Role: model.RoleStudent}

	store := newMemAttemptStore()
	svc := NewAttemptService(store, newMemExamCatalog(exam), newMemUserDirectory(user), zerolog.Nop())
	return svc, store, exam, user
}

func TestStartAttempt(t *testing.T) {
	ctx := context.Background()
	svc, _, exam, user := newTestAttemptService(t)

	attempt, err := svc.Start(ctx, exam.ID, user.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempt.Status != model.AttemptStatusActive {
		t.Errorf("status = %s, want active", attempt.Status)
	}
	if len(attempt.Answers) != 0 {
		t.Errorf("new attempt has %d answers, want 0", len(attempt.Answers))
	}

	t.Run("DuplicateActiveRejected", func(t *testing.T) {
		_, err := svc.Start(ctx, exam.ID, user.ID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("second start err = %v, want ErrConflict", err)
		}
	})

	t.Run("UnknownExamRejected", func(t *testing.T) {
		_, err := svc.Start(ctx, uuid.New(), user.ID)
		if err == nil {
			t.Fatal("start with unknown exam succeeded")
		}
	})

	t.Run("RestartAfterSubmit", func(t *testing.T) {
		if _, err := svc.Submit(ctx, attempt.ID, model.TriggerStudentSubmit, time.Now()); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := svc.Start(ctx, exam.ID, user.ID); err != nil {
			t.Fatalf("restart after submit: %v", err)
		}
	})
}

func TestRecordAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _, exam, user := newTestAttemptService(t)

	attempt, err := svc.Start(ctx, exam.ID, user.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.RecordAnswer(ctx, attempt.ID, user.ID, "q1", "a"); err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if err := svc.RecordAnswer(ctx, attempt.ID, user.ID, "q1", "d"); err != nil {
		t.Fatalf("overwrite answer: %v", err)
	}

	got, err := svc.Get(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Answers["q1"] != "d" {
		t.Errorf("q1 = %q, want last write %q", got.Answers["q1"], "d")
	}

	t.Run("WrongOwnerRejected", func(t *testing.T) {
		err := svc.RecordAnswer(ctx, attempt.ID, 999, "q2", "b")
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})

	t.Run("TerminalAttemptRejected", func(t *testing.T) {
		if _, err := svc.Submit(ctx, attempt.ID, model.TriggerStudentSubmit, time.Now()); err != nil {
			t.Fatalf("submit: %v", err)
		}
		err := svc.RecordAnswer(ctx, attempt.ID, user.ID, "q2", "b")
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("err = %v, want ErrInvalidState", err)
		}
	})
}

func TestSubmitGrades(t *testing.T) {
	ctx := context.Background()
	svc, _, exam, user := newTestAttemptService(t)

	attempt, err := svc.Start(ctx, exam.ID, user.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// Two correct, one wrong.
	for qid, ans := range map[string]string{"q1": "a", "q2": "b", "q3": "x"} {
		if err := svc.RecordAnswer(ctx, attempt.ID, user.ID, qid, ans); err != nil {
			t.Fatalf("record %s: %v", qid, err)
		}
	}

	graded, err := svc.Submit(ctx, attempt.ID, model.TriggerStudentSubmit, time.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if graded.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want submitted", graded.Status)
	}
	if graded.SubmitTrigger != model.TriggerStudentSubmit {
		t.Errorf("trigger = %s, want student_submit", graded.SubmitTrigger)
	}
	if graded.SubmittedAt == nil {
		t.Fatal("submitted_at not set")
	}
	if graded.Score == nil || *graded.Score != 2 {
		t.Errorf("score = %v, want 2", graded.Score)
	}
	if graded.TotalMarks == nil || *graded.TotalMarks != 3 {
		t.Errorf("total_marks = %v, want 3", graded.TotalMarks)
	}
	wantPct := 2.0 / 3.0 * 100
	if graded.Percentage == nil || *graded.Percentage != wantPct {
		t.Errorf("percentage = %v, want %v", graded.Percentage, wantPct)
	}

	t.Run("SecondSubmitRejected", func(t *testing.T) {
		_, err := svc.Submit(ctx, attempt.ID, model.TriggerStudentSubmit, time.Now())
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("err = %v, want ErrInvalidState", err)
		}
	})
}

func TestSubmitClampsSubmittedAt(t *testing.T) {
	ctx := context.Background()
	svc, _, exam, user := newTestAttemptService(t)

	attempt, err := svc.Start(ctx, exam.ID, user.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	graded, err := svc.Submit(ctx, attempt.ID, model.TriggerStudentSubmit, attempt.StartedAt.Add(-time.Hour))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !graded.SubmittedAt.Equal(attempt.StartedAt) {
		t.Errorf("submitted_at = %v, want clamped to started_at %v", graded.SubmittedAt, attempt.StartedAt)
	}
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	svc, store, exam, user := newTestAttemptService(t)

	// Expired: started 90 minutes ago with a 60 minute duration.
	expired := &model.Attempt{
		ID:        uuid.New(),
		ExamID:    exam.ID,
		UserID:    user.ID,
		Status:    model.AttemptStatusActive,
		StartedAt: time.Now().Add(-90 * time.Minute),
		Answers:   map[string]string{"q1": "a"},
	}
	if err := store.Create(ctx, expired); err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	// Fresh: same exam, different student, still within its window.
	fresh := &model.Attempt{
		ID:        uuid.New(),
		ExamID:    exam.ID,
		UserID:    2,
		Status:    model.AttemptStatusActive,
		StartedAt: time.Now().Add(-5 * time.Minute),
		Answers:   map[string]string{},
	}
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	// Orphan: active attempt whose exam is unknown must be skipped.
	orphan := &model.Attempt{
		ID:        uuid.New(),
		ExamID:    uuid.New(),
		UserID:    3,
		Status:    model.AttemptStatusActive,
		StartedAt: time.Now().Add(-24 * time.Hour),
		Answers:   map[string]string{},
	}
	if err := store.Create(ctx, orphan); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	closed, err := svc.SweepExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed = %d, want 1", closed)
	}

	got, err := svc.Get(ctx, expired.ID)
	if err != nil {
		t.Fatalf("get swept: %v", err)
	}
	if got.Status != model.AttemptStatusSubmitted {
		t.Errorf("swept status = %s, want submitted", got.Status)
	}
	if got.SubmitTrigger != model.TriggerTimeout {
		t.Errorf("swept trigger = %s, want timeout", got.SubmitTrigger)
	}
	wantDeadline := expired.StartedAt.Add(60 * time.Minute)
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(wantDeadline) {
		t.Errorf("submitted_at = %v, want deadline %v", got.SubmittedAt, wantDeadline)
	}

	stillActive, err := svc.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if stillActive.Status != model.AttemptStatusActive {
		t.Errorf("fresh attempt status = %s, want active", stillActive.Status)
	}

	t.Run("ResweepIsNoop", func(t *testing.T) {
		closed, err := svc.SweepExpired(ctx, time.Now())
		if err != nil {
			t.Fatalf("resweep: %v", err)
		}
		if closed != 0 {
			t.Errorf("resweep closed = %d, want 0", closed)
		}
	})
}

func TestSetResultStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, exam, user := newTestAttemptService(t)

	attempt, err := svc.Start(ctx, exam.ID, user.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	graded, err := svc.Submit(ctx, attempt.ID, model.TriggerStudentSubmit, time.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := svc.SetResultStatus(ctx, attempt.ID, model.ResultStatusDraft); err != nil {
		t.Fatalf("set draft: %v", err)
	}
	drafted, err := svc.Get(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// The score itself stays stored; only the student view hides it.
	if drafted.Score == nil || *drafted.Score != *graded.Score {
		t.Errorf("stored score changed on draft: %v", drafted.Score)
	}
	view := drafted.RedactedForStudent()
	if view.Score != nil || view.Percentage != nil || view.TotalMarks != nil {
		t.Error("draft result leaked score to student view")
	}

	if err := svc.SetResultStatus(ctx, attempt.ID, model.ResultStatusPublished); err != nil {
		t.Fatalf("set published: %v", err)
	}
	published, _ := svc.Get(ctx, attempt.ID)
	view = published.RedactedForStudent()
	if view.Score == nil {
		t.Error("published result hidden from student view")
	}

	t.Run("UnknownAttempt", func(t *testing.T) {
		err := svc.SetResultStatus(ctx, uuid.New(), model.ResultStatusPublished)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestGetOwned(t *testing.T) {
	ctx := context.Background()
	svc, _, exam, user := newTestAttemptService(t)

	attempt, err := svc.Start(ctx, exam.ID, user.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.GetOwned(ctx, attempt.ID, user.ID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := svc.GetOwned(ctx, attempt.ID, 999); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger get err = %v, want ErrForbidden", err)
	}
}
