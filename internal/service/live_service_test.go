package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/model"
)

func TestListLiveAttempts(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	algebra := &model.Exam{ID: uuid.New(), Name: "Algebra", DurationMinutes: 60}
	history := &model.Exam{ID: uuid.New(), Name: "History", DurationMinutes: 30}
	catalog := newMemExamCatalog(algebra, history)
	users := newMemUserDirectory(
		&model.User{ID: 1, Name: "Dewi", Email: "dewi@example.com", Role: model.RoleStudent},
		&model.User{ID: 2, Name: "Raka", Email: "raka@example.com", Role: model.RoleStudent},
	)

	store := newMemAttemptStore()
	seed := []*model.Attempt{
		{
			ID: uuid.New(), ExamID: algebra.ID, UserID: 1,
			Status: model.AttemptStatusActive, StartedAt: now.Add(-10 * time.Minute),
			Answers: map[string]string{"q1": "a", "q2": "b"}, TabSwitchCount: 2,
		},
		{
			ID: uuid.New(), ExamID: algebra.ID, UserID: 2,
			Status: model.AttemptStatusActive, StartedAt: now.Add(-55 * time.Minute),
			Answers: map[string]string{}, ChatBlocked: true,
		},
		// Terminal attempts never show up on the monitor.
		{
			ID: uuid.New(), ExamID: history.ID, UserID: 3,
			Status: model.AttemptStatusSubmitted, StartedAt: now.Add(-2 * time.Hour),
			Answers: map[string]string{},
		},
		// Unresolvable exam: skipped, not fatal.
		{
			ID: uuid.New(), ExamID: uuid.New(), UserID: 4,
			Status: model.AttemptStatusActive, StartedAt: now,
			Answers: map[string]string{},
		},
	}
	for _, a := range seed {
		if err := store.Create(ctx, a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := NewLiveService(store, catalog, users, zerolog.Nop())
	groups, total, err := svc.ListLiveAttempts(ctx, now)
	if err != nil {
		t.Fatalf("list live: %v", err)
	}

	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}

	group := groups[0]
	if group.ExamName != "Algebra" {
		t.Errorf("exam name = %q", group.ExamName)
	}
	if len(group.ActiveUsers) != 2 {
		t.Fatalf("active users = %d, want 2", len(group.ActiveUsers))
	}

	byUser := map[int]LiveAttempt{}
	for _, entry := range group.ActiveUsers {
		byUser[entry.UserID] = entry
	}

	first := byUser[1]
	if first.UserName != "Dewi" || first.UserEmail != "dewi@example.com" {
		t.Errorf("user metadata not joined: %+v", first)
	}
	if first.AnsweredCount != 2 {
		t.Errorf("answered = %d, want 2", first.AnsweredCount)
	}
	if first.TimeRemaining != "50:00" {
		t.Errorf("time remaining = %q, want 50:00", first.TimeRemaining)
	}
	if first.Progress != 16 {
		t.Errorf("progress = %d, want 16", first.Progress)
	}
	if first.TabSwitchCount != 2 {
		t.Errorf("tab switches = %d, want 2", first.TabSwitchCount)
	}

	second := byUser[2]
	if second.TimeRemaining != "5:00" {
		t.Errorf("time remaining = %q, want 5:00", second.TimeRemaining)
	}
	if !second.ChatBlocked {
		t.Error("chat blocked flag lost")
	}
}

func TestListLiveAttemptsClampsOverrun(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	exam := &model.Exam{ID: uuid.New(), Name: "Biology", DurationMinutes: 30}
	store := newMemAttemptStore()
	overrun := &model.Attempt{
		ID: uuid.New(), ExamID: exam.ID, UserID: 1,
		Status: model.AttemptStatusActive, StartedAt: now.Add(-45 * time.Minute),
		Answers: map[string]string{},
	}
	if err := store.Create(ctx, overrun); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewLiveService(store, newMemExamCatalog(exam), newMemUserDirectory(), zerolog.Nop())
	groups, _, err := svc.ListLiveAttempts(ctx, now)
	if err != nil {
		t.Fatalf("list live: %v", err)
	}

	// An attempt the sweep has not caught yet shows 0:00, never negative.
	entry := groups[0].ActiveUsers[0]
	if entry.TimeRemaining != "0:00" {
		t.Errorf("time remaining = %q, want 0:00", entry.TimeRemaining)
	}
	if entry.Progress != 100 {
		t.Errorf("progress = %d, want capped 100", entry.Progress)
	}
}

func TestFormatRemaining(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{5 * time.Second, "0:05"},
		{65 * time.Second, "1:05"},
		{10 * time.Minute, "10:00"},
		{90 * time.Minute, "90:00"},
	}
	for _, tc := range cases {
		if got := formatRemaining(tc.d); got != tc.want {
			t.Errorf("formatRemaining(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
