package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/model"
)

// LiveAttempt is one active student as shown in the monitoring view.
type LiveAttempt struct {
	AttemptID       string    `json:"attempt_id"`
	UserID          int       `json:"user_id"`
	UserName        string    `json:"user_name"`
	UserEmail       string    `json:"user_email"`
	StartedAt       time.Time `json:"started_at"`
	TimeRemaining   string    `json:"time_remaining"` // mm:ss
	Progress        int       `json:"progress"`       // 0..100
	AnsweredCount   int       `json:"answered_count"`
	TabSwitchCount  int       `json:"tab_switch_count"`
	ScreenshotCount int       `json:"screenshot_count"`
	ChatBlocked     bool      `json:"chat_blocked"`
}

// LiveExamGroup groups active attempts by exam.
type LiveExamGroup struct {
	ExamID      string        `json:"exam_id"`
	ExamName    string        `json:"exam_name"`
	ActiveUsers []LiveAttempt `json:"active_users"`
}

// LiveService derives the live session directory: a read-only aggregation
// of all currently active attempts, recomputed from the attempt store on
// every call. No independent source of truth, so no staleness to manage.
type LiveService struct {
	store   AttemptStore
	catalog ExamCatalog
	users   UserDirectory
	log     zerolog.Logger
}

// NewLiveService creates a new LiveService.
func NewLiveService(store AttemptStore, catalog ExamCatalog, users UserDirectory, log zerolog.Logger) *LiveService {
	return &LiveService{
		store:   store,
		catalog: catalog,
		users:   users,
		log:     log.With().Str("component", "live_service").Logger(),
	}
}

// ListLiveAttempts returns every active attempt joined with exam and user
// metadata, grouped by exam. Attempts whose exam cannot be resolved are
// reported and skipped, never fatal.
func (s *LiveService) ListLiveAttempts(ctx context.Context, now time.Time) ([]LiveExamGroup, int, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list active attempts: %w", err)
	}

	exams := make(map[uuid.UUID]*model.Exam)
	groups := make(map[uuid.UUID]*LiveExamGroup)
	order := make([]uuid.UUID, 0)
	total := 0

	for i := range active {
		attempt := &active[i]

		exam, ok := exams[attempt.ExamID]
		if !ok {
			exam, err = s.catalog.GetByID(ctx, attempt.ExamID)
			if err != nil {
				s.log.Warn().Err(err).
					Str("attempt_id", attempt.ID.String()).
					Str("exam_id", attempt.ExamID.String()).
					Msg("Live view skipping attempt, exam unresolved")
				continue
			}
			exams[attempt.ExamID] = exam
		}

		entry := LiveAttempt{
			AttemptID:       attempt.ID.String(),
			UserID:          attempt.UserID,
			StartedAt:       attempt.StartedAt,
			AnsweredCount:   len(attempt.Answers),
			TabSwitchCount:  attempt.TabSwitchCount,
			ScreenshotCount: attempt.ScreenshotCount,
			ChatBlocked:     attempt.ChatBlocked,
		}

		// User metadata is decoration; a missing directory entry does not
		// hide the attempt from the monitor.
		if user, err := s.users.GetByID(ctx, attempt.UserID); err == nil {
			entry.UserName = user.Name
			entry.UserEmail = user.Email
		}

		duration := time.Duration(exam.DurationMinutes) * time.Minute
		elapsed := now.Sub(attempt.StartedAt)
		remaining := duration - elapsed
		if remaining < 0 {
			remaining = 0
		}
		entry.TimeRemaining = formatRemaining(remaining)

		progress := 0
		if duration > 0 {
			progress = int(float64(elapsed) / float64(duration) * 100)
			if progress > 100 {
				progress = 100
			}
		}
		entry.Progress = progress

		group, ok := groups[attempt.ExamID]
		if !ok {
			group = &LiveExamGroup{
				ExamID:   attempt.ExamID.String(),
				ExamName: exam.Name,
			}
			groups[attempt.ExamID] = group
			order = append(order, attempt.ExamID)
		}
		group.ActiveUsers = append(group.ActiveUsers, entry)
		total++
	}

	result := make([]LiveExamGroup, 0, len(order))
	for _, id := range order {
		result = append(result, *groups[id])
	}
	return result, total, nil
}

// formatRemaining renders a non-negative duration as mm:ss.
func formatRemaining(d time.Duration) string {
	secs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
