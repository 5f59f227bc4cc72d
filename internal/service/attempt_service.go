package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/model"
)

// AttemptStore is the persistence contract for attempt records. The pgx
// implementation lives in internal/repository; tests use an in-memory one.
type AttemptStore interface {
	// Create inserts a new active attempt. Returns ErrConflict if an
	// active attempt already exists for the same (exam, user) pair.
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	List(ctx context.Context, f AttemptFilter) ([]model.Attempt, error)
	ListActive(ctx context.Context) ([]model.Attempt, error)

	// MergeAnswer writes one answer (last-write-wins per question) iff the
	// attempt is still active. Returns false when the guard failed.
	MergeAnswer(ctx context.Context, id uuid.UUID, questionID, answer string) (bool, error)

	// Finalize atomically transitions active → terminal. Exactly one caller
	// wins; everyone else gets ok=false. The winner receives the answer map
	// frozen at transition time.
	Finalize(ctx context.Context, id uuid.UUID, status model.AttemptStatus, trigger model.SubmitTrigger, submittedAt time.Time) (answers map[string]string, ok bool, err error)

	// SetScore records grading output on an already-terminal attempt.
	SetScore(ctx context.Context, id uuid.UUID, score, totalMarks, percentage float64) error

	// IncrementViolation bumps the counter for kind iff the attempt is
	// active. active=false signals a benign late event.
	IncrementViolation(ctx context.Context, id uuid.UUID, kind model.ViolationKind) (count int, active bool, err error)

	SetResultStatus(ctx context.Context, id uuid.UUID, rs model.ResultStatus) error
}

// ExamCatalog supplies read-only exam metadata. The core never mutates it.
type ExamCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// UserDirectory supplies read-only user metadata.
type UserDirectory interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// AttemptFilter narrows List results. Zero values mean "any".
type AttemptFilter struct {
	ExamID uuid.UUID
	UserID int
	Status model.AttemptStatus
}

// AttemptService owns the attempt lifecycle: start, answer writes, and the
// single active → terminal transition.
type AttemptService struct {
	store   AttemptStore
	catalog ExamCatalog
	users   UserDirectory
	log     zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(store AttemptStore, catalog ExamCatalog, users UserDirectory, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		store:   store,
		catalog: catalog,
		users:   users,
		log:     log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start creates an active attempt for (exam, user). At most one active
// attempt may exist per pair; a duplicate start fails with ErrConflict.
func (s *AttemptService) Start(ctx context.Context, examID uuid.UUID, userID int) (*model.Attempt, error) {
	if _, err := s.catalog.GetByID(ctx, examID); err != nil {
		return nil, fmt.Errorf("resolve exam: %w", err)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	attempt := &model.Attempt{
		ID:           uuid.New(),
		ExamID:       examID,
		UserID:       userID,
		Status:       model.AttemptStatusActive,
		StartedAt:    time.Now(),
		Answers:      map[string]string{},
		ResultStatus: model.ResultStatusPublished,
	}

	if err := s.store.Create(ctx, attempt); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Int("user_id", userID).
		Msg("Attempt started")

	return attempt, nil
}

// Get returns one attempt by id.
func (s *AttemptService) Get(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return s.store.GetByID(ctx, id)
}

// GetOwned returns the attempt iff it belongs to userID.
func (s *AttemptService) GetOwned(ctx context.Context, id uuid.UUID, userID int) (*model.Attempt, error) {
	attempt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, ErrForbidden
	}
	return attempt, nil
}

// List returns attempts matching the filter.
func (s *AttemptService) List(ctx context.Context, f AttemptFilter) ([]model.Attempt, error) {
	return s.store.List(ctx, f)
}

// RecordAnswer merges one answer into the attempt's answer map,
// last-write-wins per question. Rejected once the attempt is terminal.
func (s *AttemptService) RecordAnswer(ctx context.Context, attemptID uuid.UUID, userID int, questionID, answer string) error {
	attempt, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.UserID != userID {
		return ErrForbidden
	}

	ok, err := s.store.MergeAnswer(ctx, attemptID, questionID, answer)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidState
	}
	return nil
}

// Submit transitions the attempt to submitted and grades it. submittedAt
// pins the recorded submission time: the deadline monitor passes the
// computed deadline, everyone else passes the zero value meaning "now".
// Exactly one concurrent caller succeeds; the rest observe ErrInvalidState.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, trigger model.SubmitTrigger, submittedAt time.Time) (*model.Attempt, error) {
	attempt, err := s.store.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, ErrInvalidState
	}

	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	// Invariant: submittedAt never precedes startedAt.
	if submittedAt.Before(attempt.StartedAt) {
		submittedAt = attempt.StartedAt
	}

	answers, won, err := s.store.Finalize(ctx, attemptID, model.AttemptStatusSubmitted, trigger, submittedAt)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent submit or the deadline monitor got there first.
		return nil, ErrInvalidState
	}

	score, total, pct := s.grade(ctx, attempt.ExamID, answers)
	if err := s.store.SetScore(ctx, attemptID, score, total, pct); err != nil {
		return nil, fmt.Errorf("persist score: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("trigger", string(trigger)).
		Float64("score", score).
		Float64("percentage", pct).
		Msg("Attempt submitted")

	return s.store.GetByID(ctx, attemptID)
}

// grade scores the frozen answers against the exam's answer key, one mark
// per question. An unresolvable exam yields a zero score rather than a
// failed submission.
func (s *AttemptService) grade(ctx context.Context, examID uuid.UUID, answers map[string]string) (score, total, pct float64) {
	exam, err := s.catalog.GetByID(ctx, examID)
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Grading skipped, exam unresolved")
		return 0, 0, 0
	}

	correct := 0
	for qid, key := range exam.AnswerKey {
		if ans, ok := answers[qid]; ok && ans == key {
			correct++
		}
	}

	total = float64(len(exam.AnswerKey))
	score = float64(correct)
	if total > 0 {
		pct = score / total * 100
	}
	return score, total, pct
}

// SetResultStatus toggles draft/published result visibility. This is an
// explicit admin action; scores are never recomputed here.
func (s *AttemptService) SetResultStatus(ctx context.Context, attemptID uuid.UUID, rs model.ResultStatus) error {
	if _, err := s.store.GetByID(ctx, attemptID); err != nil {
		return err
	}
	return s.store.SetResultStatus(ctx, attemptID, rs)
}

// SweepExpired force-submits every active attempt whose deadline has
// passed, pinning submitted_at to the deadline instead of the sweep time.
// Per-attempt failures are logged and skipped so one corrupt record cannot
// halt the sweep. Safe to run redundantly: the CAS in Submit makes a
// re-sweep of a just-closed attempt a no-op.
func (s *AttemptService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active attempts: %w", err)
	}

	expired := 0
	for i := range active {
		attempt := &active[i]

		exam, err := s.catalog.GetByID(ctx, attempt.ExamID)
		if err != nil {
			s.log.Warn().Err(err).
				Str("attempt_id", attempt.ID.String()).
				Str("exam_id", attempt.ExamID.String()).
				Msg("Sweep skipping attempt, exam unresolved")
			continue
		}

		deadline := attempt.Deadline(exam.DurationMinutes)
		if !now.After(deadline) {
			continue
		}

		if _, err := s.Submit(ctx, attempt.ID, model.TriggerTimeout, deadline); err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue // Already closed by a racing submit.
			}
			s.log.Error().Err(err).
				Str("attempt_id", attempt.ID.String()).
				Msg("Sweep failed to close attempt")
			continue
		}
		expired++
	}

	return expired, nil
}
