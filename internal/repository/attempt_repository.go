package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/service"
)

// AttemptRepository is the PostgreSQL implementation of service.AttemptStore.
//
// All lifecycle mutations are single-statement compare-and-swap updates
// guarded by status = 'active', so per-attempt ordering needs no in-process
// locking and concurrent submits resolve to exactly one winner.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, user_id, status, started_at, submitted_at,
	answers, score, total_marks, percentage, result_status,
	COALESCE(submit_trigger, ''), chat_blocked,
	tab_switch_count, screenshot_count, created_at, updated_at`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(
		&a.ID, &a.ExamID, &a.UserID, &a.Status, &a.StartedAt, &a.SubmittedAt,
		&a.Answers, &a.Score, &a.TotalMarks, &a.Percentage, &a.ResultStatus,
		&a.SubmitTrigger, &a.ChatBlocked,
		&a.TabSwitchCount, &a.ScreenshotCount, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	return a, nil
}

// Create inserts a new active attempt. The partial unique index on
// (exam_id, user_id) WHERE status = 'active' makes the single-active-attempt
// invariant hold even under concurrent starts.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, exam_id, user_id, status, started_at, answers, result_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (exam_id, user_id) WHERE status = 'active' DO NOTHING
		 RETURNING created_at, updated_at`,
		a.ID, a.ExamID, a.UserID, a.Status, a.StartedAt, a.Answers, a.ResultStatus,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return service.ErrConflict
	}
	return err
}

// GetByID retrieves one attempt.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	return a, err
}

// List retrieves attempts matching the filter, newest first.
func (r *AttemptRepository) List(ctx context.Context, f service.AttemptFilter) ([]model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE 1=1`
	args := []any{}

	if f.ExamID != uuid.Nil {
		args = append(args, f.ExamID)
		query += fmt.Sprintf(" AND exam_id = $%d", len(args))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY started_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}

// ListActive retrieves all attempts with status = 'active'.
func (r *AttemptRepository) ListActive(ctx context.Context) ([]model.Attempt, error) {
	return r.List(ctx, service.AttemptFilter{Status: model.AttemptStatusActive})
}

// MergeAnswer merges one answer into the JSONB answer map, last-write-wins
// per question, iff the attempt is still active.
func (r *AttemptRepository) MergeAnswer(ctx context.Context, id uuid.UUID, questionID, answer string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET answers = answers || jsonb_build_object($2::text, $3::text),
		     updated_at = NOW()
		 WHERE id = $1 AND status = 'active'`,
		id, questionID, answer,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Finalize performs the active → terminal CAS. The winner receives the
// answers frozen at transition time; a loser gets ok=false.
func (r *AttemptRepository) Finalize(ctx context.Context, id uuid.UUID, status model.AttemptStatus, trigger model.SubmitTrigger, submittedAt time.Time) (map[string]string, bool, error) {
	var answers map[string]string
	err := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $2, submit_trigger = $3, submitted_at = $4, updated_at = NOW()
		 WHERE id = $1 AND status = 'active'
		 RETURNING answers`,
		id, status, trigger, submittedAt,
	).Scan(&answers)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if answers == nil {
		answers = map[string]string{}
	}
	return answers, true, nil
}

// SetScore records grading output.
func (r *AttemptRepository) SetScore(ctx context.Context, id uuid.UUID, score, totalMarks, percentage float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts
		 SET score = $2, total_marks = $3, percentage = $4, updated_at = NOW()
		 WHERE id = $1`,
		id, score, totalMarks, percentage,
	)
	return err
}

// IncrementViolation bumps one violation counter iff the attempt is active.
// active=false (with no error) reports a benign late event on a terminal
// attempt; a missing attempt is ErrNotFound.
func (r *AttemptRepository) IncrementViolation(ctx context.Context, id uuid.UUID, kind model.ViolationKind) (int, bool, error) {
	var column string
	switch kind {
	case model.ViolationTabSwitch:
		column = "tab_switch_count"
	case model.ViolationScreenshot:
		column = "screenshot_count"
	default:
		return 0, false, fmt.Errorf("unknown violation kind %q", kind)
	}

	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET `+column+` = `+column+` + 1, updated_at = NOW()
		 WHERE id = $1 AND status = 'active'
		 RETURNING `+column,
		id,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM attempts WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return 0, false, err
		}
		if !exists {
			return 0, false, service.ErrNotFound
		}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// SetResultStatus toggles draft/published visibility.
func (r *AttemptRepository) SetResultStatus(ctx context.Context, id uuid.UUID, rs model.ResultStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts SET result_status = $2, updated_at = NOW() WHERE id = $1`,
		id, rs,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return service.ErrNotFound
	}
	return nil
}
