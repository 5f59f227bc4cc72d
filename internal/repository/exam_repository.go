package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/service"
)

// ExamRepository is the PostgreSQL implementation of service.ExamCatalog.
// The proctoring core only ever reads from it.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves one exam with its answer key.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, duration_minutes, passing_percentage, answer_key
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.DurationMinutes, &e.PassingPercentage, &e.AnswerKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.AnswerKey == nil {
		e.AnswerKey = map[string]string{}
	}
	return e, nil
}
