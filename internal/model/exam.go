package model

import (
	"github.com/google/uuid"
)

// Exam is a read-only catalog entry. The proctoring core never mutates it.
type Exam struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	DurationMinutes   int       `json:"duration_minutes"`
	PassingPercentage float64   `json:"passing_percentage"`

	// AnswerKey maps question id → correct answer, one mark per question.
	// Never serialized to students.
	AnswerKey map[string]string `json:"-"`
}
