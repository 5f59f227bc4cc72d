package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt states.
type AttemptStatus string

const (
	AttemptStatusActive    AttemptStatus = "active"
	AttemptStatusSubmitted AttemptStatus = "submitted"
	AttemptStatusExpired   AttemptStatus = "expired"
)

// IsTerminal reports whether no further mutation of the attempt is permitted.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusExpired
}

// SubmitTrigger identifies what caused an attempt's terminal transition.
type SubmitTrigger string

const (
	// TriggerStudentSubmit is an explicit submit by the student.
	TriggerStudentSubmit SubmitTrigger = "student_submit"
	// TriggerTimeout means the deadline monitor closed the attempt. The
	// submission time is pinned to the computed deadline, not the sweep time.
	TriggerTimeout SubmitTrigger = "timeout"
	// TriggerForced means the attempt was closed over the student's head,
	// by the integrity tracker crossing its threshold or by an admin.
	TriggerForced SubmitTrigger = "forced"
)

// ResultStatus gates result visibility to the student.
type ResultStatus string

const (
	ResultStatusDraft     ResultStatus = "draft"
	ResultStatusPublished ResultStatus = "published"
)

// Attempt is one student's timed instance of taking one exam.
//
// Status is the single source of truth for liveness; the is_active field of
// the original data model is derived, never stored.
type Attempt struct {
	ID     uuid.UUID     `json:"id"`
	ExamID uuid.UUID     `json:"exam_id"`
	UserID int           `json:"user_id"`
	Status AttemptStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// Answers maps question id → submitted answer. Grows only while active.
	Answers map[string]string `json:"answers"`

	Score         *float64      `json:"score,omitempty"`
	TotalMarks    *float64      `json:"total_marks,omitempty"`
	Percentage    *float64      `json:"percentage,omitempty"`
	ResultStatus  ResultStatus  `json:"result_status"`
	SubmitTrigger SubmitTrigger `json:"submit_trigger,omitempty"`

	ChatBlocked bool `json:"chat_blocked"`

	TabSwitchCount  int `json:"tab_switch_count"`
	ScreenshotCount int `json:"screenshot_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive derives the legacy boolean from status.
func (a *Attempt) IsActive() bool {
	return a.Status == AttemptStatusActive
}

// Deadline returns the wall-clock moment the attempt must be closed,
// given the owning exam's duration in minutes.
func (a *Attempt) Deadline(durationMinutes int) time.Time {
	return a.StartedAt.Add(time.Duration(durationMinutes) * time.Minute)
}

// RedactedForStudent returns a copy safe to show the attempt's owner.
// Scores stay hidden until the result is published.
func (a Attempt) RedactedForStudent() Attempt {
	if a.ResultStatus != ResultStatusPublished {
		a.Score = nil
		a.TotalMarks = nil
		a.Percentage = nil
	}
	return a
}

// StartAttemptRequest is the payload for a student starting an exam.
type StartAttemptRequest struct{}

// RecordAnswerRequest is the payload for saving a single answer.
type RecordAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,min=1,max=64"`
	Answer     string `json:"answer" binding:"required"`
}

// SetResultStatusRequest toggles draft/published result visibility.
type SetResultStatusRequest struct {
	ResultStatus ResultStatus `json:"result_status" binding:"required,oneof=draft published"`
}
