package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/middleware"
	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/response"
	"github.com/invigil/proctor-backend/internal/service"
	"github.com/invigil/proctor-backend/internal/validator"
)

// AttemptHandler is the student-facing surface of the attempt store.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// Start opens a new attempt for the authenticated student on the given exam.
// A second concurrent start on the same exam loses with a 409.
func (h *AttemptHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	h.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Int("user_id", claims.UserID).
		Msg("attempt started")

	response.Success(c, http.StatusCreated, attempt.RedactedForStudent())
}

// Get returns the caller's own attempt. Scores are withheld until the
// result is published.
func (h *AttemptHandler) Get(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetOwned(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, attempt.RedactedForStudent())
}

// RecordAnswer merges one question's answer into the caller's active attempt.
func (h *AttemptHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.RecordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.attemptService.RecordAnswer(c.Request.Context(), attemptID, claims.UserID, req.QuestionID, req.Answer)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// Submit finalizes the caller's attempt, grades it, and returns the result
// view. Submitting twice yields a 409 on the second call.
func (h *AttemptHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	// Ownership check before the terminal transition; Submit itself is
	// caller-agnostic because the workers reuse it.
	if _, err := h.attemptService.GetOwned(c.Request.Context(), attemptID, claims.UserID); err != nil {
		failFromErr(c, err)
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), attemptID, model.TriggerStudentSubmit, time.Now())
	if err != nil {
		failFromErr(c, err)
		return
	}

	h.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("user_id", claims.UserID).
		Msg("attempt submitted")

	response.Success(c, http.StatusOK, attempt.RedactedForStudent())
}
