package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/response"
	"github.com/invigil/proctor-backend/internal/service"
	"github.com/invigil/proctor-backend/internal/validator"
)

// AdminHandler is the proctor-facing surface: attempt inspection, the live
// directory, and the administrative overrides.
type AdminHandler struct {
	attemptService *service.AttemptService
	liveService    *service.LiveService
	log            zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(attemptService *service.AttemptService, liveService *service.LiveService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		attemptService: attemptService,
		liveService:    liveService,
		log:            log.With().Str("component", "admin_handler").Logger(),
	}
}

// List returns attempts filtered by the exam_id, user_id, and status query
// parameters. All filters are optional and combine with AND.
func (h *AdminHandler) List(c *gin.Context) {
	var filter service.AttemptFilter

	if raw := c.Query("exam_id"); raw != "" {
		examID, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		filter.ExamID = examID
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.Atoi(raw)
		if err != nil || userID <= 0 {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		filter.UserID = userID
	}
	if raw := c.Query("status"); raw != "" {
		status := model.AttemptStatus(raw)
		switch status {
		case model.AttemptStatusActive, model.AttemptStatusSubmitted, model.AttemptStatusExpired:
			filter.Status = status
		default:
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
	}

	attempts, err := h.attemptService.List(c.Request.Context(), filter)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"attempts": attempts,
		"total":    len(attempts),
	})
}

// Live returns the live session directory grouped by exam.
func (h *AdminHandler) Live(c *gin.Context) {
	groups, total, err := h.liveService.ListLiveAttempts(c.Request.Context(), time.Now())
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exams":        groups,
		"total_active": total,
		"refreshed_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// ForceSubmit terminates a student's attempt on the proctor's authority.
// The attempt is graded exactly as a voluntary submit would be.
func (h *AdminHandler) ForceSubmit(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), attemptID, model.TriggerForced, time.Now())
	if err != nil {
		failFromErr(c, err)
		return
	}

	h.log.Warn().
		Str("attempt_id", attemptID.String()).
		Int("user_id", attempt.UserID).
		Msg("attempt force-submitted by admin")

	response.Success(c, http.StatusOK, attempt)
}

// SetResultStatus publishes or retracts an attempt's graded result.
func (h *AdminHandler) SetResultStatus(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SetResultStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.attemptService.SetResultStatus(c.Request.Context(), attemptID, req.ResultStatus); err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result_status": req.ResultStatus})
}

// Sweep runs one expiry pass immediately, outside the periodic monitor.
func (h *AdminHandler) Sweep(c *gin.Context) {
	closed, err := h.attemptService.SweepExpired(c.Request.Context(), time.Now())
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"closed": closed})
}
