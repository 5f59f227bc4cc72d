package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/middleware"
	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/response"
	"github.com/invigil/proctor-backend/internal/service"
	"github.com/invigil/proctor-backend/internal/validator"
)

// IntegrityHandler receives integrity event reports from the exam client.
type IntegrityHandler struct {
	attemptService   *service.AttemptService
	integrityService *service.IntegrityService
	log              zerolog.Logger
}

// NewIntegrityHandler creates a new IntegrityHandler.
func NewIntegrityHandler(attemptService *service.AttemptService, integrityService *service.IntegrityService, log zerolog.Logger) *IntegrityHandler {
	return &IntegrityHandler{
		attemptService:   attemptService,
		integrityService: integrityService,
		log:              log.With().Str("component", "integrity_handler").Logger(),
	}
}

// RecordViolation increments the named counter on the caller's own attempt.
// Reports arriving after the attempt closed are acknowledged but ignored.
func (h *IntegrityHandler) RecordViolation(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := h.attemptService.GetOwned(c.Request.Context(), attemptID, claims.UserID); err != nil {
		failFromErr(c, err)
		return
	}

	var result *service.IntegrityResult
	var err error
	switch req.Kind {
	case model.ViolationTabSwitch:
		result, err = h.integrityService.RecordTabSwitch(c.Request.Context(), attemptID, req.Details)
	case model.ViolationScreenshot:
		result, err = h.integrityService.RecordScreenshot(c.Request.Context(), attemptID, req.Details)
	default:
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	if err != nil {
		failFromErr(c, err)
		return
	}

	if result.ForcedSubmit {
		h.log.Warn().
			Str("attempt_id", attemptID.String()).
			Str("kind", string(req.Kind)).
			Int("count", result.Count).
			Msg("violation threshold exceeded, attempt force-submitted")
	}

	response.Success(c, http.StatusOK, result)
}
