package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/middleware"
	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/response"
	"github.com/invigil/proctor-backend/internal/service"
	"github.com/invigil/proctor-backend/internal/validator"
)

// ChatHandler exposes the per-attempt chat channel to both sides.
type ChatHandler struct {
	attemptService *service.AttemptService
	chatService    *service.ChatService
	log            zerolog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(attemptService *service.AttemptService, chatService *service.ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		attemptService: attemptService,
		chatService:    chatService,
		log:            log.With().Str("component", "chat_handler").Logger(),
	}
}

// StudentSend posts a message from the attempt's owner. A blocked chat
// rejects the message with a dedicated error code.
func (h *ChatHandler) StudentSend(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := h.attemptService.GetOwned(c.Request.Context(), attemptID, claims.UserID); err != nil {
		failFromErr(c, err)
		return
	}

	msg, err := h.chatService.Send(c.Request.Context(), attemptID, model.ChatSenderStudent, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			response.Fail(c, http.StatusForbidden, response.ErrChatBlocked)
			return
		}
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, msg)
}

// StudentGet returns the attempt's chat log for its owner and marks the
// proctor's messages as read.
func (h *ChatHandler) StudentGet(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	if _, err := h.attemptService.GetOwned(c.Request.Context(), attemptID, claims.UserID); err != nil {
		failFromErr(c, err)
		return
	}

	view, err := h.chatService.Get(c.Request.Context(), attemptID, model.ChatSenderStudent, true)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// AdminSend posts a proctor message. The block gate never applies here.
func (h *ChatHandler) AdminSend(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	msg, err := h.chatService.Send(c.Request.Context(), attemptID, model.ChatSenderAdmin, req.Message)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, msg)
}

// AdminGet returns the chat log from the proctor's side and marks the
// student's messages as read.
func (h *ChatHandler) AdminGet(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	view, err := h.chatService.Get(c.Request.Context(), attemptID, model.ChatSenderAdmin, true)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SetBlocked toggles the one-way chat gate for an attempt.
func (h *ChatHandler) SetBlocked(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SetChatBlockedRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.chatService.SetBlocked(c.Request.Context(), attemptID, *req.Blocked); err != nil {
		failFromErr(c, err)
		return
	}

	h.log.Info().
		Str("attempt_id", attemptID.String()).
		Bool("blocked", *req.Blocked).
		Msg("chat block updated")

	response.Success(c, http.StatusOK, gin.H{"chat_blocked": *req.Blocked})
}

// SendWarning delivers a proctor warning through the chat channel. The
// warning prefix lets clients render it distinctly, and warnings pass the
// block gate by construction.
func (h *ChatHandler) SendWarning(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SendWarningRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	msg, err := h.chatService.Warn(c.Request.Context(), attemptID, req.Message)
	if err != nil {
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusCreated, msg)
}
