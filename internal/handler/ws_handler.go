package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/middleware"
	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/service"
	ws "github.com/invigil/proctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowlist permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler multiplexes the in-attempt channel: autosaved answers,
// integrity events, chat, and submit over one WebSocket.
type WSHandler struct {
	attemptService   *service.AttemptService
	integrityService *service.IntegrityService
	chatService      *service.ChatService
	log              zerolog.Logger
	upgrader         websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, integrityService *service.IntegrityService, chatService *service.ChatService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService:   attemptService,
		integrityService: integrityService,
		chatService:      chatService,
		log:              log.With().Str("component", "ws_handler").Logger(),
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// AttemptChannel godoc
// WS /ws/v1/student/attempts/:attempt_id/channel
// Upgrades to a WebSocket carrying answers, violations, chat, and submit.
func (h *WSHandler) AttemptChannel(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Ownership and liveness gate the whole channel, not each message.
	attempt, err := h.attemptService.GetOwned(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		ws.WriteError(conn, "attempt not found or not yours")
		return
	}
	if !attempt.IsActive() {
		ws.WriteError(conn, "attempt is no longer active")
		return
	}

	wsLog := h.log.With().
		Int("user_id", claims.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, wsLog, attemptID, claims.UserID, &msg)
		case ws.ActionViolation:
			h.handleViolation(conn, wsLog, attemptID, &msg)
		case ws.ActionChat:
			h.handleChat(conn, wsLog, attemptID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, attemptID)
			return // channel is done once the attempt is terminal
		case ws.ActionPing:
			ws.WriteEvent(conn, ws.EventPong, nil)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAnswer(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID, userID int, msg *ws.RequestPayload) {
	if msg.QuestionID == "" || msg.Answer == "" {
		ws.WriteError(conn, "question_id and answer are required")
		return
	}

	err := h.attemptService.RecordAnswer(context.Background(), attemptID, userID, msg.QuestionID, msg.Answer)
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			ws.WriteError(conn, "attempt is no longer active")
			return
		}
		wsLog.Error().Err(err).Msg("Answer save error")
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteEvent(conn, ws.EventSaved, map[string]string{"question_id": msg.QuestionID})
}

func (h *WSHandler) handleViolation(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID, msg *ws.RequestPayload) {
	kind := model.ViolationKind(msg.Kind)
	if !kind.Valid() {
		ws.WriteError(conn, "unknown violation kind: "+msg.Kind)
		return
	}

	ctx := context.Background()
	var result *service.IntegrityResult
	var err error
	if kind == model.ViolationTabSwitch {
		result, err = h.integrityService.RecordTabSwitch(ctx, attemptID, msg.Details)
	} else {
		result, err = h.integrityService.RecordScreenshot(ctx, attemptID, msg.Details)
	}
	if err != nil {
		wsLog.Error().Err(err).Str("kind", msg.Kind).Msg("Violation record error")
		ws.WriteError(conn, "violation record failed")
		return
	}

	if result.ForcedSubmit {
		ws.WriteEvent(conn, ws.EventForcedSubmit, result)
		return
	}
	if result.Warn {
		ws.WriteEvent(conn, ws.EventWarning, result)
		return
	}
	ws.WriteEvent(conn, ws.EventSaved, result)
}

func (h *WSHandler) handleChat(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID, msg *ws.RequestPayload) {
	if msg.Message == "" {
		ws.WriteError(conn, "message is required")
		return
	}

	sent, err := h.chatService.Send(context.Background(), attemptID, model.ChatSenderStudent, msg.Message)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			ws.WriteError(conn, "chat is blocked by the proctor")
			return
		}
		wsLog.Error().Err(err).Msg("Chat send error")
		ws.WriteError(conn, "chat send failed")
		return
	}

	ws.WriteEvent(conn, ws.EventChatSent, sent)
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, attemptID uuid.UUID) {
	attempt, err := h.attemptService.Submit(context.Background(), attemptID, model.TriggerStudentSubmit, time.Now())
	if err != nil {
		if errors.Is(err, service.ErrInvalidState) {
			ws.WriteError(conn, "attempt was already closed")
			return
		}
		wsLog.Error().Err(err).Msg("Submit error")
		ws.WriteError(conn, "submit failed")
		return
	}

	wsLog.Info().Msg("Attempt submitted over WebSocket")

	ws.WriteEvent(conn, ws.EventGraded, attempt.RedactedForStudent())
}
