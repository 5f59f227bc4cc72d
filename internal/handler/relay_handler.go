package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/middleware"
	"github.com/invigil/proctor-backend/internal/response"
	"github.com/invigil/proctor-backend/internal/service"
)

// maxChunkBytes caps a single pushed frame. Proctoring frames are JPEG
// stills, not video; anything larger is a misbehaving client.
const maxChunkBytes = 2 << 20

// RelayHandler moves proctoring stream chunks between student and proctor.
type RelayHandler struct {
	attemptService *service.AttemptService
	relayService   *service.RelayService
	log            zerolog.Logger
}

// NewRelayHandler creates a new RelayHandler.
func NewRelayHandler(attemptService *service.AttemptService, relayService *service.RelayService, log zerolog.Logger) *RelayHandler {
	return &RelayHandler{
		attemptService: attemptService,
		relayService:   relayService,
		log:            log.With().Str("component", "relay_handler").Logger(),
	}
}

// PushChunk stores the latest frame for one of the caller's streams. The
// frame arrives as a multipart form file under the "chunk" field.
func (h *RelayHandler) PushChunk(c *gin.Context) {
	claims := middleware.GetClaims(c)
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	stream, err := service.ParseStreamType(c.Param("stream_type"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if _, err := h.attemptService.GetOwned(c.Request.Context(), attemptID, claims.UserID); err != nil {
		failFromErr(c, err)
		return
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	if fileHeader.Size > maxChunkBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrInvalidPayload)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	defer file.Close()

	chunk, err := io.ReadAll(file)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if err := h.relayService.PushChunk(c.Request.Context(), attemptID, stream, chunk); err != nil {
		h.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("push chunk failed")
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"stored": true})
}

// PullChunk serves the latest stored frame for an attempt's stream. A
// stream that never pushed, or whose last frame expired, yields a 404.
func (h *RelayHandler) PullChunk(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	stream, err := service.ParseStreamType(c.Param("stream_type"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	chunk, err := h.relayService.PullChunk(c.Request.Context(), attemptID, stream)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNoStreamData)
			return
		}
		failFromErr(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", chunk)
}
