package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/invigil/proctor-backend/internal/middleware"
	"github.com/invigil/proctor-backend/internal/model"
	"github.com/invigil/proctor-backend/internal/response"
	"github.com/invigil/proctor-backend/internal/service"
	"github.com/invigil/proctor-backend/internal/validator"
)

// AuthHandler handles login and session teardown for both caller classes.
type AuthHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login authenticates an email/password pair and issues a JWT. Students are
// additionally bound to a single active session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.log.Warn().Err(err).Str("email", req.Email).Msg("login rejected")
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout clears the caller's session registry entry. Tokens themselves stay
// valid until expiry; only the single-session lock is released.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims.UserID); err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("logout failed")
		failFromErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// ResetSession clears a student's session lock on the admin's authority,
// for students stuck behind a lost or crashed device.
func (h *AuthHandler) ResetSession(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetSession(c.Request.Context(), userID); err != nil {
		failFromErr(c, err)
		return
	}

	h.log.Info().Int("user_id", userID).Msg("student session reset by admin")

	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
