package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/invigil/proctor-backend/internal/config"
	"github.com/invigil/proctor-backend/internal/handler"
	"github.com/invigil/proctor-backend/internal/middleware"
	"github.com/invigil/proctor-backend/internal/response"
	"github.com/invigil/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Attempt   *handler.AttemptHandler
	Integrity *handler.IntegrityHandler
	Chat      *handler.ChatHandler
	Relay     *handler.RelayHandler
	Admin     *handler.AdminHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// The rate limiter is injected so its lifecycle (Stop) is owned by main.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	authLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireStudentJWT(authService), handlers.Auth.Logout)
	}

	// ─── 2. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	{
		studentAPI.POST("/exams/:exam_id/attempts", handlers.Attempt.Start)
		studentAPI.GET("/attempts/:attempt_id", handlers.Attempt.Get)
		studentAPI.POST("/attempts/:attempt_id/answers", handlers.Attempt.RecordAnswer)
		studentAPI.POST("/attempts/:attempt_id/submit", handlers.Attempt.Submit)
		studentAPI.POST("/attempts/:attempt_id/violations", handlers.Integrity.RecordViolation)
		studentAPI.POST("/attempts/:attempt_id/stream/:stream_type", handlers.Relay.PushChunk)
		studentAPI.POST("/attempts/:attempt_id/messages", handlers.Chat.StudentSend)
		studentAPI.GET("/attempts/:attempt_id/messages", handlers.Chat.StudentGet)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/attempts/:attempt_id/channel", handlers.WS.AttemptChannel)
	}

	// ─── 4. Admin Group (JWT) ──────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/attempts", handlers.Admin.List)
		adminAPI.GET("/attempts/live", handlers.Admin.Live)
		adminAPI.POST("/attempts/sweep", handlers.Admin.Sweep)
		adminAPI.POST("/attempts/:attempt_id/force-submit", handlers.Admin.ForceSubmit)
		adminAPI.POST("/attempts/:attempt_id/result-status", handlers.Admin.SetResultStatus)
		adminAPI.GET("/attempts/:attempt_id/stream/:stream_type", handlers.Relay.PullChunk)
		adminAPI.POST("/attempts/:attempt_id/messages", handlers.Chat.AdminSend)
		adminAPI.GET("/attempts/:attempt_id/messages", handlers.Chat.AdminGet)
		adminAPI.POST("/attempts/:attempt_id/chat-block", handlers.Chat.SetBlocked)
		adminAPI.POST("/attempts/:attempt_id/warning", handlers.Chat.SendWarning)
		adminAPI.POST("/users/:user_id/reset-session", handlers.Auth.ResetSession)
	}

	return router
}
