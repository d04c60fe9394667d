package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vigilo/vigilo-backend/internal/config"
	"github.com/vigilo/vigilo-backend/internal/handler"
	"github.com/vigilo/vigilo-backend/internal/middleware"
	"github.com/vigilo/vigilo-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam      *handler.ExamHandler
	Candidate *handler.CandidateHandler
	Attempt   *handler.AttemptHandler
	Stream    *handler.StreamHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(auth *middleware.Authenticator, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list; otherwise
	// allow all so dev works without extra config.
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

	// ─── Candidate Group (JWT) ─────────────────────────────────────────
	candidateAPI := router.Group("/api/v1")
	candidateAPI.Use(middleware.RequireCandidateJWT(auth))
	{
		candidateAPI.GET("/exams", handlers.Candidate.ListExams)
		candidateAPI.GET("/exams/:examId/questions", handlers.Candidate.Questions)
		candidateAPI.POST("/exams/:examId/attempt", handlers.Attempt.Start)
		candidateAPI.PUT("/exams/:examId/attempt/answers", handlers.Attempt.Autosave)
		candidateAPI.POST("/exams/:examId/attempt/submit", handlers.Attempt.Submit)
		candidateAPI.GET("/exams/:examId/attempt/state", handlers.Attempt.State)
	}

	// ─── WebSocket Group (any principal, token via query param) ────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(auth))
	{
		ws.GET("/proctoring", handlers.Stream.Handle)
	}

	// ─── Admin Group (admin or evaluator JWT) ──────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		adminAPI.GET("/exams", handlers.Exam.List)
		adminAPI.POST("/exams", handlers.Exam.Create)
		adminAPI.POST("/exams/candidate-count", handlers.Exam.CountCandidates)
		adminAPI.GET("/exams/:examId", handlers.Exam.Get)
		adminAPI.DELETE("/exams/:examId", handlers.Exam.Delete)
		adminAPI.GET("/exams/:examId/questions", handlers.Exam.Questions)
		adminAPI.PUT("/exams/:examId/questions", handlers.Exam.ReplaceQuestions)
		adminAPI.POST("/exams/:examId/publish", handlers.Exam.Publish)
		adminAPI.POST("/exams/:examId/unpublish", handlers.Exam.Unpublish)
		adminAPI.GET("/exams/:examId/evaluator-mappings", handlers.Exam.ListMappings)
		adminAPI.POST("/exams/:examId/evaluator-mappings", handlers.Exam.AddMapping)
		adminAPI.GET("/exams/:examId/attempts/live", handlers.Attempt.ListLive)
		adminAPI.POST("/exams/:examId/attempts/:candidateId/evaluation", handlers.Attempt.RecordEvaluation)
	}

	return router
}
