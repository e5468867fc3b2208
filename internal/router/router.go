package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/marcinucieklak/examhub/internal/config"
	"github.com/marcinucieklak/examhub/internal/handler"
	"github.com/marcinucieklak/examhub/internal/i18n"
	"github.com/marcinucieklak/examhub/internal/middleware"
	"github.com/marcinucieklak/examhub/internal/response"
	"github.com/marcinucieklak/examhub/internal/service"
	"github.com/rs/zerolog"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Health        *handler.HealthHandler
	Exam          *handler.ExamHandler
	StudentPortal *handler.StudentPortalHandler
	Monitor       *handler.MonitorHandler
	WS            *handler.WSHandler
}

// Limiters groups the rate limiters applied to individual routes.
type Limiters struct {
	Answers *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiters *Limiters,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so the logger and every envelope share it.
	router.Use(
		response.RequestIDMiddleware(),
		i18n.Middleware(),
		middleware.RequestLogger(log),
		gin.Recovery(),
		middleware.Brotli(),
	)

	router.GET("/health", handlers.Health.Health)

	// ─── 1. Examiner Group (Examiner JWT) ──────────────────────────────
	examinerAPI := router.Group("/api/v1/examiner")
	examinerAPI.Use(middleware.RequireExaminer(authService))
	{
		examinerAPI.GET("/exams", handlers.Exam.ListExams)
		examinerAPI.POST("/exams", handlers.Exam.CreateExam)
		examinerAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		examinerAPI.PUT("/exams/:exam_id", handlers.Exam.UpdateExam)
		examinerAPI.DELETE("/exams/:exam_id", handlers.Exam.DeleteExam)
		examinerAPI.GET("/exams/:exam_id/results", handlers.Exam.GetResults)
		examinerAPI.GET("/exams/:exam_id/sessions/:session_id", handlers.Exam.GetSessionDetail)
		examinerAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)
	}

	// ─── 2. Student Group (Student JWT) ────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudent(authService))
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.GET("/exams/:exam_id", handlers.StudentPortal.GetExam)
		studentAPI.GET("/exams/:exam_id/availability", handlers.StudentPortal.GetAvailability)
		studentAPI.POST("/exams/:exam_id/sessions", handlers.StudentPortal.StartSession)
		studentAPI.GET("/sessions/:session_id", handlers.StudentPortal.GetSession)
		studentAPI.POST("/sessions/:session_id/answers",
			limiters.Answers.Middleware(),
			handlers.StudentPortal.SubmitAnswer,
		)
		studentAPI.POST("/sessions/:session_id/finish", handlers.StudentPortal.FinishSession)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWS(authService))
	{
		ws.GET("/student/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	return router
}
