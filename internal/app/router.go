package app

import (
	"exam_prep_backend/internal/config"
	"exam_prep_backend/internal/middleware"
	"exam_prep_backend/internal/model"
	"exam_prep_backend/pkg/monitoring"
	"exam_prep_backend/pkg/security"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. public
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. authenticated
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), security.RateLimiter(a.limiter))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.POST("/quizzes/:quizId/attempts", c.attempt.Start)

	attempts := group.Group("/attempts/:id")
	{
		attempts.GET("", c.attempt.Get)
		attempts.PUT("/answers/:questionId", c.attempt.RecordAnswer)
		attempts.POST("/pause", c.attempt.Pause)
		attempts.POST("/resume", c.attempt.Resume)
		attempts.POST("/submit", c.attempt.Submit)
		attempts.POST("/violations", c.proctoring.RecordViolation)
		attempts.GET("/proctoring", c.proctoring.Report)
	}

	group.GET("/students/me/metrics", c.statistics.MyMetrics)
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/attempts/:id/grade", c.attempt.Grade)
		teacher.POST("/attempts/:id/disqualify", c.attempt.Disqualify)
		teacher.GET("/quizzes/:quizId/statistics", c.statistics.QuizStatistics)
		teacher.POST("/quizzes/:quizId/ranking", c.statistics.RefreshRanking)
		teacher.GET("/students/:userId/metrics", c.statistics.StudentMetrics)
	}
}
