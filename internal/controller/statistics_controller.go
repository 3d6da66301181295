package controller

import (
	"exam_prep_backend/internal/service"
	"exam_prep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StatisticsController struct {
	StatisticsService *service.StatisticsService
}

func NewStatisticsController(statisticsService *service.StatisticsService) *StatisticsController {
	return &StatisticsController{StatisticsService: statisticsService}
}

// @Summary Quiz statistics
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "quiz id"
// @Router /api/teacher/quizzes/{quizId}/statistics [get]
func (c *StatisticsController) QuizStatistics(ctx *gin.Context) {
	quizID := util.MustParseUint(ctx.Param("quizId"))
	if quizID == 0 {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	stats, err := c.StatisticsService.QuizStatistics(ctx.Request.Context(), quizID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// @Summary Recompute rank and percentile of every scored attempt
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "quiz id"
// @Router /api/teacher/quizzes/{quizId}/ranking [post]
func (c *StatisticsController) RefreshRanking(ctx *gin.Context) {
	quizID := util.MustParseUint(ctx.Param("quizId"))
	if quizID == 0 {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	rankings, err := c.StatisticsService.RefreshRanking(ctx.Request.Context(), quizID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, rankings)
}

// @Summary Aggregate metrics of the current student
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Router /api/students/me/metrics [get]
func (c *StatisticsController) MyMetrics(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	c.studentMetrics(ctx, user.UserID)
}

// @Summary Aggregate metrics of a student
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Param userId path int true "student id"
// @Router /api/teacher/students/{userId}/metrics [get]
func (c *StatisticsController) StudentMetrics(ctx *gin.Context) {
	userID := util.MustParseUint(ctx.Param("userId"))
	if userID == 0 {
		util.BadRequest(ctx, "invalid user id")
		return
	}
	c.studentMetrics(ctx, userID)
}

func (c *StatisticsController) studentMetrics(ctx *gin.Context, userID uint) {
	metrics, err := c.StatisticsService.StudentMetrics(ctx.Request.Context(), userID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, metrics)
}
