package controller

import (
	"exam_prep_backend/internal/service"
	"exam_prep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService    *service.AttemptService
	ProctoringService *service.ProctoringService
}

func NewAttemptController(attemptService *service.AttemptService, proctoringService *service.ProctoringService) *AttemptController {
	return &AttemptController{AttemptService: attemptService, ProctoringService: proctoringService}
}

// @Summary Start an attempt
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param quizId path int true "quiz id"
// @Success 201 {object} util.Response
// @Failure 403 {object} util.Response "attempt limit, cooldown or availability window"
// @Failure 409 {object} util.Response "an attempt is already in progress"
// @Router /api/quizzes/{quizId}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	quizID := util.MustParseUint(ctx.Param("quizId"))
	if quizID == 0 {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	attempt, err := c.AttemptService.Start(ctx.Request.Context(), quizID, user.UserID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary Get an attempt with its proctoring state
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id := ctx.Param("id")
	attempt, err := c.AttemptService.Get(ctx.Request.Context(), id, user.UserID, user.Role)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	report, err := c.ProctoringService.Report(ctx.Request.Context(), id, user.UserID, user.Role)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attempt":    attempt,
		"proctoring": report,
	})
}

// @Summary Record or replace an answer
// @Tags attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param questionId path int true "question id"
// @Param body body service.AnswerInput true "payload as {kind, data}"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers/{questionId} [put]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	questionID := util.MustParseUint(ctx.Param("questionId"))
	if questionID == 0 {
		util.BadRequest(ctx, "invalid question id")
		return
	}
	var in service.AnswerInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	attempt, err := c.AttemptService.RecordAnswer(ctx.Request.Context(), ctx.Param("id"), user.UserID, questionID, in)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary Pause an attempt
// @Tags attempts
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Router /api/attempts/{id}/pause [post]
func (c *AttemptController) Pause(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attempt, err := c.AttemptService.Pause(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary Resume a paused attempt
// @Tags attempts
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Router /api/attempts/{id}/resume [post]
func (c *AttemptController) Resume(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attempt, err := c.AttemptService.Resume(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary Submit an attempt for scoring
// @Description Submitting again returns the stored result.
// @Tags attempts
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	result, err := c.AttemptService.Submit(ctx.Request.Context(), ctx.Param("id"), user.UserID)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Grade manual answers of a submitted attempt
// @Tags grading
// @Accept json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param body body object true "scores [{questionId, score, feedback}]"
// @Router /api/teacher/attempts/{id}/grade [post]
func (c *AttemptController) Grade(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var body struct {
		Scores []service.ManualScore `json:"scores" binding:"required,dive"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.AttemptService.ManualGrade(ctx.Request.Context(), ctx.Param("id"), user.UserID, body.Scores)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary Disqualify an attempt
// @Tags grading
// @Accept json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param body body object true "{reason}"
// @Router /api/teacher/attempts/{id}/disqualify [post]
func (c *AttemptController) Disqualify(ctx *gin.Context) {
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	attempt, err := c.AttemptService.Disqualify(ctx.Request.Context(), ctx.Param("id"), body.Reason)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
