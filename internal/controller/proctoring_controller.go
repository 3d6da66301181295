package controller

import (
	"exam_prep_backend/internal/service"
	"exam_prep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProctoringController struct {
	ProctoringService *service.ProctoringService
}

func NewProctoringController(proctoringService *service.ProctoringService) *ProctoringController {
	return &ProctoringController{ProctoringService: proctoringService}
}

// @Summary Report a proctoring violation
// @Tags proctoring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param body body service.ViolationInput true "violation"
// @Success 201 {object} util.Response
// @Router /api/attempts/{id}/violations [post]
func (c *ProctoringController) RecordViolation(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var in service.ViolationInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	out, err := c.ProctoringService.RecordViolation(ctx.Request.Context(), ctx.Param("id"), user.UserID, user.Role, in)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Created(ctx, out)
}

// @Summary Violation log and trust score of an attempt
// @Tags proctoring
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Router /api/attempts/{id}/proctoring [get]
func (c *ProctoringController) Report(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	report, err := c.ProctoringService.Report(ctx.Request.Context(), ctx.Param("id"), user.UserID, user.Role)
	if err != nil {
		util.Fail(ctx, err)
		return
	}
	util.Success(ctx, report)
}
