package util

import (
	"errors"
	"exam_prep_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err))
	InternalServerError(c)
}

var kindStatus = map[ErrorKind]int{
	KindConflict:         http.StatusConflict,
	KindInvalidState:     http.StatusConflict,
	KindPermissionDenied: http.StatusForbidden,
	KindNotFound:         http.StatusNotFound,
	KindInvalidArgument:  http.StatusBadRequest,
}

// Fail writes an AttemptError with its structured detail, or falls back to a
// logged 500 for anything else.
func Fail(c *gin.Context, err error) {
	var ae *AttemptError
	if !errors.As(err, &ae) {
		LogInternalError(c, err)
		return
	}
	code, ok := kindStatus[ae.Kind]
	if !ok {
		code = http.StatusBadRequest
	}
	c.JSON(code, Response{
		Code:    code,
		Message: ae.Error(),
		Data:    ae,
	})
}
