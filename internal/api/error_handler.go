package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/persuratan-gin/internal/integration"
	"github.com/mautops/persuratan-gin/internal/repository"
	"github.com/mautops/persuratan-gin/internal/service"
	"github.com/mautops/persuratan-gin/internal/storage"
	"github.com/mautops/persuratan-gin/internal/workflow"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err

			var apiErr *APIError
			if errors.As(err, &apiErr) {
				Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
			} else {
				Error(c, StatusOf(err), "internal server error", err.Error())
			}
		}
	}
}

// WrapError 包装错误,交由 ErrorHandlerMiddleware 输出
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// StatusOf 将领域错误映射为 HTTP 状态码
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, repository.ErrInvalidFilter),
		errors.Is(err, integration.ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrDuplicateRecipient),
		errors.Is(err, workflow.ErrAlreadySigned),
		errors.Is(err, workflow.ErrAlreadyFinalized),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrIncompleteSignatureSet),
		errors.Is(err, repository.ErrConcurrentModification),
		errors.Is(err, integration.ErrLockTimeout):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrEmptySignerSet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrRenderFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError 统一处理服务层错误
func handleServiceError(c *gin.Context, err error, operation string) bool {
	if err == nil {
		return true
	}
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		GetLogger().WithError(err).WithField("request_id", c.GetString("request_id")).Error("failed to " + operation)
	}
	Error(c, status, "failed to "+operation, err.Error())
	return false
}
