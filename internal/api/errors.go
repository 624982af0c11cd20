package api

import (
	"net/http"

	"dataportal/internal/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByCode = map[string]int{
	errors.CodeNotFound:            http.StatusNotFound,
	errors.CodeEmptyTable:          http.StatusNotFound,
	errors.CodeParseError:          http.StatusBadRequest,
	errors.CodeInvalidInput:        http.StatusBadRequest,
	errors.CodeValidationError:     http.StatusBadRequest,
	errors.CodeUnsupportedFilter:   http.StatusBadRequest,
	errors.CodeUnsupportedFileType: http.StatusBadRequest,
	errors.CodeSchemaConflict:      http.StatusConflict,
	errors.CodeFileTooLarge:        http.StatusRequestEntityTooLarge,
}

// StatusFor maps an error's code to an HTTP status
func StatusFor(err error) int {
	if status, ok := statusByCode[errors.GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": {"code", "message"}}. Internal failures are
// logged and their details kept out of the response.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusFor(err)
	code := errors.GetCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		if code == "UNKNOWN" {
			code = errors.CodeInternalError
		}
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
