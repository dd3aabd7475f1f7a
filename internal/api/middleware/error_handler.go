// Package middleware provides HTTP middleware for the ops API.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "shopfloor.io/mes/internal/pkg/errors"
)

// ErrorHandler is a Gin middleware that provides centralized error handling.
// It captures errors added via c.Error() and returns a consistent JSON response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log := RequestLogger(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			status := StatusFor(appErr)
			log.Warn("Request error",
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", status),
				zap.Error(appErr.Err),
			)
			c.JSON(status, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			})
			return
		}

		log.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperrors.CodeInternal,
			"message": "An internal error occurred",
		})
	}
}

// StatusFor maps an error code onto an HTTP status.
func StatusFor(e *apperrors.AppError) int {
	switch e.Code {
	case apperrors.CodeOrderNotFound, apperrors.CodeBOMEntryNotFound,
		apperrors.CodeTransformationNotFound, apperrors.CodePieceNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidPayload, apperrors.CodeInvalidOrder,
		apperrors.CodeInvalidMoney, apperrors.CodeInvalidOrderDocument:
		return http.StatusBadRequest
	case apperrors.CodeEmptyChain, apperrors.CodeCyclicRecipe:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
