package middleware

import (
	"net/http"

	apperrors "vidtube/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error a handler attached with
// c.Error. Core errors are mapped by kind; anything else is a 500.
func ErrorHandlerMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := apperrors.FromDomain(c.Errors.Last().Err)
		fields := []interface{}{
			"code", appErr.Code,
			"status", appErr.Status,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", appErr.Error(),
		}
		if appErr.Status >= http.StatusInternalServerError {
			logger.Errorw("request failed", fields...)
		} else {
			logger.Infow("request rejected", fields...)
		}

		writeAppError(c, appErr)
	}
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorw("panic recovered",
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				writeAppError(c, apperrors.Internal())
				c.Abort()
			}
		}()

		c.Next()
	}
}

func writeAppError(c *gin.Context, appErr *apperrors.AppError) {
	c.JSON(appErr.Status, appErr.Body())
}

func abortWithAppError(c *gin.Context, appErr *apperrors.AppError) {
	writeAppError(c, appErr)
	c.Abort()
}
