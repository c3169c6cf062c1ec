package middleware

import (
	"net/http"

	"reelsdownload/internal/metrics"
	"reelsdownload/internal/model"
	"reelsdownload/pkg/i18n"
	"reelsdownload/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a panic in any later handler into a generic localized 500
func Recovery(loc *i18n.Localizer, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithRequest(c).Error("Error processing request",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				m.ObserveRequest(metrics.OutcomeUnexpected)

				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.DownloadResponse{
					Success: false,
					Error:   loc.T(c, i18n.GeneralDownloadError),
				})
			}
		}()

		c.Next()
	}
}
