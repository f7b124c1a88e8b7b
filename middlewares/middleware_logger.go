package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const HeaderRequestID = "X-Request-ID"

// LoggerMiddleware tags each request with an id and logs it once done.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(HeaderRequestID, reqID)
		c.Set("request_id", reqID)

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		entry := utils.InfoLogger.WithFields(logrus.Fields{
			"request_id": reqID,
			"method":     c.Request.Method,
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(path + " " + c.Errors.String())
			return
		}
		entry.Info(path)
	}
}
