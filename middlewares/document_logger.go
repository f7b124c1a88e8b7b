package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// DocumentLoggerMiddleware logs the outcome of PDF generation requests.
func DocumentLoggerMiddleware(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.InfoLogger.Printf("Generating %s %s", kind, c.Request.URL.RequestURI())

		c.Next()

		if c.Writer.Status() == 200 {
			utils.InfoLogger.Printf("%s generated (%d bytes)", kind, c.Writer.Size())
		} else {
			utils.ErrorLogger.Printf("Failed to generate %s: status %d", kind, c.Writer.Status())
		}
	}
}
