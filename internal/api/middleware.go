package api

import (
	"time"

	"gosuperior/internal"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request at debug level and server errors at error
// level
func RequestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= 500 {
			logger.Error("[HTTP] %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
			return
		}
		logger.Debug("[HTTP] %s %s -> %d (%v)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}
