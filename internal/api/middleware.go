package api

import (
	"time"

	"gocausal/internal"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request with its status and latency
func RequestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= 500 {
			logger.Error("[%s %s] %d in %v: %s", c.Request.Method, c.FullPath(), status, time.Since(start), c.Errors.String())
			return
		}
		logger.Debug("[%s %s] %d in %v", c.Request.Method, c.FullPath(), status, time.Since(start))
	}
}
