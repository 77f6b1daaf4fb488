package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/clearview_backend/utils"
)

// ReadinessMiddleware answers 503 until ready reports true. Health probes
// always pass so the platform sees the process as alive while it connects.
func ReadinessMiddleware(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/healthz", "/health":
			c.Next()
			return
		}
		if !ready() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, utils.ErrorResponse{Error: "service not ready"})
			return
		}
		c.Next()
	}
}
