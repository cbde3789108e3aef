package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jonathanmorav/unified-dashboard/pkg/telemetry/correlation"
)

// RequestID propagates an inbound X-Request-ID or mints a new one, and
// stores it on both the gin context and the request context so event
// rows can record the correlation ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader("X-Request-ID"); id != "" {
			ctx = correlation.ContextWithCorrelationID(ctx, id)
		}
		ctx, id := correlation.EnsureCorrelationID(ctx)

		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
