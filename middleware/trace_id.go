package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stagepass/go-stagepass-core/logger"
)

// TraceIDHeader is the inbound/outbound trace header.
const TraceIDHeader = "X-Trace-ID"

// TraceID propagates the caller's trace ID, minting one when absent,
// and stores it on the request context for the loggers downstream.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}
