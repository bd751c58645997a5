package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/rollcall/attendance-api/internal/service"
	"github.com/rollcall/attendance-api/pkg/logger"
)

// sessionID returns the caller's tap session, "default" when absent.
func sessionID(c *gin.Context) string {
	if id := c.GetHeader(logger.SessionHeader); id != "" {
		return id
	}
	return service.DefaultSessionID
}

// streamEvents writes every value of ch as a server-sent event until the
// client goes away or ch closes.
func streamEvents[T any](c *gin.Context, event string, ch <-chan T) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case v, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(event, v)
			return true
		}
	})
}
