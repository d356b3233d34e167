package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// requestContext returns the request context carrying the caller's audit actor. Bare
// gin contexts built in tests fall back to context.Background.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// roleIDParam returns the :id path parameter of the /roles/:id routes.
func roleIDParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}
