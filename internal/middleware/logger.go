package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/charlesng35/erprbac/pkg/logger"
)

// Logger writes one structured access log entry per request, annotated with the caller
// identity and the outcome of the route's permission guard. Rejected callers are logged
// at warn level, server errors at error level.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.String("route", routeTemplate(c)),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if roleID, ok := CallerRoleID(c); ok {
			fields = append(fields, zap.String("role_id", roleID))
		}
		if actorID := c.GetString(CtxActorIDKey); actorID != "" {
			fields = append(fields, zap.String("actor_id", actorID))
		}

		level := zapcore.InfoLevel
		if code, decision, ok := RouteGuard(c); ok {
			fields = append(fields, zap.String("permission", code), zap.String("decision", decision))
			if decision == DecisionDenied || decision == DecisionUnauthenticated {
				level = zapcore.WarnLevel
			}
		}
		if status >= http.StatusInternalServerError {
			level = zapcore.ErrorLevel
		}

		if entry := logger.WithModule("http").Check(level, "request"); entry != nil {
			entry.Write(fields...)
		}
	}
}

func routeTemplate(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}
