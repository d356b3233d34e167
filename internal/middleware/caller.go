package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/erprbac/internal/auditctx"
)

// Identity headers set by the trusted upstream gateway.
const (
	DefaultRoleHeader  = "X-Role-ID"
	DefaultActorHeader = "X-Actor-ID"
)

const (
	CtxRoleIDKey  = "callerRoleID"
	CtxActorIDKey = "callerActorID"
)

// Caller copies the gateway identity headers into the gin and request contexts. It never
// rejects a request; RequirePermission decides what a missing role means.
func Caller(roleHeader, actorHeader string) gin.HandlerFunc {
	if strings.TrimSpace(roleHeader) == "" {
		roleHeader = DefaultRoleHeader
	}
	if strings.TrimSpace(actorHeader) == "" {
		actorHeader = DefaultActorHeader
	}

	return func(c *gin.Context) {
		roleID := strings.TrimSpace(c.GetHeader(roleHeader))
		actorID := strings.TrimSpace(c.GetHeader(actorHeader))

		if roleID != "" {
			c.Set(CtxRoleIDKey, roleID)
		}
		if actorID != "" {
			c.Set(CtxActorIDKey, actorID)
		}

		ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			ID:        actorID,
			RoleID:    roleID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CallerRoleID returns the caller role id captured by Caller.
func CallerRoleID(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxRoleIDKey)
	if !ok {
		return "", false
	}
	roleID, _ := v.(string)
	return roleID, roleID != ""
}
