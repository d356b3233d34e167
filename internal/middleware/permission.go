package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/erprbac/pkg/errors"
	"github.com/charlesng35/erprbac/pkg/logger"
	"github.com/charlesng35/erprbac/pkg/response"
)

// Route guard outcomes recorded by RequirePermission.
const (
	DecisionAllowed         = "allowed"
	DecisionDenied          = "denied"
	DecisionUnauthenticated = "unauthenticated"
	DecisionError           = "error"
)

const (
	CtxPermissionKey = "routePermission"
	CtxDecisionKey   = "routeDecision"
)

// PermissionChecker evaluates a permission code for a role id.
type PermissionChecker interface {
	IsPermitted(ctx context.Context, roleID, code string) (bool, error)
}

// RequirePermission checks that the caller role holds the provided permission code.
func RequirePermission(checker PermissionChecker, code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxPermissionKey, code)

		roleID, ok := CallerRoleID(c)
		if !ok {
			c.Set(CtxDecisionKey, DecisionUnauthenticated)
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		allowed, err := checker.IsPermitted(c.Request.Context(), roleID, code)
		if err != nil {
			appErr := errors.FromError(err)
			if appErr.StatusCode == http.StatusNotFound {
				// The gateway vouched for a role that no longer exists.
				c.Set(CtxDecisionKey, DecisionUnauthenticated)
				response.Error(c, errors.New(errors.ErrUnauthorized.Code, "Caller role is unknown", http.StatusUnauthorized))
				c.Abort()
				return
			}
			c.Set(CtxDecisionKey, DecisionError)
			logger.WithModule("http").Error("permission check failed",
				zap.String("permission", code),
				zap.String("role_id", roleID),
				zap.Error(err),
			)
			response.Error(c, errors.ErrInternalServer)
			c.Abort()
			return
		}
		if !allowed {
			c.Set(CtxDecisionKey, DecisionDenied)
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Set(CtxDecisionKey, DecisionAllowed)
		c.Next()
	}
}

// RouteGuard returns the permission code and decision recorded by RequirePermission.
// ok is false for routes without a guard.
func RouteGuard(c *gin.Context) (code, decision string, ok bool) {
	code = c.GetString(CtxPermissionKey)
	if code == "" {
		return "", "", false
	}
	return code, c.GetString(CtxDecisionKey), true
}
