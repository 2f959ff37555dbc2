package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vacation-api/internal/policy"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/response"
)

// RequireAction gates a route on the role grant table. Any grant, including
// own-scope, passes. Services check ownership against the loaded resource.
// It must run after JWT.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if !principal.Authenticated() {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if policy.ScopeOf(principal.Role, action) == policy.ScopeNone {
			response.Abort(c, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not perform %s", principal.Role, action)))
			return
		}
		c.Next()
	}
}
