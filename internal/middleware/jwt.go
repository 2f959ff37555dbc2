package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// TokenValidator parses and verifies access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid bearer access token.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing access token"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Abort(c, err)
			return
		}
		if !claims.Principal().Authenticated() {
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims"))
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// PrincipalFrom returns the authenticated actor, or a zero Principal.
func PrincipalFrom(c *gin.Context) models.Principal {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Principal{}
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return models.Principal{}
	}
	return claims.Principal()
}
