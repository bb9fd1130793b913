package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"story-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys under which AuthMiddleware stores the verified identity.
const (
	UserIDContextKey = "userID"
	RolesContextKey  = "roles"
)

// TokenVerifier checks a token string and returns its claims. Errors are
// models.ErrTokenInvalid, models.ErrTokenExpired or models.ErrTokenMalformed.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// AuthMiddleware creates a Gin middleware that verifies the bearer token and
// enforces the given roles. The verified UserID and roles are stored on the
// request context for handlers.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger, requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Missing token"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Malformed Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Malformed token header"})
			return
		}
		tokenString := parts[1]

		claims, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "Unauthorized: Invalid token"
			switch {
			case errors.Is(err, models.ErrTokenExpired):
				msg = "Unauthorized: Token expired"
			case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
				// same message for both
			default:
				log.Error("Unexpected token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				msg = "Internal server error during token verification"
			}
			log.Warn("Token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		if len(requiredRoles) > 0 {
			hasRequiredRole := false
			for _, role := range requiredRoles {
				if claims.HasRole(role) {
					hasRequiredRole = true
					break
				}
			}
			if !hasRequiredRole {
				log.Warn("User does not have required role",
					zap.String("userID", claims.UserID),
					zap.Strings("userRoles", claims.Roles),
					zap.Strings("requiredRoles", requiredRoles),
				)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: Insufficient permissions"})
				return
			}
		}

		c.Set(UserIDContextKey, claims.UserID)
		c.Set(RolesContextKey, claims.Roles)

		log.Debug("User authorized", zap.String("userID", claims.UserID), zap.Strings("roles", claims.Roles))
		c.Next()
	}
}
