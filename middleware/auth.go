package middleware

import (
	"strings"

	"foodshare-notify/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthMiddleware struct {
	jwtService *utils.JWTService
}

func NewAuthMiddleware(jwtService *utils.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// RequireEventSource validates the bearer token of an upstream event source
// and stores its id under "eventSource".
func (am *AuthMiddleware) RequireEventSource() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthorized(c, "Authentication token required")
			return
		}

		claims, err := am.jwtService.ValidateToken(token)
		if err != nil {
			logrus.WithField("request_id", c.GetString("request_id")).Warnf("Invalid event source token: %v", err)
			message := "Invalid authentication token"
			if serviceErr, ok := utils.GetServiceError(err); ok {
				message = serviceErr.Message
			}
			abortUnauthorized(c, message)
			return
		}

		c.Set("eventSource", claims.Source)
		c.Next()
	})
}

func abortUnauthorized(c *gin.Context, message string) {
	utils.UnauthorizedResponse(c, message)
	c.Abort()
}

// extractToken reads a bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
