package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"parking_network/internal/domain"
	"parking_network/internal/service"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	ActorKey                = "actor"
)

type AuthMiddleware struct {
	authService *service.AuthService
	log         *zap.Logger
}

func NewAuthMiddleware(authService *service.AuthService, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, log: log}
}

// Authenticate resolves the bearer token into a domain.Actor stored on the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}

		actor, err := m.authService.ValidateToken(fields[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token", "details": err.Error()})
			return
		}
		c.Set(ActorKey, actor)
		c.Next()
	}
}

// AuthorizeRole rejects actors whose role is not listed.
func (m *AuthMiddleware) AuthorizeRole(requiredRoles ...domain.ActorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			m.log.Warn("AuthorizeRole used without Authenticate", zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied (no identity)"})
			return
		}
		for _, role := range requiredRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		m.log.Info("role not allowed",
			zap.String("username", actor.Username),
			zap.String("role", string(actor.Role)),
			zap.String("path", c.FullPath()))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied for role " + string(actor.Role)})
	}
}

func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
