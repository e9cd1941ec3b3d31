// File: internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"marketplace_backend/internal/common"
	"marketplace_backend/internal/firebase"
	"marketplace_backend/internal/host"
)

const (
	// AuthorizationHeader is the header name for authorization token
	AuthorizationHeader = "Authorization"
	// AuthorizationTypeBearer is the prefix for Bearer tokens
	AuthorizationTypeBearer = "bearer"
	// HostIDKey is the context key for storing the authenticated host's ID
	HostIDKey = "hostID"
	// HostRoleKey is the context key for storing the authenticated host's role
	HostRoleKey = "hostRole"
	// HostKey stores the whole host record
	HostKey = "host"
)

// FirebaseAuth creates a Gin middleware that verifies the Firebase ID token
// and resolves the backing host record.
func FirebaseAuth(fb *firebase.Service, hosts host.Repository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			logger.Debug("Authorization header missing")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header is required."))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != AuthorizationTypeBearer {
			logger.Debug("Authorization header format invalid")
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'."))
			return
		}

		token, err := fb.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			logger.Warn("Token verification failed", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired token."))
			return
		}

		h, err := hosts.FindByFirebaseUID(c.Request.Context(), token.UID)
		if err != nil {
			logger.Warn("Authenticated UID has no host record", zap.String("uid", token.UID), zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("No account exists for this identity."))
			return
		}

		c.Set(HostIDKey, h.ID)
		c.Set(HostRoleKey, h.Role)
		c.Set(HostKey, h)

		logger.Debug("Host authenticated successfully",
			zap.String("hostID", h.ID.String()),
			zap.String("role", h.Role),
		)

		c.Next()
	}
}

// GetHostIDFromContext retrieves the host ID from the Gin context.
// Returns uuid.Nil if not found.
func GetHostIDFromContext(c *gin.Context) uuid.UUID {
	val, exists := c.Get(HostIDKey)
	if !exists {
		return uuid.Nil
	}
	hostID, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return hostID
}

// GetHostRoleFromContext retrieves the host role from the Gin context.
func GetHostRoleFromContext(c *gin.Context) string {
	val, exists := c.Get(HostRoleKey)
	if !exists {
		return ""
	}
	role, ok := val.(string)
	if !ok {
		return ""
	}
	return role
}

// RoleAuth creates a middleware to check whether the authenticated host has
// one of the required roles.
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		hostRole := GetHostRoleFromContext(c)
		if hostRole == "" {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("Host role not found in context."))
			return
		}

		for _, role := range allowedRoles {
			if hostRole == role {
				c.Next()
				return
			}
		}

		common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
	}
}
