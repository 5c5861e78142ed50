package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"fixmycity-be/auth"
	"fixmycity-be/models"
)

const principalKey = "principal"

// IdentityProvider verifies bearer credentials and stores corrected
// role/department metadata.
type IdentityProvider interface {
	VerifyToken(tokenString string) (*auth.ProviderUser, error)
	UpdateUserMetadata(ctx context.Context, userID string, meta auth.UserMetadata) error
}

// ProfileStore looks up profile records by provider user id.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
}

// Authenticate resolves the bearer credential into a Principal and attaches
// it to the request context. Role and department come from the profile record
// when present, falling back to the provider's stored metadata, defaulting to
// citizen. When the computed values differ from the stored metadata, the
// correction is written back in a detached goroutine whose outcome never
// affects the request.
func Authenticate(provider IdentityProvider, profiles ProfileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			c.Abort()
			return
		}

		tokenString := extractBearer(authHeader)
		user, err := provider.VerifyToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid authorization token",
				"details": err.Error(),
			})
			c.Abort()
			return
		}

		profile, err := profiles.GetByUserID(c.Request.Context(), user.ID)
		if err != nil {
			log.WithError(err).Error("failed to load profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			c.Abort()
			return
		}

		rawRole := user.Metadata.Role
		department := user.Metadata.Department
		if profile != nil {
			if profile.Role != "" {
				rawRole = profile.Role
			}
			if profile.Department != "" {
				department = profile.Department
			}
		}
		role := auth.NormalizeRole(rawRole)

		if role != user.Metadata.Role || department != user.Metadata.Department {
			go reconcileMetadata(provider, user.ID, auth.UserMetadata{
				Role:       role,
				Department: department,
			})
		}

		email := user.Email
		if profile != nil && profile.Email != "" {
			email = profile.Email
		}
		c.Set(principalKey, auth.Principal{
			ID:         user.ID,
			Email:      email,
			Role:       role,
			Department: department,
		})
		c.Next()
	}
}

// reconcileMetadata is fire-and-forget: failures are logged and dropped,
// never retried.
func reconcileMetadata(provider IdentityProvider, userID string, meta auth.UserMetadata) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := provider.UpdateUserMetadata(ctx, userID, meta); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("metadata reconciliation failed")
	}
}

// RequireRoles permits the request only when the resolved role is in the
// allowed set. Must run after Authenticate.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		principal, ok := GetPrincipal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			c.Abort()
			return
		}
		if !allowed[principal.Role] {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access denied for role " + principal.Role,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the Principal attached by Authenticate.
func GetPrincipal(c *gin.Context) (auth.Principal, bool) {
	val, exists := c.Get(principalKey)
	if !exists {
		return auth.Principal{}, false
	}
	principal, ok := val.(auth.Principal)
	return principal, ok
}

func extractBearer(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) > len(prefix) && authHeader[:len(prefix)] == prefix {
		return authHeader[len(prefix):]
	}
	return authHeader
}
