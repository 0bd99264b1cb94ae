package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"whosehouse/api/internal/authz"
	"whosehouse/api/internal/config"
	"whosehouse/api/internal/models"
	"whosehouse/api/internal/repository"
	"whosehouse/api/internal/security"
)

type ProfileGetter interface {
	GetByID(ctx context.Context, id string) (models.Profile, error)
}

type SessionStore interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, sessionID string, ip string, userAgent string) error
}

// Auth walks the session guard states for every request: no or bad token is
// unauthenticated; a valid token whose session row is gone is a dead login;
// a live session whose profile row is missing is the anomalous state and
// gets its own error code so clients route back to sign-in instead of
// spinning. Every branch terminates with a response.
func Auth(cfg *config.AppConfig, profiles ProfileGetter, sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTAccessSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		session, err := sessions.GetByID(c.Request.Context(), claims.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		if session.ProfileID != claims.UserID || session.DeviceID != claims.DeviceID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_mismatch"})
			return
		}

		profile, err := profiles.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			// Only a missing row is the dead-login state. A transient
			// store error must not push the client into sign-out.
			if errors.Is(err, repository.ErrProfileNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "profile_missing"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}

		if profile.Status != models.ProfileStatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "profile_inactive"})
			return
		}

		_ = sessions.Touch(c.Request.Context(), session.ID, c.ClientIP(), c.GetHeader("User-Agent"))

		identity := authz.Identity{
			UserID:         claims.UserID,
			Role:           models.Role(claims.Role),
			OrganizationID: claims.OrganizationID,
			HouseholdID:    claims.HouseholdID,
		}

		c.Set("access_claims", *claims)
		c.Set("current_profile", profile)
		c.Set("identity", identity)

		c.Next()
	}
}

// CurrentIdentity returns the identity the Auth middleware attached.
func CurrentIdentity(c *gin.Context) (authz.Identity, bool) {
	val, ok := c.Get("identity")
	if !ok {
		return authz.Identity{}, false
	}
	identity, ok := val.(authz.Identity)
	return identity, ok
}

// CurrentProfile returns the authenticated profile row.
func CurrentProfile(c *gin.Context) (models.Profile, bool) {
	val, ok := c.Get("current_profile")
	if !ok {
		return models.Profile{}, false
	}
	profile, ok := val.(models.Profile)
	return profile, ok
}
