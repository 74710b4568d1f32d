package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/auth"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

const (
	// ContextKeyUserID holds the authenticated user's id.
	ContextKeyUserID = "userID"
	// ContextKeyUser holds the authenticated *models.User, password excluded.
	ContextKeyUser = "user"

	bearerPrefix = "Bearer "
)

const (
	msgNoToken      = "Not authorized, no token"
	msgTokenFailed  = "Not authorized, token failed"
	msgUserNotFound = "Not authorized, user not found"
)

// UserLookup loads the account behind a token.
type UserLookup interface {
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
}

// AuthMiddleware requires "Authorization: Bearer <token>" and loads the user it names.
func AuthMiddleware(tokens *auth.TokenService, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgNoToken})
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgNoToken})
			return
		}

		userID, err := tokens.Verify(tokenString)
		if err != nil {
			logger.Debug("token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgTokenFailed})
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgUserNotFound})
				return
			}
			appErr := apperr.From(err)
			logger.Error("[Auth] user lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
			c.AbortWithStatusJSON(appErr.HTTPCode(), appErr.Body())
			return
		}

		c.Set(ContextKeyUserID, user.ID)
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// RequireCapability rejects users whose role lacks the capability.
// Assumes AuthMiddleware runs first.
func RequireCapability(capability auth.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": msgNoToken})
			return
		}
		if !auth.Allows(user.Role, capability) {
			denied := apperr.Forbidden(auth.DeniedMessage(capability))
			c.AbortWithStatusJSON(denied.HTTPCode(), denied.Body())
			return
		}
		c.Next()
	}
}
