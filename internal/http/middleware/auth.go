package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
	"github.com/slava-viktorov/simple-knowledge-base/internal/repository"
	"github.com/slava-viktorov/simple-knowledge-base/internal/service"
)

const currentUserKey = "currentUser"

// Auth resolves the current user from the access token cookie.
type Auth struct {
	AuthService *service.AuthService
	Users       repository.UserRepository
	CookieName  string
}

// RequireUser verifies the access token cookie, loads the subject user, and
// attaches it to the request context. The password hash never leaves this
// middleware.
func (m *Auth) RequireUser(c *gin.Context) {
	accessToken, err := c.Cookie(m.CookieName)
	if err != nil || accessToken == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Access token required"})
		return
	}

	claims, err := m.AuthService.VerifyAccessToken(accessToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token"})
		return
	}

	user, err := m.Users.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Invalid credentials"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error"})
		return
	}

	public := user.Public()
	c.Set(currentUserKey, &public)
	c.Next()
}

// GetCurrentUser exposes the resolved user to handlers.
func GetCurrentUser(c *gin.Context) (*domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}
