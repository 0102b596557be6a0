package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/slava-viktorov/simple-knowledge-base/internal/domain"
	"github.com/slava-viktorov/simple-knowledge-base/internal/http/middleware"
	"github.com/slava-viktorov/simple-knowledge-base/internal/service"
)

// AuthHandler exposes the auth endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Cookies *CookieManager
	Logger  *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, cookies *CookieManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookies: cookies, Logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Login authenticates with email/password and sets both auth cookies.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Email and password are required."})
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Cookies.SetAuthCookies(c, result.Tokens)
	c.JSON(http.StatusOK, userResponse{
		ID:       result.User.ID,
		Email:    result.User.Email,
		Username: result.User.Username,
	})
}

// Logout revokes the refresh token from the cookie and clears both cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, err := c.Cookie(h.Cookies.RefreshCookieName())
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Refresh token required"})
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), refreshToken); err != nil {
		h.respondError(c, err)
		return
	}

	h.Cookies.ClearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// Refresh rotates the token pair and replaces both cookies.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(h.Cookies.RefreshCookieName())
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Refresh token required"})
		return
	}

	tokens, err := h.Auth.RefreshTokens(c.Request.Context(), refreshToken)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Cookies.SetAuthCookies(c, tokens)
	c.Status(http.StatusOK)
}

// ValidateToken answers whether the access token in the cookie is still
// good, without loading a user.
func (h *AuthHandler) ValidateToken(c *gin.Context) {
	accessToken, err := c.Cookie(h.Cookies.AccessCookieName())
	if err != nil || accessToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Access token required"})
		return
	}

	if err := h.Auth.Validate(accessToken); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Me returns the profile of the user resolved by the auth middleware.
func (h *AuthHandler) Me(c *gin.Context) {
	user, _ := middleware.GetCurrentUser(c)
	result, err := h.Auth.Me(user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{
		ID:       result.ID,
		Email:    result.Email,
		Username: result.Username,
		Role:     result.Role.Name,
	})
}

// LogoutAll revokes every active session of the current user and clears the
// caller's cookies.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Invalid credentials"})
		return
	}

	if _, err := h.Auth.LogoutEverywhere(c.Request.Context(), user.ID); err != nil {
		h.respondError(c, err)
		return
	}

	h.Cookies.ClearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		status := http.StatusUnauthorized
		if authErr.Code == "too_many_attempts" {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": authErr.Code, "error_description": authErr.Message})
		return
	}

	if h.Logger != nil {
		h.Logger.Error("auth request failed", zap.Error(err))
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error"})
}
