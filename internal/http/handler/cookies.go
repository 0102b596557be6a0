package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slava-viktorov/simple-knowledge-base/internal/config"
	"github.com/slava-viktorov/simple-knowledge-base/internal/token"
)

// CookieManager writes and clears the auth cookies. Both cookies are
// httpOnly, secure, SameSite=Strict; max-age follows each token's configured
// lifetime. A zero refresh lifetime produces a session cookie.
type CookieManager struct {
	accessName  string
	refreshName string
	signer      *token.Signer
	cfg         config.Config
}

// NewCookieManager builds a manager over the configured cookie names.
func NewCookieManager(cfg config.Config, signer *token.Signer) *CookieManager {
	return &CookieManager{
		accessName:  cfg.AccessTokenCookie,
		refreshName: cfg.RefreshTokenCookie,
		signer:      signer,
		cfg:         cfg,
	}
}

// SetAuthCookies attaches both tokens to the response.
func (m *CookieManager) SetAuthCookies(c *gin.Context, tokens token.Pair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(m.refreshName, tokens.RefreshToken, int(m.signer.RefreshTokenExpiresIn().Seconds()), "/", "", true, true)
	c.SetCookie(m.accessName, tokens.AccessToken, int(m.cfg.AccessTokenTTL.Seconds()), "/", "", true, true)
}

// ClearAuthCookies expires both cookies.
func (m *CookieManager) ClearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(m.refreshName, "", -1, "/", "", true, true)
	c.SetCookie(m.accessName, "", -1, "/", "", true, true)
}

// AccessCookieName returns the configured access token cookie key.
func (m *CookieManager) AccessCookieName() string { return m.accessName }

// RefreshCookieName returns the configured refresh token cookie key.
func (m *CookieManager) RefreshCookieName() string { return m.refreshName }
