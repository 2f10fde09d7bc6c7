package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taskdeck/backend/internal/client"
	"github.com/taskdeck/backend/internal/service"
)

const oauthStateCookie = "taskdeck_oauth_state"

type OAuthHandler struct {
	svc      *service.AuthService
	provider *client.GoogleProvider
}

func NewOAuthHandler(svc *service.AuthService, provider *client.GoogleProvider) *OAuthHandler {
	return &OAuthHandler{svc: svc, provider: provider}
}

// Start godoc
// @Summary Begin Google delegated login
// @Tags auth
// @Success 302
// @Router /api/auth/oauth/google [get]
func (h *OAuthHandler) Start(c *gin.Context) {
	state := uuid.NewString()

	cfg := h.svc.CookieConfig()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 300, "/", cfg.Domain, cfg.Secure, true)

	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// Callback godoc
// @Summary Google delegated login callback
// @Description Verifies the ID token, resolves the principal, issues a session.
// @Tags auth
// @Success 303
// @Router /api/auth/oauth/google/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	cfg := h.svc.CookieConfig()

	expectedState, err := c.Cookie(oauthStateCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, "", -1, "/", cfg.Domain, cfg.Secure, true)

	if err != nil || expectedState == "" || c.Query("state") != expectedState {
		c.Redirect(http.StatusSeeOther, loginPath+"?error=oauth")
		return
	}

	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusSeeOther, loginPath+"?error=oauth")
		return
	}

	identity, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		c.Redirect(http.StatusSeeOther, loginPath+"?error=oauth")
		return
	}

	signed, _, err := h.svc.LoginDelegated(c.Request.Context(), identity)
	if err != nil {
		c.Redirect(http.StatusSeeOther, loginPath+"?error=oauth")
		return
	}

	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, signed, cfg.MaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.Redirect(http.StatusSeeOther, defaultLandingPath)
}
