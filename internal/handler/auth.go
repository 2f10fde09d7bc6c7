package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/service"
)

type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Register godoc
// @Summary Register a new account
// @Description Creates the principal, issues a session and redirects to the app.
// @Tags auth
// @Accept json
// @Param request body model.RegisterRequest true "Name, email and password"
// @Success 303
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	signed, _, err := h.svc.IssueSession(c.Request.Context(), user)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setSessionCookie(c, signed)
	c.Redirect(http.StatusSeeOther, defaultLandingPath)
}

// Login godoc
// @Summary Login with email and password
// @Tags auth
// @Accept json
// @Param request body model.LoginRequest true "Email and password"
// @Success 303
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	signed, _, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setSessionCookie(c, signed)

	target := defaultLandingPath
	if cb := c.Query("callbackUrl"); cb != "" && classifyPath(cb) == classProtected {
		target = cb
	}
	c.Redirect(http.StatusSeeOther, target)
}

// Logout godoc
// @Summary Logout
// @Description Deletes the server-side session and clears the cookie.
// @Tags auth
// @Produce json
// @Success 200
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	// Revocation failures are logged by the service; the response stays
	// uniform and the cookie is cleared regardless.
	_ = h.svc.Logout(c.Request.Context(), ExtractToken(c))
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// SessionCheck godoc
// @Summary Validate a raw session token
// @Description Narrow internal check for edge components. Uniform rejection.
// @Tags auth
// @Produce json
// @Param X-Session-Token header string true "Raw session token"
// @Success 200 {object} model.SessionCheckResponse
// @Failure 401 {object} model.SessionCheckResponse
// @Router /api/auth/session-check [get]
func (h *AuthHandler) SessionCheck(c *gin.Context) {
	raw := c.GetHeader(service.SessionTokenHeader)
	if raw == "" {
		raw = ExtractToken(c)
	}

	verdict := h.svc.ValidateToken(c.Request.Context(), raw)
	if !verdict.Valid {
		c.JSON(http.StatusUnauthorized, model.SessionCheckResponse{Valid: false})
		return
	}
	c.JSON(http.StatusOK, model.SessionCheckResponse{
		Valid:       true,
		PrincipalID: verdict.PrincipalID,
	})
}

// Me godoc
// @Summary Get current principal
// @Tags auth
// @Produce json
// @Success 200
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), GetPrincipalID(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"image": user.Image,
	})
}

// ResetRequest godoc
// @Summary Request a password reset
// @Description Always answers ok, regardless of account existence.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResetRequest true "Account email"
// @Success 200
// @Router /api/auth/reset/request [post]
func (h *AuthHandler) ResetRequest(c *gin.Context) {
	var req model.ResetRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	// Uniform response; internal failures are logged by the service.
	_ = h.svc.RequestPasswordReset(c.Request.Context(), req.Email)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ResetConfirm godoc
// @Summary Confirm a password reset
// @Description Updates the credential and revokes all sessions of the account.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResetConfirmRequest true "Reset token and new password"
// @Success 200
// @Failure 400 {object} model.ErrorResponse
// @Router /api/auth/reset/confirm [post]
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req model.ResetConfirmRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		return
	}

	if err := h.svc.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, service.ErrTokenInvalid) || errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
			return
		}
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_updated"})
}

// UpdateProfile godoc
// @Summary Update display name or avatar
// @Tags profile
// @Accept json
// @Produce json
// @Param request body model.ProfileUpdateRequest true "Profile fields"
// @Success 200
// @Failure 401 {object} model.ErrorResponse
// @Router /api/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req model.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var name, image *string
	if req.Name != "" {
		name = &req.Name
	}
	if req.Image != "" {
		image = &req.Image
	}

	if err := h.svc.UpdateProfile(c.Request.Context(), GetPrincipalID(c), name, image); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, token, cfg.MaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
