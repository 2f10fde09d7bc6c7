package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/taskdeck/backend/internal/client"
	"github.com/taskdeck/backend/internal/config"
	"github.com/taskdeck/backend/internal/db"
	"github.com/taskdeck/backend/internal/model"
	"github.com/taskdeck/backend/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookieName is the canonical session cookie; the legacy name is
	// still read (and decoded with its own salt) during the transition.
	SessionCookieName       = "taskdeck_session"
	LegacySessionCookieName = "__Secure-taskdeck_session"

	// SessionTokenHeader lets edge components forward the raw token without
	// a cookie jar.
	SessionTokenHeader = "X-Session-Token"

	minPasswordLength = 6
	resetTokenTTL     = time.Hour
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrRateLimited        = errors.New("rate limited")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrMisconfigured      = errors.New("auth config invalid")
)

type UserStore interface {
	CreateUser(ctx context.Context, name *string, email string, passwordHash, image *string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) error
	UpdateUserProfile(ctx context.Context, id string, name, image *string) error
}

type SessionStore interface {
	InsertSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteUserSessions(ctx context.Context, userID string) error
}

type ResetTokenStore interface {
	ReplaceResetToken(ctx context.Context, t *model.PasswordResetToken) error
	GetResetToken(ctx context.Context, token string) (*model.PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, id string) error
}

type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

type AuthService struct {
	users        UserStore
	sessions     SessionStore
	resets       ResetTokenStore
	codec        *token.Codec
	mailer       client.Mailer
	sessionTTL   time.Duration
	storeTimeout time.Duration
	cookieCfg    CookieConfig
	baseURL      string
	log          zerolog.Logger
	now          func() time.Time
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	resets ResetTokenStore,
	codec *token.Codec,
	mailer client.Mailer,
	cfg config.AuthConfig,
	baseURL string,
	log zerolog.Logger,
) (*AuthService, error) {
	sessionTTL, err := time.ParseDuration(cfg.SessionTTL)
	if err != nil || sessionTTL <= 0 {
		return nil, fmt.Errorf("%w: invalid SESSION_TTL", ErrMisconfigured)
	}

	storeTimeout, err := time.ParseDuration(cfg.StoreTimeout)
	if err != nil || storeTimeout <= 0 {
		return nil, fmt.Errorf("%w: invalid STORE_TIMEOUT", ErrMisconfigured)
	}

	cookieSecure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", ErrMisconfigured)
	}

	cookieSameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", ErrMisconfigured)
	}

	if cookieSameSite == http.SameSiteNoneMode && !cookieSecure {
		return nil, fmt.Errorf("%w: SameSite=None requires Secure cookie", ErrMisconfigured)
	}

	cookiePath := cfg.CookiePath
	if strings.TrimSpace(cookiePath) == "" {
		cookiePath = "/"
	}

	return &AuthService{
		users:        users,
		sessions:     sessions,
		resets:       resets,
		codec:        codec,
		mailer:       mailer,
		sessionTTL:   sessionTTL,
		storeTimeout: storeTimeout,
		cookieCfg: CookieConfig{
			Name:     SessionCookieName,
			Path:     cookiePath,
			Domain:   cfg.CookieDomain,
			Secure:   cookieSecure,
			SameSite: cookieSameSite,
			MaxAge:   int(sessionTTL.Seconds()),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		now:     time.Now,
	}, nil
}

func (s *AuthService) CookieConfig() CookieConfig {
	return s.cookieCfg
}

// Register creates a principal with a bcrypt-hashed credential. The caller
// issues the first session afterwards (auto-login).
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.users.GetUserByEmail(tctx, email); err == nil {
		return nil, ErrConflict
	} else if !db.IsNoRows(err) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	hashStr := string(hash)
	var namePtr *string
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		namePtr = &trimmed
	}

	user, err := s.users.CreateUser(tctx, namePtr, email, &hashStr, nil)
	if err != nil {
		if db.IsUniqueViolation(err) {
			// Lost the race against a concurrent registration of the
			// same email; same outcome as the pre-insert check.
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

// Login resolves the principal by password and issues a session. Unknown
// email, passwordless account, and wrong password all fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetUserByEmail(tctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.PasswordHash == nil {
		// Delegated-login-only account; indistinguishable from a bad password.
		return "", time.Time{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.IssueSession(ctx, user)
}

// LoginDelegated trusts the upstream-verified identity to resolve or create
// the principal, then issues a session.
func (s *AuthService) LoginDelegated(ctx context.Context, identity *client.Identity) (string, time.Time, error) {
	email := normalizeEmail(identity.Email)
	if email == "" {
		return "", time.Time{}, ErrInvalidCredentials
	}

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetUserByEmail(tctx, email)
	if err != nil {
		if !db.IsNoRows(err) {
			return "", time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		var namePtr, imagePtr *string
		if identity.Name != "" {
			namePtr = &identity.Name
		}
		if identity.Picture != "" {
			imagePtr = &identity.Picture
		}

		user, err = s.users.CreateUser(tctx, namePtr, email, nil, imagePtr)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		s.log.Info().Str("user_id", user.ID).Str("provider", identity.Provider).
			Msg("principal created from delegated login")
	}

	return s.IssueSession(ctx, user)
}

// IssueSession creates the server-side session record and encodes the
// signed token that references it.
func (s *AuthService) IssueSession(ctx context.Context, user *model.User) (string, time.Time, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return "", time.Time{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.sessionTTL)

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.sessions.InsertSession(tctx, sessionID, user.ID, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	claims := token.Claims{
		Name:         deref(user.Name),
		Email:        user.Email,
		Picture:      deref(user.Image),
		SessionToken: sessionID,
	}
	claims.Subject = user.ID
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	signed, err := s.codec.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Logout deletes the session referenced by the token. Undecodable tokens
// are a no-op; there is nothing server-side to revoke.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}

	claims, err := s.codec.Decode(rawToken)
	if err != nil || claims.SessionToken == "" {
		return nil
	}

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.sessions.DeleteSession(tctx, claims.SessionToken); err != nil {
		// The client drops the cookie either way, but the row is still
		// live until the store answers or the session ages out.
		s.log.Error().Err(err).Str("user_id", claims.Subject).
			Msg("logout failed to revoke session")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RequestPasswordReset issues a reset token and hands it to the mailer.
// The outcome is uniform to the caller regardless of account existence.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.users.GetUserByEmail(tctx, email); err != nil {
		if db.IsNoRows(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	reset := &model.PasswordResetToken{
		ID:        uuid.NewString(),
		Email:     email,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(resetTokenTTL),
	}
	if err := s.resets.ReplaceResetToken(tctx, reset); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	resetURL := fmt.Sprintf("%s/auth/reset/confirm?token=%s", s.baseURL, reset.Token)
	if err := s.mailer.SendPasswordReset(ctx, email, resetURL); err != nil {
		s.log.Error().Err(err).Msg("password reset mail delivery failed")
	}
	return nil
}

// ConfirmPasswordReset updates the credential and revokes every existing
// session of the principal, so stolen tokens die with the old password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrInvalidInput
	}

	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	reset, err := s.resets.GetResetToken(tctx, tokenStr)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !s.now().Before(reset.ExpiresAt) {
		return ErrTokenInvalid
	}

	user, err := s.users.GetUserByEmail(tctx, reset.Email)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.users.UpdateUserPassword(tctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.resets.DeleteResetToken(tctx, reset.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.sessions.DeleteUserSessions(tctx, user.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("password reset completed, all sessions revoked")
	return nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetUserByID(tctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, name, image *string) error {
	tctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.users.UpdateUserProfile(tctx, userID, name, image); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func validateCredentials(email, password string) error {
	if !strings.Contains(email, "@") || len(email) > 254 {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLength || len(password) > 128 {
		return ErrInvalidInput
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newSessionID() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, ErrInvalidInput
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
