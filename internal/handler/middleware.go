package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskdeck/backend/internal/service"
)

const principalKey = "principal_id"

const (
	loginPath          = "/auth/login"
	defaultLandingPath = "/app"
)

type pathClass int

const (
	classPublic pathClass = iota
	classProtected
	classAuthOnly
)

// classifyPath buckets a request path for the admission policy. Application
// screens need a session; auth screens must not be shown to a logged-in
// user; everything else (including the JSON API, which carries its own
// guard) passes through. Matching is on whole path segments, so "/apple"
// is not under "/app".
func classifyPath(path string) pathClass {
	switch {
	case underSegment(path, "/auth"):
		return classAuthOnly
	case underSegment(path, "/app"),
		underSegment(path, "/tasks"),
		underSegment(path, "/settings"):
		return classProtected
	}
	return classPublic
}

func underSegment(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// ExtractToken reads the bearer token: canonical cookie first, then the
// legacy cookie name, then the forwarded header.
func ExtractToken(c *gin.Context) string {
	if v, err := c.Cookie(service.SessionCookieName); err == nil && v != "" {
		return v
	}
	if v, err := c.Cookie(service.LegacySessionCookieName); err == nil && v != "" {
		return v
	}
	return strings.TrimSpace(c.GetHeader(service.SessionTokenHeader))
}

// Gatekeeper applies the admission policy table on every request:
//
//	valid   + auth-only  -> redirect to the landing page
//	valid   + protected  -> allow, principal injected
//	valid   + public     -> allow
//	invalid + protected  -> redirect to login with callbackUrl
//	invalid + auth-only  -> allow (show the form)
//	invalid + public     -> allow
func Gatekeeper(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		class := classifyPath(c.Request.URL.Path)

		var verdict service.Verdict
		if token := ExtractToken(c); token != "" {
			verdict = auth.ValidateToken(c.Request.Context(), token)
		}

		switch {
		case verdict.Valid && class == classAuthOnly:
			c.Redirect(http.StatusSeeOther, defaultLandingPath)
			c.Abort()
			return
		case verdict.Valid:
			c.Set(principalKey, verdict.PrincipalID)
		case class == classProtected:
			callback := url.QueryEscape(c.Request.URL.Path)
			c.Redirect(http.StatusSeeOther, loginPath+"?callbackUrl="+callback)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireSession guards JSON API routes. The rejection is uniform: the
// client never learns whether the token was malformed, revoked, or expired.
func RequireSession(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		// The gatekeeper may already have validated this request.
		if GetPrincipalID(c) != "" {
			c.Next()
			return
		}

		token := ExtractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		verdict := auth.ValidateToken(c.Request.Context(), token)
		if !verdict.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(principalKey, verdict.PrincipalID)
		c.Next()
	}
}

func GetPrincipalID(c *gin.Context) string {
	if value, ok := c.Get(principalKey); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Session-Token")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
