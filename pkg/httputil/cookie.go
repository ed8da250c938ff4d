package httputil

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gizilens/backend/internal/config"
)

const refreshCookiePrefix = "refresh_token_"

var (
	ErrNoCookie = errors.New("refresh cookie not found")
	ErrNoBearer = errors.New("bearer token not found")
)

// RefreshCookieName returns the cookie that carries the refresh token of role.
func RefreshCookieName(role string) string {
	return refreshCookiePrefix + role
}

func SetRefreshCookie(w http.ResponseWriter, cfg config.CookieConfig, role, token string, ttl time.Duration) {
	cookie := baseCookie(cfg, role)
	cookie.Value = token
	cookie.MaxAge = int(ttl.Seconds())
	http.SetCookie(w, cookie)
}

// ClearRefreshCookie expires the role's refresh cookie on the client.
func ClearRefreshCookie(w http.ResponseWriter, cfg config.CookieConfig, role string) {
	cookie := baseCookie(cfg, role)
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func GetRefreshCookie(r *http.Request, role string) (string, error) {
	cookie, err := r.Cookie(RefreshCookieName(role))
	if err != nil || cookie.Value == "" {
		return "", ErrNoCookie
	}
	return cookie.Value, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrNoBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoBearer
	}
	return token, nil
}

func baseCookie(cfg config.CookieConfig, role string) *http.Cookie {
	cookie := &http.Cookie{
		Name:     RefreshCookieName(role),
		Path:     "/",
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: sameSite(cfg.SameSite),
	}
	if cfg.Domain != "" {
		cookie.Domain = "." + strings.TrimPrefix(cfg.Domain, ".")
	}
	return cookie
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
