// file: service/cookie_service.go

package service

import (
	"net/http"
	"strings"
	"time"
)

// CookieConfig carries cookie names, scope and attributes.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	RefreshPath string
	Secure      bool
	SameSite    http.SameSite
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// ParseSameSite maps a config value onto http.SameSite. Unknown values
// fall back to Strict.
func ParseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

// CookieService builds, clears and reads the session cookies.
type CookieService struct {
	cfg CookieConfig
}

func NewCookieService(cfg CookieConfig) *CookieService {
	if cfg.AccessName == "" {
		cfg.AccessName = "access_token"
	}
	if cfg.RefreshName == "" {
		cfg.RefreshName = "refresh_token"
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = "/auth"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteStrictMode
	}
	return &CookieService{cfg: cfg}
}

func (s *CookieService) build(name, value, path string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: s.cfg.SameSite,
	}
	if value == "" {
		// Serialises as Max-Age=0.
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	} else {
		c.MaxAge = int(ttl / time.Second)
	}
	return c
}

func (s *CookieService) BuildAccessCookie(token string) *http.Cookie {
	return s.build(s.cfg.AccessName, token, "/", s.cfg.AccessTTL)
}

func (s *CookieService) BuildRefreshCookie(token string) *http.Cookie {
	return s.build(s.cfg.RefreshName, token, s.cfg.RefreshPath, s.cfg.RefreshTTL)
}

func (s *CookieService) ClearAccessCookie() *http.Cookie {
	return s.build(s.cfg.AccessName, "", "/", 0)
}

func (s *CookieService) ClearRefreshCookie() *http.Cookie {
	return s.build(s.cfg.RefreshName, "", s.cfg.RefreshPath, 0)
}

// ReadAccessToken prefers the access cookie and falls back to an
// "Authorization: Bearer" header.
func (s *CookieService) ReadAccessToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(s.cfg.AccessName); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value, true
	}

	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ReadRefreshToken returns the refresh cookie value when present and not
// blank.
func (s *CookieService) ReadRefreshToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cfg.RefreshName)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return "", false
	}
	return c.Value, true
}
