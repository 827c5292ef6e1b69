package handler

import (
	"go-websecurity-api/common"
	"go-websecurity-api/logger"
	"go-websecurity-api/model"
	"go-websecurity-api/service"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Authenticator establishes the caller's identity from an access token in
// the access cookie or a bearer header. It never rejects a request itself;
// RequireAuth and RequireRole decide what anonymous callers may reach.
type Authenticator struct {
	tokens  *service.TokenService
	cookies *service.CookieService
}

func NewAuthenticator(tokens *service.TokenService, cookies *service.CookieService) *Authenticator {
	return &Authenticator{tokens: tokens, cookies: cookies}
}

// Identify returns the identity carried by the request's access token.
// Missing, invalid, expired and refresh-typed tokens all yield false.
func (a *Authenticator) Identify(r *http.Request) (model.Identity, bool) {
	raw, ok := a.cookies.ReadAccessToken(r)
	if !ok {
		return model.Identity{}, false
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil || claims.Type != model.TokenTypeAccess {
		return model.Identity{}, false
	}

	return model.Identity{
		Username: claims.Subject,
		UserID:   claims.UserID,
		Role:     claims.Role,
	}, true
}

// Middleware attaches the identity, when there is one, to the request
// context for the remainder of this request only.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := a.Identify(r); ok {
			r = r.WithContext(model.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func denyLog(r *http.Request) *logrus.Entry {
	return logger.Log.WithFields(logrus.Fields{
		"path":   r.URL.Path,
		"method": r.Method,
		"remote": r.RemoteAddr,
	})
}

// RequireAuth answers 401 for anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := model.IdentityFromContext(r.Context()); !ok {
			denyLog(r).Warn("Unauthorized access")
			common.NewAppError(http.StatusUnauthorized, "Authentication required", nil).Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 for anonymous requests and 403 when the caller
// holds none of the given roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := model.IdentityFromContext(r.Context())
			if !ok {
				denyLog(r).Warn("Unauthorized access")
				common.NewAppError(http.StatusUnauthorized, "Authentication required", nil).Send(w)
				return
			}
			if !id.HasRole(roles...) {
				denyLog(r).WithField("role", id.Role).Warn("Forbidden access")
				common.NewAppError(http.StatusForbidden, "Access denied", nil).Send(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
