package handler

import (
	"go-websecurity-api/logger"
	"go-websecurity-api/service"
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the host part of the connection's remote address.
// Forwarding headers are ignored since clients control them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware throttles requests whose path starts with one of the
// prefixes, keyed by client IP. Other paths bypass the limiter.
func RateLimitMiddleware(limiter *service.RateLimiter, prefixes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasAnyPrefix(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !limiter.Allow(ip) {
				logger.Log.WithField("client_ip", ip).Warn("Rate limit exceeded")
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte("Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
