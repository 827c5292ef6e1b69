package router

import (
	"go-websecurity-api/handler"
	"go-websecurity-api/model"
	"go-websecurity-api/service"
	"net/http"

	_ "go-websecurity-api/docs"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Dependencies groups everything the router wires into routes and the
// middleware chain.
type Dependencies struct {
	Auth              *handler.AuthHandler
	Notes             *handler.NoteHandler
	Authenticator     *handler.Authenticator
	Limiter           *service.RateLimiter
	RateLimitPrefixes []string
}

// NewRouter builds the route table and wraps it, outermost first, in
// request logging, security headers, rate limiting and authentication.
// Route metrics sit directly on the mux.
func NewRouter(deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	mux.Handle("POST /auth/register", handler.ErrorHandlingMiddleware(deps.Auth.Register))
	mux.Handle("POST /auth/login", handler.ErrorHandlingMiddleware(deps.Auth.Login))
	mux.Handle("POST /auth/refresh", handler.ErrorHandlingMiddleware(deps.Auth.Refresh))
	mux.Handle("POST /auth/logout", handler.ErrorHandlingMiddleware(deps.Auth.Logout))

	notes := func(fn http.HandlerFunc) http.Handler { return handler.RequireAuth(fn) }
	mux.Handle("GET /api/notes", notes(handler.ErrorHandlingMiddleware(deps.Notes.ListNotes)))
	mux.Handle("POST /api/notes", notes(handler.ErrorHandlingMiddleware(deps.Notes.CreateNote)))
	mux.Handle("GET /api/notes/_count", notes(handler.ErrorHandlingMiddleware(deps.Notes.CountNotes)))
	mux.Handle("GET /api/notes/{id}", notes(handler.ErrorHandlingMiddleware(deps.Notes.GetNote)))
	mux.Handle("PUT /api/notes/{id}", notes(handler.ErrorHandlingMiddleware(deps.Notes.UpdateNote)))
	mux.Handle("DELETE /api/notes/{id}", notes(handler.ErrorHandlingMiddleware(deps.Notes.DeleteNote)))

	userOnly := handler.RequireRole(model.RoleUser, model.RoleAdmin)
	adminOnly := handler.RequireRole(model.RoleAdmin)
	mux.Handle("GET /user", userOnly(http.HandlerFunc(handler.UserGreeting)))
	mux.Handle("GET /user/home", userOnly(http.HandlerFunc(handler.UserHome)))
	mux.Handle("GET /admin", adminOnly(http.HandlerFunc(handler.AdminGreeting)))
	mux.Handle("GET /admin/home", adminOnly(http.HandlerFunc(handler.AdminHome)))
	mux.Handle("GET /admin/test", adminOnly(http.HandlerFunc(handler.AdminTest)))

	var h http.Handler = handler.Metrics(mux)
	h = deps.Authenticator.Middleware(h)
	h = handler.RateLimitMiddleware(deps.Limiter, deps.RateLimitPrefixes)(h)
	h = handler.SecurityHeaders(h)
	h = handler.RequestLogger(h)
	return h
}
