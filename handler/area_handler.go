package handler

import (
	"go-websecurity-api/model"
	"net/http"
)

// Role-gated landing endpoints. The router applies RequireRole before
// these run, so the identity is always present.

func UserGreeting(w http.ResponseWriter, r *http.Request) {
	id, _ := model.IdentityFromContext(r.Context())
	writeText(w, http.StatusOK, "Hello USER: "+id.Username)
}

func AdminGreeting(w http.ResponseWriter, r *http.Request) {
	id, _ := model.IdentityFromContext(r.Context())
	writeText(w, http.StatusOK, "Hello ADMIN: "+id.Username)
}

func UserHome(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "USER area")
}

func AdminHome(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ADMIN area")
}

func AdminTest(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ADMIN OK")
}
