// Package api implements the HTTP handlers of the route planner service.
package api

import (
	"errors"
	"net/http"
	"strings"

	"routeplanner/internal/auth"
)

const defaultTenant = "t_demo"

var errUnauthenticated = errors.New("bearer token required")

// principal resolves the caller. A bearer token is verified when present.
// In dev mode requests without one fall back to the X-Tenant-Id and
// X-Role headers; in hmac mode they are rejected.
func (s *Server) principal(r *http.Request) (auth.Principal, error) {
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return s.Auth.Verify(strings.TrimSpace(authz[7:]))
	}
	if s.Auth.Mode != "dev" {
		return auth.Principal{}, errUnauthenticated
	}
	p := auth.Principal{Tenant: r.Header.Get("X-Tenant-Id"), Role: strings.ToLower(r.Header.Get("X-Role"))}
	if p.Tenant == "" {
		p.Tenant = defaultTenant
	}
	if p.Role == "" {
		p.Role = auth.RoleAdmin
	}
	return p, nil
}

// tenant returns the caller's tenant, writing the error response when the
// caller cannot be resolved or names another tenant in the body.
func (s *Server) tenant(w http.ResponseWriter, r *http.Request, bodyTenant string) (auth.Principal, bool) {
	p, err := s.principal(r)
	if err != nil {
		writeError(w, r, "Unauthorized", err)
		return p, false
	}
	if bodyTenant != "" && bodyTenant != p.Tenant {
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "tenantId does not match caller", r.URL.Path)
			return p, false
		}
		p.Tenant = bodyTenant
	}
	return p, true
}

func (s *Server) admin(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := s.tenant(w, r, "")
	if !ok {
		return p, false
	}
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return p, false
	}
	return p, true
}
