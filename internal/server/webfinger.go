package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/primal-host/primal-bridge/internal/federation"
)

type jrdLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

type jrd struct {
	Subject string    `json:"subject"`
	Aliases []string  `json:"aliases,omitempty"`
	Links   []jrdLink `json:"links"`
}

// handleWebfinger resolves acct:user@host to the user's actor URI.
func (s *Server) handleWebfinger(c echo.Context) error {
	resource := c.QueryParam("resource")
	if resource == "" {
		return apiError(c, http.StatusBadRequest, "InvalidRequest", "resource parameter is required")
	}

	username, host, ok := parseAcct(resource)
	if !ok {
		return apiError(c, http.StatusBadRequest, "InvalidRequest", "resource must be acct:user@host")
	}
	if !strings.EqualFold(host, s.deps.URLs.Host()) {
		return apiError(c, http.StatusNotFound, "ActorNotFound", "Unknown host: "+host)
	}

	u, err := s.deps.Accounts.EnsureUser(c.Request().Context(), username)
	if err != nil {
		s.log.Error("ensure user", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to load actor")
	}
	if u == nil {
		return actorNotFound(c, username)
	}

	id := s.deps.URLs.ActorURI(u.Username)
	return jsonAs(c, http.StatusOK, "application/jrd+json", jrd{
		Subject: "acct:" + u.Username + "@" + s.deps.URLs.Host(),
		Aliases: []string{id},
		Links: []jrdLink{{
			Rel:  "self",
			Type: federation.ContentType,
			Href: id,
		}},
	})
}

// parseAcct splits "acct:user@host" (the scheme is optional).
func parseAcct(resource string) (username, host string, ok bool) {
	rest := strings.TrimPrefix(resource, "acct:")
	rest = strings.TrimPrefix(rest, "@")
	username, host, ok = strings.Cut(rest, "@")
	if !ok || username == "" || host == "" {
		return "", "", false
	}
	return username, host, true
}
