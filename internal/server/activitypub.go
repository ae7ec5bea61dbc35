package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/primal-host/primal-bridge/internal/account"
	"github.com/primal-host/primal-bridge/internal/federation"
)

// maxInboxBody bounds inbound activity bodies.
const maxInboxBody = 1 << 20

func actorNotFound(c echo.Context, username string) error {
	return apiError(c, http.StatusNotFound, "ActorNotFound", "No actor found for: "+username)
}

// handleActor serves the Person document of a bridged user, generating
// the user's key pair on first request.
func (s *Server) handleActor(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("identifier")

	u, err := s.deps.Accounts.EnsureUser(ctx, username)
	if err != nil {
		s.log.Error("ensure user", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to load actor")
	}
	if u == nil {
		return actorNotFound(c, username)
	}

	kp, err := s.deps.Accounts.EnsureKeyPair(ctx, username)
	if errors.Is(err, account.ErrUnknownActor) {
		return actorNotFound(c, username)
	}
	if err != nil {
		s.log.Error("ensure key pair", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to load actor keys")
	}
	pem, err := kp.PublicKeyPEM()
	if err != nil {
		s.log.Error("encode public key", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to encode actor key")
	}

	urls := s.deps.URLs
	id := urls.ActorURI(u.Username)
	actor := &federation.Actor{
		Context:           []any{federation.ActivityStreamsContext, federation.SecurityContext},
		ID:                id,
		Type:              "Person",
		PreferredUsername: u.Username,
		Name:              u.Username,
		Summary:           u.Description,
		URL:               id,
		Inbox:             urls.InboxURI(u.Username),
		Outbox:            urls.OutboxURI(u.Username),
		Followers:         urls.FollowersURI(u.Username),
		Endpoints:         &federation.Endpoints{SharedInbox: urls.SharedInboxURI()},
		PublicKey: &federation.PublicKey{
			ID:           urls.KeyID(u.Username),
			Owner:        id,
			PublicKeyPem: pem,
		},
	}
	if u.CreatedAt > 0 {
		actor.Published = federation.FormatTime(u.CreatedAt)
	}
	if u.AvatarURL != "" {
		actor.Icon = &federation.Image{Type: "Image", URL: u.AvatarURL}
	}
	return activityJSON(c, http.StatusOK, actor)
}

// handleOutbox serves the user's posts as a single-page collection.
func (s *Server) handleOutbox(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("identifier")

	u, err := s.deps.Accounts.EnsureUser(ctx, username)
	if err != nil {
		s.log.Error("ensure user", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to load actor")
	}
	if u == nil {
		return actorNotFound(c, username)
	}

	items, err := s.deps.Outbox.List(ctx, u.Username)
	if err != nil {
		s.log.Error("list outbox", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to list outbox")
	}
	return activityJSON(c, http.StatusOK, &federation.OrderedCollection{
		Context:      federation.NoteContext(),
		ID:           s.deps.URLs.OutboxURI(u.Username),
		Type:         "OrderedCollection",
		TotalItems:   len(items),
		OrderedItems: items,
	})
}

// handleFollowers publishes the follower count only; the member list is
// not exposed.
func (s *Server) handleFollowers(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("identifier")

	u, err := s.deps.Accounts.EnsureUser(ctx, username)
	if err != nil {
		s.log.Error("ensure user", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to load actor")
	}
	if u == nil {
		return actorNotFound(c, username)
	}

	n, err := s.deps.Followers.Count(ctx, u.Username)
	if err != nil {
		s.log.Error("count followers", "username", username, "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to count followers")
	}
	return activityJSON(c, http.StatusOK, &federation.OrderedCollection{
		Context:      federation.ActivityStreamsContext,
		ID:           s.deps.URLs.FollowersURI(u.Username),
		Type:         "OrderedCollection",
		TotalItems:   n,
		OrderedItems: []string{},
	})
}

// handleInbox serves both the per-user and the shared inbox. Any valid JSON
// body is accepted; what happens to it is never reported back to the
// sender.
func (s *Server) handleInbox(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxInboxBody))
	if err != nil {
		return apiError(c, http.StatusBadRequest, "InvalidRequest", "Failed to read body")
	}
	if !json.Valid(body) {
		return apiError(c, http.StatusBadRequest, "InvalidRequest", "Invalid JSON body")
	}

	var act federation.Activity
	if err := json.Unmarshal(body, &act); err != nil {
		s.log.Warn("activity dropped", "reason", "not an activity object", "error", err)
		return c.NoContent(http.StatusAccepted)
	}

	s.deps.Inbox.Handle(c.Request().Context(), c.Param("identifier"), &act)
	return c.NoContent(http.StatusAccepted)
}
