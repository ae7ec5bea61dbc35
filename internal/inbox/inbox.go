// Package inbox handles the Follow and Undo(Follow) activities remote
// servers post to the bridge. Handlers never return errors to the HTTP
// layer; every outcome is reported as a Result and logged.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/primal-host/primal-bridge/internal/federation"
	"github.com/primal-host/primal-bridge/internal/metrics"
	"github.com/primal-host/primal-bridge/internal/user"
)

// Users admits local usernames.
type Users interface {
	EnsureUser(ctx context.Context, username string) (*user.User, error)
}

// Registry stores follow relationships.
type Registry interface {
	Record(ctx context.Context, username, actor string) error
	Remove(ctx context.Context, username, actor string) error
}

// Sender delivers an activity from a local user to a remote actor.
type Sender interface {
	Send(ctx context.Context, username, recipient string, activity any) error
}

// Resolver dereferences a remote activity URI, signing as username.
type Resolver interface {
	FetchActivity(ctx context.Context, username, uri string) (*federation.Activity, error)
}

// Handler applies inbound activities to the follower registry.
type Handler struct {
	users     Users
	followers Registry
	sender    Sender
	resolver  Resolver
	urls      *federation.URLs
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewHandler creates a Handler.
func NewHandler(users Users, followers Registry, sender Sender, resolver Resolver, urls *federation.URLs, log *slog.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		users:     users,
		followers: followers,
		sender:    sender,
		resolver:  resolver,
		urls:      urls,
		log:       log.With("component", "inbox"),
		metrics:   m,
	}
}

// Handle routes an activity by type. recipient is the username from the
// inbox path, or "" for the shared inbox.
func (h *Handler) Handle(ctx context.Context, recipient string, act *federation.Activity) Result {
	switch act.Type {
	case federation.TypeFollow:
		return h.HandleFollow(ctx, recipient, act)
	case federation.TypeUndo:
		return h.HandleUndo(ctx, recipient, act)
	}
	res := dropped("unsupported activity type")
	h.report(act, res)
	return res
}

// HandleFollow records the follow and answers it with an Accept. A
// duplicate Follow is answered again.
func (h *Handler) HandleFollow(ctx context.Context, recipient string, act *federation.Activity) Result {
	res := h.follow(ctx, recipient, act)
	h.report(act, res)
	return res
}

func (h *Handler) follow(ctx context.Context, recipient string, act *federation.Activity) Result {
	username := h.localUsername(recipient, act.ObjectID())
	if username == "" {
		return dropped("unresolvable local actor")
	}
	u, err := h.users.EnsureUser(ctx, username)
	if err != nil {
		return failed(fmt.Errorf("inbox: ensure user %s: %w", username, err))
	}
	if u == nil {
		return dropped("unknown local actor")
	}
	username = u.Username

	remote := act.ActorID()
	if !federation.IsAbsoluteURI(remote) {
		return dropped("missing remote actor")
	}
	if err := h.followers.Record(ctx, username, remote); err != nil {
		return failed(fmt.Errorf("inbox: record follower: %w", err))
	}

	if !federation.IsAbsoluteURI(string(act.ID)) {
		return dropped("follow has no usable id")
	}

	local := h.urls.ActorURI(username)
	accept := &federation.Accept{
		Context: federation.ActivityStreamsContext,
		ID:      h.urls.NewAcceptID(),
		Type:    federation.TypeAccept,
		Actor:   local,
		To:      federation.Audience{remote},
		Object: &federation.Activity{
			ID:     act.ID,
			Type:   federation.TypeFollow,
			Actor:  federation.RefTo(remote),
			Object: federation.RefTo(local),
		},
	}
	if err := h.sender.Send(ctx, username, remote, accept); err != nil {
		return failed(fmt.Errorf("inbox: send accept: %w", err))
	}
	return handled()
}

// HandleUndo removes the follower named by an Undo(Follow). Undo of any
// other activity is dropped.
func (h *Handler) HandleUndo(ctx context.Context, recipient string, act *federation.Activity) Result {
	res := h.undo(ctx, recipient, act)
	h.report(act, res)
	return res
}

func (h *Handler) undo(ctx context.Context, recipient string, act *federation.Activity) Result {
	if act.Object == nil || (act.Object.ID == "" && act.Object.Embedded == nil) {
		return dropped("missing object")
	}

	// A bare object URI on the shared inbox does not name a local actor.
	inner := act.Object.Embedded
	username := h.localUsername(recipient, inner.ObjectID())
	if username == "" {
		return dropped("unresolvable local actor")
	}

	if inner == nil {
		fetched, err := h.resolver.FetchActivity(ctx, username, act.Object.ID)
		if err != nil {
			return failed(fmt.Errorf("inbox: resolve undo object: %w", err))
		}
		inner = fetched
	}
	if inner.Type != federation.TypeFollow {
		return dropped("undo of non-follow")
	}

	remote := act.ActorID()
	if remote == "" {
		remote = inner.ActorID()
	}
	if remote == "" {
		return dropped("missing remote actor")
	}
	if followActor := inner.ActorID(); followActor != "" && followActor != remote {
		return dropped("undo actor does not own the follow")
	}

	if err := h.followers.Remove(ctx, username, remote); err != nil {
		return failed(fmt.Errorf("inbox: remove follower: %w", err))
	}
	return handled()
}

// localUsername prefers the inbox path; shared-inbox deliveries name the
// local actor through the object URI.
func (h *Handler) localUsername(recipient, objectURI string) string {
	if recipient = strings.TrimSpace(recipient); recipient != "" {
		return recipient
	}
	name, _ := h.urls.ParseActorURI(objectURI)
	return name
}

func (h *Handler) report(act *federation.Activity, res Result) {
	h.metrics.InboxActivity(act.Type, res.Status.String())

	attrs := []any{"type", act.Type, "id", string(act.ID), "actor", act.ActorID()}
	switch res.Status {
	case Handled:
		h.log.Info("activity handled", attrs...)
	case Dropped:
		h.log.Warn("activity dropped", append(attrs, "reason", res.Reason)...)
	case Failed:
		h.log.Error("activity failed", append(attrs, "error", res.Err)...)
	}
}
