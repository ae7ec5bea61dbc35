// Package federation is the bridge's ActivityPub collaborator: actor and
// collection URIs, the activity vocabulary, key generation, signed fetches
// of remote objects and the outbound delivery queue. The bridge core only
// calls into it; it never signs or dispatches HTTP requests itself.
package federation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// URLs builds and parses the URIs of local actors under one origin.
type URLs struct {
	origin *url.URL
}

// NewURLs parses origin (scheme and host, e.g. "https://bridge.example").
func NewURLs(origin string) (*URLs, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("federation: parse origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("federation: origin %q must be an absolute URL", origin)
	}
	return &URLs{origin: &url.URL{Scheme: u.Scheme, Host: u.Host}}, nil
}

// Origin returns the origin without a trailing slash.
func (u *URLs) Origin() string { return u.origin.String() }

// Host returns the origin's host, used for acct: handles.
func (u *URLs) Host() string { return u.origin.Host }

func (u *URLs) path(p string) string {
	return u.Origin() + p
}

// ActorURI is the id of the local actor for username.
func (u *URLs) ActorURI(username string) string {
	return u.path("/users/" + url.PathEscape(username))
}

// InboxURI is the per-actor inbox.
func (u *URLs) InboxURI(username string) string {
	return u.ActorURI(username) + "/inbox"
}

// OutboxURI is the per-actor outbox collection.
func (u *URLs) OutboxURI(username string) string {
	return u.ActorURI(username) + "/outbox"
}

// FollowersURI is the per-actor followers collection.
func (u *URLs) FollowersURI(username string) string {
	return u.ActorURI(username) + "/followers"
}

// SharedInboxURI is the inbox shared by all local actors.
func (u *URLs) SharedInboxURI() string {
	return u.path("/inbox")
}

// KeyID is the id of the actor's public key, referenced by HTTP signatures.
func (u *URLs) KeyID(username string) string {
	return u.ActorURI(username) + "#main-key"
}

// NoteURI is the id of the Note for a stored post.
func (u *URLs) NoteURI(username, postID string) string {
	return u.ActorURI(username) + "/posts/" + url.PathEscape(postID)
}

// CreateURI is the id of the Create activity wrapping a post's Note.
func (u *URLs) CreateURI(username, postID string) string {
	return u.NoteURI(username, postID) + "/activity"
}

// NewAcceptID returns a fresh id for an Accept activity.
func (u *URLs) NewAcceptID() string {
	return u.path("/#accepts/" + uuid.NewString())
}

// ParseActorURI extracts the username from a local actor URI. It reports
// false for URIs of other origins or other shapes.
func (u *URLs) ParseActorURI(uri string) (string, bool) {
	parsed, err := url.Parse(uri)
	if err != nil || parsed.Scheme != u.origin.Scheme || parsed.Host != u.origin.Host {
		return "", false
	}
	rest, ok := strings.CutPrefix(parsed.EscapedPath(), "/users/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	name, err := url.PathUnescape(rest)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// IsAbsoluteURI reports whether s is an absolute http(s) URI, the only
// form of identifier remote servers can dereference.
func IsAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
