package federation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// JSON-LD contexts and well-known ids.
const (
	ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"
	SecurityContext        = "https://w3id.org/security/v1"
	PublicAudience         = "https://www.w3.org/ns/activitystreams#Public"

	ContentType = "application/activity+json"
)

// Activity types handled or emitted by the bridge.
const (
	TypeFollow = "Follow"
	TypeUndo   = "Undo"
	TypeAccept = "Accept"
	TypeCreate = "Create"
	TypeNote   = "Note"
)

// noteContext adds the "sensitive" extension term used by Mastodon.
var noteContext = []any{
	ActivityStreamsContext,
	map[string]string{"sensitive": "as:sensitive"},
}

// IRI is an identifier that may arrive as a plain string or as a node
// object ({"id": ...} or {"@id": ...}). It always holds the string form.
type IRI string

// UnmarshalJSON accepts a string or a node object. Other shapes decode to
// the empty IRI.
func (i *IRI) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*i = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("federation: iri: %w", err)
		}
		*i = IRI(s)
	case len(b) > 0 && b[0] == '{':
		var node struct {
			ID    string `json:"id"`
			AtID  string `json:"@id"`
			Value string `json:"href"`
		}
		if err := json.Unmarshal(b, &node); err != nil {
			return fmt.Errorf("federation: iri: %w", err)
		}
		switch {
		case node.ID != "":
			*i = IRI(node.ID)
		case node.AtID != "":
			*i = IRI(node.AtID)
		default:
			*i = IRI(node.Value)
		}
	default:
		*i = ""
	}
	return nil
}

// Ref is a reference to another object. Remote servers send either a
// bare URI or an embedded object (occasionally a one-element array); all
// shapes are normalized to ID on decode, with the embedded object kept
// when present.
type Ref struct {
	ID       string
	Embedded *Activity
}

// RefTo returns a Ref holding only an identifier.
func RefTo(id string) *Ref { return &Ref{ID: id} }

// UnmarshalJSON accepts a URI, an embedded object or an array of either.
// Numbers, booleans and undecodable array entries yield an empty Ref.
func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*r = Ref{}
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &r.ID)
	case len(b) > 0 && b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("federation: ref: %w", err)
		}
		for _, item := range items {
			var inner Ref
			if err := inner.UnmarshalJSON(item); err != nil {
				continue
			}
			if inner.ID != "" || inner.Embedded != nil {
				*r = inner
				return nil
			}
		}
		return nil
	case len(b) > 0 && b[0] == '{':
		var obj Activity
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("federation: ref: %w", err)
		}
		r.ID = string(obj.ID)
		r.Embedded = &obj
		return nil
	}
	return nil
}

// MarshalJSON writes the embedded object when present, else the bare ID.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Embedded != nil {
		return json.Marshal(r.Embedded)
	}
	return json.Marshal(r.ID)
}

// Audience is an addressing list.
type Audience []string

// UnmarshalJSON accepts a single entry or an array. Entries may be URIs or
// objects; entries without an id are skipped.
func (a *Audience) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var items []json.RawMessage
	if len(b) > 0 && b[0] == '[' {
		if err := json.Unmarshal(b, &items); err != nil {
			return fmt.Errorf("federation: audience: %w", err)
		}
	} else {
		items = []json.RawMessage{b}
	}

	out := make(Audience, 0, len(items))
	for _, item := range items {
		var r Ref
		if err := r.UnmarshalJSON(item); err != nil || r.ID == "" {
			continue
		}
		out = append(out, r.ID)
	}
	*a = out
	return nil
}

// Activity is the generic shape of inbound activities and of the objects
// they wrap. Only the fields the bridge reads are decoded; addressing is
// ignored.
type Activity struct {
	Context any    `json:"@context,omitempty"`
	ID      IRI    `json:"id,omitempty"`
	Type    string `json:"type"`
	Actor   *Ref   `json:"actor,omitempty"`
	Object  *Ref   `json:"object,omitempty"`
}

// UnmarshalJSON decodes an activity object. type may be a string or an
// array, in which case its first string wins.
func (a *Activity) UnmarshalJSON(b []byte) error {
	var raw struct {
		Context any             `json:"@context"`
		ID      IRI             `json:"id"`
		Type    json.RawMessage `json:"type"`
		Actor   *Ref            `json:"actor"`
		Object  *Ref            `json:"object"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("federation: activity: %w", err)
	}
	*a = Activity{
		Context: raw.Context,
		ID:      raw.ID,
		Type:    firstString(raw.Type),
		Actor:   raw.Actor,
		Object:  raw.Object,
	}
	return nil
}

func firstString(b json.RawMessage) string {
	if len(b) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(b, &s) == nil {
		return s
	}
	var list []json.RawMessage
	if json.Unmarshal(b, &list) != nil {
		return ""
	}
	for _, item := range list {
		if json.Unmarshal(item, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

// ActorID returns the normalized actor identifier, or "" if absent.
func (a *Activity) ActorID() string {
	if a == nil || a.Actor == nil {
		return ""
	}
	return a.Actor.ID
}

// ObjectID returns the normalized object identifier, or "" if absent.
func (a *Activity) ObjectID() string {
	if a == nil || a.Object == nil {
		return ""
	}
	return a.Object.ID
}

// Note is the object form of a bridged post.
type Note struct {
	Context      any      `json:"@context,omitempty"`
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	AttributedTo string   `json:"attributedTo"`
	Content      string   `json:"content"`
	Published    string   `json:"published"`
	To           Audience `json:"to"`
	Cc           Audience `json:"cc,omitempty"`
	Sensitive    bool     `json:"sensitive"`
}

// Create announces a Note.
type Create struct {
	Context   any      `json:"@context,omitempty"`
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Actor     string   `json:"actor"`
	Published string   `json:"published"`
	To        Audience `json:"to"`
	Cc        Audience `json:"cc,omitempty"`
	Object    *Note    `json:"object"`
}

// Accept answers a Follow.
type Accept struct {
	Context any       `json:"@context,omitempty"`
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Actor   string    `json:"actor"`
	To      Audience  `json:"to,omitempty"`
	Object  *Activity `json:"object"`
}

// PublicKey is the key block of an actor document.
type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// Image is an actor icon.
type Image struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Endpoints lists the actor's auxiliary endpoints.
type Endpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

// Actor is a Person document, either served for a local user or decoded
// from a remote server.
type Actor struct {
	Context           any        `json:"@context,omitempty"`
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	PreferredUsername string     `json:"preferredUsername,omitempty"`
	Name              string     `json:"name,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	URL               string     `json:"url,omitempty"`
	Published         string     `json:"published,omitempty"`
	Icon              *Image     `json:"icon,omitempty"`
	Inbox             string     `json:"inbox"`
	Outbox            string     `json:"outbox,omitempty"`
	Followers         string     `json:"followers,omitempty"`
	Endpoints         *Endpoints `json:"endpoints,omitempty"`
	PublicKey         *PublicKey `json:"publicKey,omitempty"`
}

// OrderedCollection is an outbox page.
type OrderedCollection struct {
	Context      any    `json:"@context,omitempty"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	TotalItems   int    `json:"totalItems"`
	OrderedItems any    `json:"orderedItems"`
}

// FormatTime renders epoch milliseconds as an xsd:dateTime.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// NoteContext returns the @context used for notes and their activities.
func NoteContext() any { return noteContext }
