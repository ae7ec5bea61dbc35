package federation

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-fed/httpsig"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxDocumentSize bounds remote documents read by Fetch.
const maxDocumentSize = 1 << 20

const acceptHeader = `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

// ErrRemote is returned when a remote server answers with a non-2xx status.
var ErrRemote = errors.New("federation: remote error")

// KeySource yields the signing key of a local actor, generating it on
// first use.
type KeySource interface {
	SigningKey(ctx context.Context, username string) (*rsa.PrivateKey, error)
}

// ClientOptions tunes the HTTP behaviour of a Client.
type ClientOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	InboxTTL     time.Duration
	InboxCache   int
}

func (o *ClientOptions) withDefaults() {
	if o.RetryMax == 0 {
		o.RetryMax = 3
	}
	if o.RetryWaitMin == 0 {
		o.RetryWaitMin = time.Second
	}
	if o.RetryWaitMax == 0 {
		o.RetryWaitMax = 30 * time.Second
	}
	if o.Timeout == 0 {
		o.Timeout = 15 * time.Second
	}
	if o.InboxTTL == 0 {
		o.InboxTTL = time.Hour
	}
	if o.InboxCache == 0 {
		o.InboxCache = 4096
	}
}

// Client performs HTTP-signed requests on behalf of local actors: fetching
// remote objects and posting activities to remote inboxes.
type Client struct {
	urls    *URLs
	keys    KeySource
	http    *retryablehttp.Client
	inboxes *expirable.LRU[string, string]
	log     *slog.Logger
}

// NewClient creates a Client signing with keys from ks.
func NewClient(urls *URLs, ks KeySource, log *slog.Logger, opts ClientOptions) *Client {
	opts.withDefaults()
	if log == nil {
		log = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = log

	return &Client{
		urls:    urls,
		keys:    ks,
		http:    rc,
		inboxes: expirable.NewLRU[string, string](opts.InboxCache, nil, opts.InboxTTL),
		log:     log,
	}
}

// FetchActivity dereferences uri, signing the request as username, and
// decodes the document as an activity.
func (c *Client) FetchActivity(ctx context.Context, username, uri string) (*Activity, error) {
	var a Activity
	if err := c.fetch(ctx, username, uri, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = IRI(uri)
	}
	return &a, nil
}

// FetchActor dereferences a remote actor document.
func (c *Client) FetchActor(ctx context.Context, username, uri string) (*Actor, error) {
	var a Actor
	if err := c.fetch(ctx, username, uri, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ResolveInbox returns the inbox of a remote actor, preferring its shared
// inbox. Results are cached for the configured TTL.
func (c *Client) ResolveInbox(ctx context.Context, username, actorURI string) (string, error) {
	if inbox, ok := c.inboxes.Get(actorURI); ok {
		return inbox, nil
	}

	actor, err := c.FetchActor(ctx, username, actorURI)
	if err != nil {
		return "", err
	}
	inbox := actor.Inbox
	if actor.Endpoints != nil && actor.Endpoints.SharedInbox != "" {
		inbox = actor.Endpoints.SharedInbox
	}
	if !IsAbsoluteURI(inbox) {
		return "", fmt.Errorf("federation: actor %s has no usable inbox", actorURI)
	}

	c.inboxes.Add(actorURI, inbox)
	return inbox, nil
}

// Post delivers a serialized activity to inbox, signed as username.
func (c *Client) Post(ctx context.Context, username, inbox string, body []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, inbox, body)
	if err != nil {
		return fmt.Errorf("federation: create request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", acceptHeader)

	if err := c.sign(ctx, req.Request, username, body); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("federation: POST %s: %w", inbox, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: POST %s returned %d: %s", ErrRemote, inbox, resp.StatusCode, string(msg))
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, username, uri string, out any) error {
	if !IsAbsoluteURI(uri) {
		return fmt.Errorf("federation: cannot fetch %q", uri)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("federation: create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)

	if err := c.sign(ctx, req.Request, username, nil); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("federation: GET %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: GET %s returned %d", ErrRemote, uri, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return fmt.Errorf("federation: read %s: %w", uri, err)
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return fmt.Errorf("federation: decode %s: %w", uri, err)
	}
	return nil
}

// sign adds Date, Host and (for bodies) Digest headers and a
// draft-cavage HTTP signature made with the actor's key. Signers are not
// safe for concurrent use, so one is built per request.
func (c *Client) sign(ctx context.Context, req *http.Request, username string, body []byte) error {
	key, err := c.keys.SigningKey(ctx, username)
	if err != nil {
		return fmt.Errorf("federation: signing key for %s: %w", username, err)
	}

	headers := []string{httpsig.RequestTarget, "host", "date"}
	if body != nil {
		headers = append(headers, "digest")
	}
	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		headers,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return fmt.Errorf("federation: create signer: %w", err)
	}

	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("Host", req.URL.Host)
	if err := signer.SignRequest(key, c.urls.KeyID(username), req, body); err != nil {
		return fmt.Errorf("federation: sign request: %w", err)
	}
	return nil
}
