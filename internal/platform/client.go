// Package platform is a read-only client for the source platform's user
// and post endpoints.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors. Callers treat both as "no data", never as fatal.
var (
	ErrNotFound    = errors.New("platform: not found")
	ErrUnavailable = errors.New("platform: unavailable")
)

// DefaultPageSize is the number of posts requested per page.
const DefaultPageSize = 20

// Client reads users and posts from the platform API.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
}

// NewClient creates a Client for the API rooted at baseURL. A pageSize of
// zero or less uses DefaultPageSize.
func NewClient(baseURL string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// GetUser looks up an account by username. Returns ErrNotFound when the
// platform does not know the account or answers without a user payload.
func (c *Client) GetUser(ctx context.Context, username string) (*UserInfo, error) {
	q := url.Values{"username": {username}}

	var resp userResponse
	if err := c.get(ctx, "/user/info", q, &resp); err != nil {
		return nil, fmt.Errorf("platform: get user %q: %w", username, err)
	}
	if resp.UserInfo == nil || resp.UserInfo.UserID == "" {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, username)
	}
	if resp.UserInfo.Username == "" {
		resp.UserInfo.Username = username
	}
	return resp.UserInfo, nil
}

// ListPosts returns one page of a user's posts, newest first. An empty
// cursor requests the latest page.
func (c *Client) ListPosts(ctx context.Context, userID, cursor string) ([]PostInfo, error) {
	q := url.Values{
		"userId":      {userID},
		"newestFirst": {"true"},
		"count":       {strconv.Itoa(c.pageSize)},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp postsResponse
	if err := c.get(ctx, "/post/list", q, &resp); err != nil {
		return nil, fmt.Errorf("platform: list posts of %s: %w", userID, err)
	}
	if resp.PostInfos == nil {
		return []PostInfo{}, nil
	}
	return resp.PostInfos, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: GET %s returned %d: %s", ErrUnavailable, path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
	}
	return nil
}
