package platform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UserInfo is the platform's view of an account.
type UserInfo struct {
	Username    string    `json:"username"`
	UserID      ID        `json:"userId"`
	Description string    `json:"description"`
	Avatar      string    `json:"avatar"`
	CreateTime  Timestamp `json:"createTime"`
}

// PostInfo is one entry of a user's post page.
type PostInfo struct {
	PostID      ID                `json:"postId"`
	Title       string            `json:"title"`
	Content     []json.RawMessage `json:"content"`
	IsSensitive Flag              `json:"isSensitive"`
	CreateTime  Timestamp         `json:"createTime"`
}

type userResponse struct {
	UserInfo *UserInfo `json:"userInfo"`
}

type postsResponse struct {
	PostInfos []PostInfo `json:"postInfos"`
}

// ID is a platform identifier. The API sends some ids as numbers and some
// as strings; both decode to the same string form.
type ID string

// UnmarshalJSON accepts a string, a number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("platform: id: %w", err)
		}
		*id = ID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("platform: id: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// Timestamp is an instant in epoch milliseconds. It decodes from a JSON
// number of milliseconds, a numeric string or an RFC 3339 string.
type Timestamp int64

// UnmarshalJSON accepts epoch milliseconds as a number or string, an
// RFC 3339 string, or null.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("platform: timestamp: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*t = 0
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			*t = Timestamp(ms)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("platform: timestamp %q: %w", s, err)
		}
		*t = Timestamp(parsed.UnixMilli())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("platform: timestamp: %w", err)
	}
	*t = Timestamp(int64(f))
	return nil
}

// Millis returns the timestamp as epoch milliseconds.
func (t Timestamp) Millis() int64 { return int64(t) }

// Flag is a boolean the API may encode as a bool, a number or a string.
type Flag bool

// UnmarshalJSON accepts a bool, a number, a string or null. Strings
// "", "0", "false" and "no" are false.
func (f *Flag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = false
	case bytes.Equal(b, []byte("true")):
		*f = true
	case bytes.Equal(b, []byte("false")):
		*f = false
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("platform: flag: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "0", "false", "no":
			*f = false
		default:
			*f = true
		}
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("platform: flag: %w", err)
		}
		*f = n != 0
	}
	return nil
}
