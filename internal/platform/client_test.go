package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user/info", r.URL.Path)
		require.Equal(t, "alice", r.URL.Query().Get("username"))
		_, _ = w.Write([]byte(`{"userInfo":{"username":"alice","userId":42,"description":"hi","avatar":"https://cdn.example/a.png","createTime":"2024-01-02T03:04:05Z"}}`))
	}))
	defer srv.Close()

	u, err := NewClient(srv.URL, 0).GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, ID("42"), u.UserID)
	assert.Equal(t, "hi", u.Description)
	assert.Equal(t, int64(1704164645000), u.CreateTime.Millis())
}

func TestGetUser_MissingPayloadIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).GetUser(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetUser_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"server error", http.StatusBadGateway, ErrUnavailable},
		{"forbidden", http.StatusForbidden, ErrUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, 0).GetUser(context.Background(), "alice")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetUser_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, 0).GetUser(context.Background(), "alice")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestListPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "/post/list", r.URL.Path)
		require.Equal(t, "42", q.Get("userId"))
		require.Equal(t, "true", q.Get("newestFirst"))
		require.Equal(t, "5", q.Get("count"))
		require.Empty(t, q.Get("cursor"))
		_, _ = w.Write([]byte(`{"postInfos":[
			{"postId":"p1","title":"one","content":[{"type":"text","text":"a"}],"isSensitive":true,"createTime":300},
			{"postId":2,"title":"two","content":[],"isSensitive":0,"createTime":"200"}
		]}`))
	}))
	defer srv.Close()

	posts, err := NewClient(srv.URL, 5).ListPosts(context.Background(), "42", "")
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, ID("p1"), posts[0].PostID)
	assert.True(t, bool(posts[0].IsSensitive))
	assert.Equal(t, int64(300), posts[0].CreateTime.Millis())
	require.Len(t, posts[0].Content, 1)
	assert.JSONEq(t, `{"type":"text","text":"a"}`, string(posts[0].Content[0]))

	assert.Equal(t, ID("2"), posts[1].PostID)
	assert.False(t, bool(posts[1].IsSensitive))
	assert.Equal(t, int64(200), posts[1].CreateTime.Millis())
}

func TestListPosts_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	posts, err := NewClient(srv.URL, 0).ListPosts(context.Background(), "42", "")
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFlag_Decoding(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`true`, true}, {`false`, false}, {`1`, true}, {`0`, false},
		{`"1"`, true}, {`"false"`, false}, {`""`, false}, {`null`, false},
	}
	for _, tc := range tests {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(tc.in), &f), tc.in)
		assert.Equal(t, tc.want, bool(f), tc.in)
	}
}

func TestTimestamp_RejectsGarbage(t *testing.T) {
	var ts Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
