package dify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthr/linerelay/internal/tenant"
)

func testCredential(url string) tenant.Credential {
	return tenant.Credential{
		DifyAPIURL: url,
		DifyAPIKey: "key-123",
	}
}

func TestAskSendsBlockingRequest(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"answer":          "hello",
			"conversation_id": "c1",
		})
	}))
	defer srv.Close()

	client := NewClient(nil)
	ans, err := client.Ask(context.Background(), testCredential(srv.URL), "hi there", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", ans.Text)
	assert.Equal(t, "c1", ans.ConversationID)

	assert.Equal(t, "blocking", got["response_mode"])
	assert.Equal(t, "line-bot", got["user"])
	assert.Equal(t, "hi there", got["query"])
	_, hasConversation := got["conversation_id"]
	assert.False(t, hasConversation, "empty handle must be omitted, not sent blank")
}

func TestAskContinuesConversation(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"answer":          "again",
			"conversation_id": "c1",
		})
	}))
	defer srv.Close()

	client := NewClient(nil)
	_, err := client.Ask(context.Background(), testCredential(srv.URL), "next turn", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got["conversation_id"])
}

func TestAskUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(nil)
	_, err := client.Ask(context.Background(), testCredential(srv.URL), "hi", "")

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.Status)
	assert.Contains(t, upstreamErr.Body, "quota exceeded")
}

func TestAskTimeout(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client hanging up;
		// otherwise r.Context() is never cancelled and srv.Close() hangs.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(nil)
	_, err := client.Ask(ctx, testCredential(srv.URL), "hi", "")
	assert.True(t, errors.Is(err, ErrUpstreamTimeout), "got %v", err)
	<-started
}

func TestAskMissingAnswerIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"conversation_id": "c9"})
	}))
	defer srv.Close()

	client := NewClient(nil)
	ans, err := client.Ask(context.Background(), testCredential(srv.URL), "hi", "")
	require.NoError(t, err)
	assert.Empty(t, ans.Text)
	assert.Equal(t, "c9", ans.ConversationID)
}

func TestSanitizeQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "crlf", in: "a\r\nb", want: "a\nb"},
		{name: "bare cr", in: "a\rb", want: "a\nb"},
		{name: "mixed", in: "a\r\nb\rc\nd", want: "a\nb\nc\nd"},
		{name: "line separator", in: "a\u2028b", want: `a\u2028b`},
		{name: "paragraph separator", in: "a\u2029b", want: `a\u2029b`},
		{name: "plain", in: "こんにちは", want: "こんにちは"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizeQuery(tt.in))
		})
	}
}
