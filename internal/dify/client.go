package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nexthr/linerelay/internal/tenant"
)

// relayUser identifies this relay to the Dify API; Dify scopes
// conversations per (app, user) pair.
const relayUser = "line-bot"

const maxErrorBodyBytes = 4 << 10

// ErrUpstreamTimeout means the Dify call hit the caller's deadline or
// was cancelled. The dispatcher still owes the end user a fallback
// message when it sees this.
var ErrUpstreamTimeout = errors.New("dify request timed out")

// UpstreamError is a non-2xx response from the Dify API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("dify upstream error: status=%d body=%s", e.Status, e.Body)
}

// Answer is one blocking chat completion. ConversationID is the
// continuation handle; Dify is the only source of these, the relay
// never synthesizes one.
type Answer struct {
	Text           string
	ConversationID string
}

type chatRequest struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query"`
	ResponseMode   string         `json:"response_mode"`
	User           string         `json:"user"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
}

// Client issues blocking chat requests against per-tenant Dify
// endpoints. One client serves all tenants; endpoint and key travel
// with each call.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		// The overall deadline comes from the caller's context; the
		// transport timeout is only a safety net.
		httpClient: &http.Client{Timeout: 150 * time.Second},
		logger:     log.With(slog.String("service", "dify")),
	}
}

// Ask sends a single-turn blocking query, continuing conversationID
// when non-empty. The caller bounds the call with its context deadline.
func (c *Client) Ask(ctx context.Context, cred tenant.Credential, query, conversationID string) (Answer, error) {
	body, err := json.Marshal(chatRequest{
		Inputs:         map[string]any{},
		Query:          sanitizeQuery(query),
		ResponseMode:   "blocking",
		User:           relayUser,
		ConversationID: conversationID,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("marshal dify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.DifyAPIURL, bytes.NewReader(body))
	if err != nil {
		return Answer{}, fmt.Errorf("build dify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.DifyAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Answer{}, ErrUpstreamTimeout
		}
		return Answer{}, fmt.Errorf("dify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return Answer{}, &UpstreamError{Status: resp.StatusCode, Body: string(errBody)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Answer{}, fmt.Errorf("decode dify response: %w", err)
	}
	if parsed.Answer == "" {
		c.logger.Warn("dify response has no answer field",
			slog.String("conversation_id", parsed.ConversationID))
	}
	return Answer{Text: parsed.Answer, ConversationID: parsed.ConversationID}, nil
}

var querySanitizer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// sanitizeQuery normalizes line endings and escapes the Unicode line
// and paragraph separators, which some Dify deployments mishandle in
// JSON payloads.
func sanitizeQuery(q string) string {
	return querySanitizer.Replace(q)
}
