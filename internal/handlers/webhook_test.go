package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthr/linerelay/internal/relay"
	"github.com/nexthr/linerelay/internal/tenant"
)

type fakeTenantResolver struct {
	cred  tenant.Credential
	err   error
	calls int
}

func (r *fakeTenantResolver) ResolveByChannelID(ctx context.Context, channelID string) (tenant.Credential, error) {
	r.calls++
	if r.err != nil {
		return tenant.Credential{}, r.err
	}
	return r.cred, nil
}

type relayCall struct {
	cred   tenant.Credential
	events []relay.Event
}

type fakeRelay struct {
	calls []relayCall
}

func (f *fakeRelay) ProcessEvents(ctx context.Context, cred tenant.Credential, events []relay.Event, receivedAt time.Time) {
	f.calls = append(f.calls, relayCall{cred: cred, events: events})
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newWebhookContext(t *testing.T, body, signature string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newTestWebhookHandler(resolver *fakeTenantResolver, relaySvc *fakeRelay) *WebhookHandler {
	h := NewWebhookHandler(nil, resolver, relaySvc)
	h.spawn = func(fn func()) { fn() }
	return h
}

func TestWebhookProbeReturnsOK(t *testing.T) {
	t.Parallel()

	h := newTestWebhookHandler(&fakeTenantResolver{}, &fakeRelay{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.HandleProbe(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWebhookEmptyEventsAcknowledgedWithoutProcessing(t *testing.T) {
	t.Parallel()

	resolver := &fakeTenantResolver{cred: tenant.Credential{LineChannelID: "ch1", ChannelSecret: "s3cret"}}
	relaySvc := &fakeRelay{}
	h := newTestWebhookHandler(resolver, relaySvc)

	body := `{"destination":"ch1","events":[]}`
	c, rec := newWebhookContext(t, body, signBody("s3cret", []byte(body)))

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, relaySvc.calls)
}

func TestWebhookInvalidSignatureRejectedBeforeProcessing(t *testing.T) {
	t.Parallel()

	resolver := &fakeTenantResolver{cred: tenant.Credential{LineChannelID: "ch1", ChannelSecret: "s3cret"}}
	relaySvc := &fakeRelay{}
	h := newTestWebhookHandler(resolver, relaySvc)

	body := `{"destination":"ch1","events":[{"type":"message","message":{"type":"text","text":"hi"},"source":{"userId":"u1"},"replyToken":"tok"}]}`
	c, _ := newWebhookContext(t, body, signBody("wrong-secret", []byte(body)))

	err := h.Handle(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	assert.Empty(t, relaySvc.calls, "no event processing after a signature mismatch")
}

func TestWebhookUnknownTenantAcceptedAndDropped(t *testing.T) {
	t.Parallel()

	resolver := &fakeTenantResolver{err: tenant.ErrUnknownTenant}
	relaySvc := &fakeRelay{}
	h := newTestWebhookHandler(resolver, relaySvc)

	body := `{"destination":"ch-unknown","events":[{"type":"message"}]}`
	c, rec := newWebhookContext(t, body, "sig")

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusOK, rec.Code, "acknowledge to avoid provider redelivery")
	assert.Empty(t, relaySvc.calls)
}

func TestWebhookValidCallbackIsRelayed(t *testing.T) {
	t.Parallel()

	cred := tenant.Credential{LineChannelID: "ch1", CompanyID: "co1", ChannelSecret: "s3cret"}
	resolver := &fakeTenantResolver{cred: cred}
	relaySvc := &fakeRelay{}
	h := newTestWebhookHandler(resolver, relaySvc)

	body := `{"destination":"ch1","events":[` +
		`{"type":"message","message":{"type":"text","text":"hello"},"source":{"userId":"u1"},"replyToken":"tok-1"},` +
		`{"type":"follow","source":{"userId":"u2"}}]}`
	c, rec := newWebhookContext(t, body, signBody("s3cret", []byte(body)))

	require.NoError(t, h.Handle(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, relaySvc.calls, 1)
	assert.Equal(t, "co1", relaySvc.calls[0].cred.CompanyID)
	require.Len(t, relaySvc.calls[0].events, 2)
	assert.Equal(t, "hello", relaySvc.calls[0].events[0].Message.Text)
}

func TestWebhookMalformedBodyRejected(t *testing.T) {
	t.Parallel()

	h := newTestWebhookHandler(&fakeTenantResolver{}, &fakeRelay{})
	c, _ := newWebhookContext(t, `{not json`, "sig")

	err := h.Handle(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestWebhookMissingDestinationRejected(t *testing.T) {
	t.Parallel()

	resolver := &fakeTenantResolver{}
	h := newTestWebhookHandler(resolver, &fakeRelay{})
	c, _ := newWebhookContext(t, `{"events":[]}`, "sig")

	err := h.Handle(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	assert.Zero(t, resolver.calls)
}
