package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nexthr/linerelay/internal/line"
	"github.com/nexthr/linerelay/internal/relay"
	"github.com/nexthr/linerelay/internal/tenant"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

const signatureHeader = "X-Line-Signature"

type webhookTenantResolver interface {
	ResolveByChannelID(ctx context.Context, channelID string) (tenant.Credential, error)
}

type webhookRelay interface {
	ProcessEvents(ctx context.Context, cred tenant.Credential, events []relay.Event, receivedAt time.Time)
}

// WebhookHandler receives LINE webhook callbacks. It acknowledges the
// provider as soon as the batch is validated and relays the events as
// detached background work, so a slow Dify turn degrades to the push
// path instead of a provider-side delivery failure.
type WebhookHandler struct {
	logger  *slog.Logger
	tenants webhookTenantResolver
	relay   webhookRelay

	// spawn runs the detached batch; tests replace it to run inline.
	spawn func(fn func())
}

func NewWebhookHandler(log *slog.Logger, tenants webhookTenantResolver, relaySvc webhookRelay) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:  log.With(slog.String("handler", "webhook")),
		tenants: tenants,
		relay:   relaySvc,
		spawn:   func(fn func()) { go fn() },
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhook", h.HandleProbe)
	e.POST("/webhook", h.Handle)
}

// HandleProbe answers the provider's endpoint verification probe.
func (h *WebhookHandler) HandleProbe(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *WebhookHandler) Handle(c echo.Context) error {
	receivedAt := time.Now()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(body)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	var req relay.CallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback body")
	}
	if req.Destination == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "destination is required")
	}

	cred, err := h.tenants.ResolveByChannelID(c.Request().Context(), req.Destination)
	if err != nil {
		if errors.Is(err, tenant.ErrUnknownTenant) {
			// Acknowledge so the provider does not redeliver, but
			// process nothing.
			h.logger.Warn("callback for unknown destination",
				slog.String("destination", req.Destination))
			return c.NoContent(http.StatusOK)
		}
		h.logger.Error("tenant lookup failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "tenant lookup failed")
	}

	if !line.VerifySignature(cred.ChannelSecret, c.Request().Header.Get(signatureHeader), body) {
		h.logger.Warn("invalid webhook signature",
			slog.String("destination", req.Destination))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	if len(req.Events) == 0 {
		// Providers send empty batches as health checks.
		return c.NoContent(http.StatusOK)
	}

	ctx := context.WithoutCancel(c.Request().Context())
	events := req.Events
	h.spawn(func() {
		h.relay.ProcessEvents(ctx, cred, events, receivedAt)
	})
	return c.NoContent(http.StatusOK)
}
