package line

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/line/line-bot-sdk-go/v8/linebot"

	"github.com/nexthr/linerelay/internal/tenant"
)

// Messenger is the outbound capability for one tenant's channel. Reply
// consumes a short-lived reply token; Push addresses the user directly
// and has no freshness constraint.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, userID, text string) error
}

// Clients caches one LINE bot client per destination channel ID for the
// life of the process. The tenant set is small and stable, so the cache
// never evicts.
type Clients struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[string]*botMessenger
}

func NewClients(log *slog.Logger) *Clients {
	if log == nil {
		log = slog.Default()
	}
	return &Clients{
		logger:  log.With(slog.String("service", "line")),
		clients: make(map[string]*botMessenger),
	}
}

// ForTenant returns the cached messenger for the credential's channel,
// lazily constructing it on first use.
func (c *Clients) ForTenant(cred tenant.Credential) (Messenger, error) {
	c.mu.RLock()
	m, ok := c.clients[cred.LineChannelID]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.clients[cred.LineChannelID]; ok {
		return m, nil
	}

	bot, err := linebot.New(cred.ChannelSecret, cred.ChannelAccessToken)
	if err != nil {
		c.logger.Error("create line client failed",
			slog.String("channel_id", cred.LineChannelID), slog.Any("error", err))
		return nil, fmt.Errorf("create line client for %s: %w", cred.LineChannelID, err)
	}
	m = &botMessenger{bot: bot}
	c.clients[cred.LineChannelID] = m
	c.logger.Info("created line client", slog.String("channel_id", cred.LineChannelID))
	return m, nil
}

type botMessenger struct {
	bot *linebot.Client
}

func (m *botMessenger) Reply(ctx context.Context, replyToken, text string) error {
	_, err := m.bot.ReplyMessage(replyToken, linebot.NewTextMessage(text)).WithContext(ctx).Do()
	if err != nil {
		return fmt.Errorf("line reply: %w", err)
	}
	return nil
}

func (m *botMessenger) Push(ctx context.Context, userID, text string) error {
	_, err := m.bot.PushMessage(userID, linebot.NewTextMessage(text)).WithContext(ctx).Do()
	if err != nil {
		return fmt.Errorf("line push: %w", err)
	}
	return nil
}

// VerifySignature checks the X-Line-Signature header (base64 of the
// HMAC-SHA256 of the raw body under the channel secret).
func VerifySignature(channelSecret, signature string, body []byte) bool {
	return linebot.ValidateSignature(channelSecret, signature, body)
}
