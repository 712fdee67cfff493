package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nexthr/linerelay/internal/conversation"
	"github.com/nexthr/linerelay/internal/dify"
	"github.com/nexthr/linerelay/internal/line"
	"github.com/nexthr/linerelay/internal/tenant"
)

// ConversationStore is the subset of the conversation store the relay
// needs.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, companyID, userID string) (conversation.Record, error)
	SetConversationIfAbsent(ctx context.Context, id, conversationID string) (conversation.Record, error)
}

// AIClient issues one blocking query against a tenant's Dify endpoint.
type AIClient interface {
	Ask(ctx context.Context, cred tenant.Credential, query, conversationID string) (dify.Answer, error)
}

// MessengerProvider hands out the tenant-scoped outbound client.
type MessengerProvider interface {
	ForTenant(cred tenant.Credential) (line.Messenger, error)
}

// Options tunes per-event processing.
type Options struct {
	// DifyTimeout bounds a single blocking AI call.
	DifyTimeout time.Duration
	// FallbackText is sent when the upstream fails or answers nothing.
	FallbackText string
	// TimeoutText is sent when the upstream call hits its deadline.
	TimeoutText string
}

// Service sequences the relay for each event of a callback batch:
// conversation lookup, Dify call under deadline, conditional handle
// persistence, delivery. One event's failure never aborts its siblings.
type Service struct {
	logger        *slog.Logger
	conversations ConversationStore
	ai            AIClient
	clients       MessengerProvider
	dispatcher    *Dispatcher
	opts          Options

	userLocks keyedMutex
}

func NewService(log *slog.Logger, conversations ConversationStore, ai AIClient, clients MessengerProvider, dispatcher *Dispatcher, opts Options) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.DifyTimeout <= 0 {
		opts.DifyTimeout = 60 * time.Second
	}
	if opts.FallbackText == "" {
		opts.FallbackText = "No answer available right now."
	}
	if opts.TimeoutText == "" {
		opts.TimeoutText = opts.FallbackText
	}
	return &Service{
		logger:        log.With(slog.String("service", "relay")),
		conversations: conversations,
		ai:            ai,
		clients:       clients,
		dispatcher:    dispatcher,
		opts:          opts,
	}
}

// ProcessEvents runs the batch sequentially. Events that are not text
// messages are skipped; failures are logged per event and isolated.
func (s *Service) ProcessEvents(ctx context.Context, cred tenant.Credential, events []Event, receivedAt time.Time) {
	for _, ev := range events {
		if !ev.IsText() {
			s.logger.Debug("skipping non-text event",
				slog.String("channel_id", cred.LineChannelID),
				slog.String("event_type", ev.Type))
			continue
		}
		if ev.Source.UserID == "" {
			s.logger.Warn("text event without user id",
				slog.String("channel_id", cred.LineChannelID))
			continue
		}
		s.processTextEvent(ctx, cred, &Inbound{
			UserID:     ev.Source.UserID,
			Text:       ev.Message.Text,
			ReplyToken: ev.ReplyToken,
			ReceivedAt: receivedAt,
		})
	}
}

func (s *Service) processTextEvent(ctx context.Context, cred tenant.Credential, ev *Inbound) {
	log := s.logger.With(
		slog.String("channel_id", cred.LineChannelID),
		slog.String("user_id", ev.UserID),
	)

	// Reads and writes for the same end user are serialized so a slow
	// first turn cannot lose the null-to-value handle transition to a
	// concurrent second turn.
	unlock := s.userLocks.lock(cred.CompanyID + "/" + ev.UserID)
	defer unlock()

	rec, err := s.conversations.GetOrCreate(ctx, cred.CompanyID, ev.UserID)
	if err != nil {
		log.Error("conversation store unavailable, skipping event", slog.Any("error", err))
		return
	}

	askCtx, cancel := context.WithTimeout(ctx, s.opts.DifyTimeout)
	answer, err := s.ai.Ask(askCtx, cred, ev.Text, rec.ConversationID)
	cancel()
	if err != nil {
		text := s.opts.FallbackText
		if errors.Is(err, dify.ErrUpstreamTimeout) {
			text = s.opts.TimeoutText
			log.Error("dify call timed out")
		} else {
			log.Error("dify call failed", slog.Any("error", err))
		}
		s.deliver(ctx, cred, ev, text, log)
		return
	}

	if !rec.HasConversation() && answer.ConversationID != "" {
		if _, err := s.conversations.SetConversationIfAbsent(ctx, rec.ID, answer.ConversationID); err != nil {
			// The answer is already in hand; deliver it even though the
			// handle could not be persisted.
			log.Error("persist conversation handle failed", slog.Any("error", err))
		} else {
			log.Info("conversation started",
				slog.String("conversation_id", answer.ConversationID))
		}
	}

	text := answer.Text
	if text == "" {
		text = s.opts.FallbackText
	}
	s.deliver(ctx, cred, ev, text, log)
}

func (s *Service) deliver(ctx context.Context, cred tenant.Credential, ev *Inbound, text string, log *slog.Logger) {
	m, err := s.clients.ForTenant(cred)
	if err != nil {
		log.Error("no messenger for tenant", slog.Any("error", err))
		return
	}
	route, err := s.dispatcher.Deliver(ctx, m, ev, text)
	if err != nil {
		log.Error("delivery failed", slog.String("route", string(route)), slog.Any("error", err))
		return
	}
	log.Info("delivered", slog.String("route", string(route)))
}

// keyedMutex serializes work per key. Entries are kept for the process
// lifetime, matching the tenant-client cache's append-only model.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
