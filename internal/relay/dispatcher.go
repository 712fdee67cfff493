package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/nexthr/linerelay/internal/line"
)

// Route is the delivery mechanism the dispatcher selected.
type Route string

const (
	RouteReply Route = "reply"
	RoutePush  Route = "push"
)

// Dispatcher picks between the low-latency reply channel and the
// asynchronous push channel. Reply tokens are single use and expire a
// short while after event receipt; once the window has passed, or the
// token is gone or spent, delivery falls back to push.
type Dispatcher struct {
	logger      *slog.Logger
	replyWindow time.Duration
	now         func() time.Time
}

func NewDispatcher(log *slog.Logger, replyWindow time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		logger:      log.With(slog.String("service", "dispatcher")),
		replyWindow: replyWindow,
		now:         time.Now,
	}
}

// Deliver sends text to the event's originator, choosing the route by
// elapsed time. Delivery failures are returned for logging only; the
// caller never retries.
func (d *Dispatcher) Deliver(ctx context.Context, m line.Messenger, ev *Inbound, text string) (Route, error) {
	if d.canReply(ev) {
		ev.replyConsumed = true
		if err := m.Reply(ctx, ev.ReplyToken, text); err != nil {
			return RouteReply, err
		}
		return RouteReply, nil
	}
	if err := m.Push(ctx, ev.UserID, text); err != nil {
		return RoutePush, err
	}
	return RoutePush, nil
}

func (d *Dispatcher) canReply(ev *Inbound) bool {
	if ev.ReplyToken == "" || ev.replyConsumed {
		return false
	}
	return d.now().Sub(ev.ReceivedAt) < d.replyWindow
}
