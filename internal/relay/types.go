package relay

import "time"

// CallbackRequest is the LINE webhook callback body. Destination is the
// bot's channel ID and selects the tenant.
type CallbackRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one entry of the callback batch. Only message events with a
// text payload are processed; every other kind is accepted and skipped.
type Event struct {
	Type       string        `json:"type"`
	Message    *EventMessage `json:"message,omitempty"`
	Source     EventSource   `json:"source"`
	ReplyToken string        `json:"replyToken,omitempty"`
	Timestamp  int64         `json:"timestamp,omitempty"`
}

type EventMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type EventSource struct {
	Type   string `json:"type,omitempty"`
	UserID string `json:"userId"`
}

// IsText reports whether the event carries a user text message.
func (e Event) IsText() bool {
	return e.Type == "message" && e.Message != nil && e.Message.Type == "text"
}

// Inbound is one text event in flight. It lives only for the duration
// of a single callback and tracks whether its one-shot reply token has
// been consumed.
type Inbound struct {
	UserID     string
	Text       string
	ReplyToken string
	ReceivedAt time.Time

	replyConsumed bool
}
