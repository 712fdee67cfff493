package conversation

import "time"

// Record maps one LINE end user within one company to the Dify
// conversation that threads their multi-turn context. ConversationID is
// empty until the first successful Dify exchange returns a handle; the
// transition from empty to set happens at most once (see
// SetConversationIfAbsent).
type Record struct {
	ID             string
	CompanyID      string
	UserID         string
	ConversationID string
	Remarks        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasConversation reports whether a Dify handle has been assigned.
func (r Record) HasConversation() bool {
	return r.ConversationID != ""
}
