// Package client implements the client side of the realtime channel: a
// reconnecting connection manager, the fallback poller used while the channel
// is down, an identity-keyed inbox that absorbs duplicate delivery, and the
// cross-tab unread counter.
package client

import (
	"encoding/json"
	"fmt"
)

// Notification kinds as carried on the wire. Unknown values are treated as
// system notifications.
const (
	KindSystem   = 1
	KindBooking  = 2
	KindMessage  = 3
	KindActivity = 4
	KindPayment  = 5
)

// PushPayload is the union of the two server payload shapes. Message payloads
// always carry a conversation id; notification payloads never do.
type PushPayload struct {
	ID        int64  `json:"id"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	Kind      int    `json:"kind,omitempty"`
	RelatedID *int64 `json:"related_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`

	ConversationID int64  `json:"conversation_id,omitempty"`
	SenderID       int64  `json:"sender_id,omitempty"`
	Body           string `json:"body,omitempty"`
	SentAt         string `json:"sent_at,omitempty"`

	Type  string `json:"type,omitempty"`
	Error string `json:"error,omitempty"`
}

func (p *PushPayload) IsMessage() bool {
	return p.ConversationID != 0
}

func (p *PushPayload) IsError() bool {
	return p.Type == "error"
}

// Key is the dedup identity: notification and message id spaces are disjoint
// namespaces.
func (p *PushPayload) Key() string {
	if p.IsMessage() {
		return fmt.Sprintf("m:%d", p.ID)
	}
	return fmt.Sprintf("n:%d", p.ID)
}

func decodePayload(raw []byte) (*PushPayload, error) {
	var payload PushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// RouteFor maps a notification to the client route it deep-links to. The
// table is fixed; kinds without a related entity land on the notification
// list.
func RouteFor(kind int, relatedID *int64) string {
	if relatedID == nil {
		return "/notifications"
	}

	switch kind {
	case KindBooking:
		return fmt.Sprintf("/bookings/%d", *relatedID)
	case KindMessage:
		return fmt.Sprintf("/conversations/%d", *relatedID)
	case KindActivity:
		return fmt.Sprintf("/activities/%d", *relatedID)
	case KindPayment:
		return fmt.Sprintf("/payments/%d", *relatedID)
	default:
		return "/notifications"
	}
}
