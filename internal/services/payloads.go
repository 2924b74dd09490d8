package services

import (
	"time"

	"github.com/valzamustafa/TourismHub-sub000/internal/models"
)

// Wire shapes pushed over a user's channels. Identities let clients
// deduplicate at-least-once delivery.

type NotificationPayload struct {
	ID        int64                   `json:"id"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Kind      models.NotificationKind `json:"kind"`
	RelatedID *int64                  `json:"related_id,omitempty"`
	CreatedAt string                  `json:"created_at"`
}

type MessagePayload struct {
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	SenderID       int64  `json:"sender_id"`
	Body           string `json:"body"`
	SentAt         string `json:"sent_at"`
}

func notificationPayload(n *models.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Kind:      n.Kind,
		RelatedID: n.RelatedID,
		CreatedAt: FormatEventTimestamp(n.CreatedAt),
	}
}

func messagePayload(m *models.ChatMessage) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		SentAt:         FormatEventTimestamp(m.CreatedAt),
	}
}

func FormatEventTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
