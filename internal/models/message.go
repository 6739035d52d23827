package models

import (
	"time"
)

// SupportConversationKey groups messages that are not tied to any showing.
const SupportConversationKey = "support"

// Message is one direction of a conversation exchange. Immutable once created
// except for the read receipt.
type Message struct {
	ID               string     `bson:"_id,omitempty" json:"id,omitempty"`
	ShowingRequestID string     `bson:"showing_request_id,omitempty" json:"showing_request_id,omitempty"` // empty for support threads
	SenderID         string     `bson:"sender_id" json:"sender_id"`
	ReceiverID       string     `bson:"receiver_id" json:"receiver_id"`
	Content          string     `bson:"content" json:"content"`
	ReadAt           *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
}

// IsRead reports whether the recipient has opened the message.
func (m *Message) IsRead() bool {
	return m.ReadAt != nil
}

// Conversation is the derived per-showing thread projection. It is computed on
// read and never stored; both participant ids are carried explicitly so the
// counterparty never has to be re-derived from message history.
type Conversation struct {
	Key             string        `json:"key"` // showing id, or SupportConversationKey
	PropertyAddress string        `json:"property_address,omitempty"`
	ShowingStatus   ShowingStatus `json:"showing_status,omitempty"`
	ParticipantA    string        `json:"participant_a"`
	ParticipantB    string        `json:"participant_b,omitempty"`
	Messages        []Message     `json:"messages"`
	LastMessageAt   time.Time     `json:"last_message_at"`
	UnreadCount     int           `json:"unread_count"`
}

// Counterparty returns the other participant from the viewer's perspective.
func (c *Conversation) Counterparty(viewerID string) string {
	if c.ParticipantA != "" && c.ParticipantA != viewerID {
		return c.ParticipantA
	}
	if c.ParticipantB != viewerID {
		return c.ParticipantB
	}
	return ""
}
