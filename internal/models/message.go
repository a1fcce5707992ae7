package models

import "time"

// Delivery states of a message in the local store.
const (
	DeliveryPending   = "pending"
	DeliveryConfirmed = "confirmed"
	DeliveryFailed    = "failed"
)

// Message is a single authored content unit within a room.
//
// ClientID is a locally generated correlation id attached to optimistic
// inserts; the send response carries it back on the confirmed message so
// the pending entry is reconciled instead of duplicated.
type Message struct {
	ID        string    `json:"_id"`
	ClientID  string    `json:"clientId,omitempty"`
	RoomID    string    `json:"roomId" validate:"required"`
	SenderID  string    `json:"senderId" validate:"required"`
	Content   string    `json:"content"`
	Images    []string  `json:"images,omitempty"`
	ReplyToID string    `json:"replyMessageId,omitempty"`
	Reply     *ReplyRef `json:"replyMessage,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Delivery  string    `json:"delivery,omitempty"`
}

// ReplyRef is a read-only denormalized snapshot of the message being
// replied to. It is left empty when the target is outside loaded history.
type ReplyRef struct {
	MessageID string `json:"_id"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
}

// Confirmed reports whether the message has been acknowledged by the server.
func (m Message) Confirmed() bool { return m.Delivery == DeliveryConfirmed }
