package api

import (
	"context"
	"net/http"

	"chat-sync/internal/models"
)

// MessageAPI covers the message-related backend operations.
type MessageAPI interface {
	MessagesForRoom(ctx context.Context, roomID string) ([]models.Message, error)
	SendMessage(ctx context.Context, req SendMessageRequest) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

// SendMessageRequest stores a message durably. ReceiverID is set only for
// direct rooms; ClientID is echoed back for reconciliation.
type SendMessageRequest struct {
	SenderID       string   `json:"senderId"`
	RoomID         string   `json:"roomId"`
	Content        string   `json:"content"`
	Images         []string `json:"images"`
	ReplyMessageID string   `json:"replyMessageId,omitempty"`
	ReceiverID     string   `json:"receiverId,omitempty"`
	ClientID       string   `json:"clientId,omitempty"`
}

// MessagesForRoom fetches the full chronological history for a room.
func (c *Client) MessagesForRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, "messages_for_room", http.MethodGet, "/message/"+roomID, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage stores a message and returns the confirmed record.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, "send_message", http.MethodPost, "/message", req, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// DeleteMessage removes a message for everyone.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	return c.do(ctx, "delete_message", http.MethodDelete, "/message/"+messageID, nil, nil)
}
