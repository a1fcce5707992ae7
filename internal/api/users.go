package api

import (
	"context"
	"net/http"
	"net/url"

	"chat-sync/internal/models"
)

// UserAPI covers the user and friendship operations the sync core consumes.
type UserAPI interface {
	SearchUsers(ctx context.Context, term string) ([]models.User, error)
	SendFriendRequest(ctx context.Context, senderID, receiverID string) error
	AcceptFriendRequest(ctx context.Context, userID, requesterID string) (models.User, error)
}

type friendRequestPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type acceptFriendPayload struct {
	UserID      string `json:"userId"`
	RequesterID string `json:"requesterId"`
}

// SearchUsers looks up users by a free-text term.
func (c *Client) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	var users []models.User
	path := "/user/search?username=" + url.QueryEscape(term)
	if err := c.do(ctx, "search_users", http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SendFriendRequest creates a pending friend request.
func (c *Client) SendFriendRequest(ctx context.Context, senderID, receiverID string) error {
	payload := friendRequestPayload{SenderID: senderID, ReceiverID: receiverID}
	return c.do(ctx, "send_friend_request", http.MethodPost, "/user/friend-request", payload, nil)
}

// AcceptFriendRequest accepts a pending request and returns the updated
// local user snapshot.
func (c *Client) AcceptFriendRequest(ctx context.Context, userID, requesterID string) (models.User, error) {
	var user models.User
	payload := acceptFriendPayload{UserID: userID, RequesterID: requesterID}
	if err := c.do(ctx, "accept_friend_request", http.MethodPost, "/user/accept-friend-request", payload, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}
