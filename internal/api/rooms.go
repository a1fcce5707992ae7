package api

import (
	"context"
	"net/http"

	"chat-sync/internal/models"
)

// RoomAPI covers the room-related backend operations.
type RoomAPI interface {
	RoomsForUser(ctx context.Context, userID string) ([]models.Room, error)
	CreateRoom(ctx context.Context, req CreateRoomRequest) (models.Room, error)
	UpdateGroup(ctx context.Context, req UpdateGroupRequest) (models.Room, error)
}

// CreateRoomRequest creates a direct or group room. For direct rooms the
// backend returns the existing room when one already links the two members.
type CreateRoomRequest struct {
	Members []string `json:"members"`
	Type    string   `json:"type"`
	Name    string   `json:"name,omitempty"`
	Image   string   `json:"image,omitempty"`
	AdminID string   `json:"adminId,omitempty"`
}

// UpdateGroupRequest replaces the mutable fields of a group room.
type UpdateGroupRequest struct {
	RoomID     string   `json:"chatroomId"`
	Members    []string `json:"members"`
	Name       string   `json:"name"`
	Image      string   `json:"image"`
	AdminID    string   `json:"adminId"`
	NewAdminID string   `json:"newAdminId,omitempty"`
}

// RoomsForUser fetches the ordered room list for the user, most recently
// active first.
func (c *Client) RoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.do(ctx, "rooms_for_user", http.MethodGet, "/chatroom/"+userID, nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates (or for direct rooms, creates-or-returns) a room.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (models.Room, error) {
	var room models.Room
	if err := c.do(ctx, "create_room", http.MethodPost, "/chatroom", req, &room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// UpdateGroup updates a group room's members, name, image or admin.
func (c *Client) UpdateGroup(ctx context.Context, req UpdateGroupRequest) (models.Room, error) {
	var room models.Room
	if err := c.do(ctx, "update_group", http.MethodPut, "/chatroom/group", req, &room); err != nil {
		return models.Room{}, err
	}
	return room, nil
}
