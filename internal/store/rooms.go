// Package store holds the session-owned state: the recency-ordered room
// directory and the per-room message logs. All mutation goes through the
// methods here; there are no other writers.
package store

import (
	"context"
	"fmt"
	"sync"

	"chat-sync/internal/api"
	"chat-sync/internal/errs"
	"chat-sync/internal/models"
)

// RoomDirectory owns the ordered set of rooms the local user belongs to.
// Order is whatever the backend returned last; local actions never resort
// it, only a full reload does.
type RoomDirectory struct {
	roomAPI api.RoomAPI
	userID  string

	mu    sync.RWMutex
	rooms []models.Room
}

// NewRoomDirectory builds an empty directory for the session user.
func NewRoomDirectory(roomAPI api.RoomAPI, userID string) *RoomDirectory {
	return &RoomDirectory{roomAPI: roomAPI, userID: userID}
}

// Load replaces the whole directory with the backend's current room list.
// On failure the previous contents are kept and the error is surfaced;
// there is no local fallback.
func (d *RoomDirectory) Load(ctx context.Context) error {
	rooms, err := d.roomAPI.RoomsForUser(ctx, d.userID)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}

	d.mu.Lock()
	d.rooms = rooms
	d.mu.Unlock()
	return nil
}

// AddRoom appends a newly created room. Adding a room whose id is already
// present is a no-op.
func (d *RoomDirectory) AddRoom(room models.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.rooms {
		if existing.ID == room.ID {
			return
		}
	}
	d.rooms = append(d.rooms, room)
}

// UpdateRoom replaces the room with a matching id in place, preserving its
// position. Unknown ids are a no-op.
func (d *RoomDirectory) UpdateRoom(room models.Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.rooms {
		if existing.ID == room.ID {
			d.rooms[i] = room
			return
		}
	}
}

// Room returns the room with the given id.
func (d *RoomDirectory) Room(id string) (models.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, room := range d.rooms {
		if room.ID == id {
			return room, true
		}
	}
	return models.Room{}, false
}

// Rooms returns a snapshot of the directory in its current order.
func (d *RoomDirectory) Rooms() []models.Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Room, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Len reports the number of rooms in the directory.
func (d *RoomDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// DisplayIdentity resolves what to show for a room: the group name for
// group rooms, the other member's username for direct rooms. A direct room
// with no member besides the viewer violates the creation invariant.
func (d *RoomDirectory) DisplayIdentity(room models.Room, viewerID string) (string, error) {
	if room.IsGroup() {
		return room.Name, nil
	}
	other, ok := room.OtherMember(viewerID)
	if !ok {
		return "", errs.Invariant(fmt.Sprintf("direct room %s has no member besides viewer %s", room.ID, viewerID))
	}
	return other.Username, nil
}
