package models

import (
	"fmt"
	"time"

	"chat-sync/internal/errs"
)

// Room types as the backend encodes them.
const (
	RoomDirect = "1v1"
	RoomGroup  = "group"
)

// MinGroupMembers is the smallest member count a group room may have,
// enforced locally before any network call.
const MinGroupMembers = 3

// Room is a conversation scope, either two-party (direct) or multi-party (group).
type Room struct {
	ID           string    `json:"_id" validate:"required"`
	Type         string    `json:"type" validate:"required,oneof=1v1 group"`
	Members      []User    `json:"members" validate:"required,min=2"`
	Name         string    `json:"name,omitempty"`
	Image        string    `json:"image,omitempty"`
	Admin        *User     `json:"admin,omitempty"`
	LastActivity time.Time `json:"updatedAt,omitempty"`
}

// IsGroup reports whether the room is a multi-party group.
func (r Room) IsGroup() bool { return r.Type == RoomGroup }

// Member returns the member snapshot with the given id, if present.
func (r Room) Member(userID string) (User, bool) {
	for _, m := range r.Members {
		if m.ID == userID {
			return m, true
		}
	}
	return User{}, false
}

// OtherMember returns the member that is not the viewer. Only meaningful
// for direct rooms.
func (r Room) OtherMember(viewerID string) (User, bool) {
	for _, m := range r.Members {
		if m.ID != viewerID {
			return m, true
		}
	}
	return User{}, false
}

// Validate checks the room entity invariants: a direct room has exactly two
// members and no admin, a group room has at least MinGroupMembers members and
// an admin who is one of them.
func (r Room) Validate() error {
	switch r.Type {
	case RoomDirect:
		if len(r.Members) != 2 {
			return errs.Invariant(fmt.Sprintf("direct room %s has %d members, want 2", r.ID, len(r.Members)))
		}
		if r.Admin != nil {
			return errs.Invariant(fmt.Sprintf("direct room %s has an admin", r.ID))
		}
	case RoomGroup:
		if len(r.Members) < MinGroupMembers {
			return errs.Invariant(fmt.Sprintf("group room %s has %d members, want >= %d", r.ID, len(r.Members), MinGroupMembers))
		}
		if r.Admin == nil {
			return errs.Invariant(fmt.Sprintf("group room %s has no admin", r.ID))
		}
		if _, ok := r.Member(r.Admin.ID); !ok {
			return errs.Invariant(fmt.Sprintf("group room %s admin %s is not a member", r.ID, r.Admin.ID))
		}
	default:
		return errs.Invariant(fmt.Sprintf("room %s has unknown type %q", r.ID, r.Type))
	}
	return nil
}
