package models

// User is a denormalized snapshot of a user as returned by the backend.
// The core treats embedded member/sender snapshots as immutable value copies.
type User struct {
	ID             string   `json:"_id" validate:"required"`
	Username       string   `json:"username"`
	Email          string   `json:"email,omitempty"`
	ProfilePic     string   `json:"profilePic,omitempty"`
	FriendIDs      []string `json:"friends,omitempty"`
	PendingInbound []string `json:"friendRequestsReceived,omitempty"`
	PendingSent    []string `json:"friendRequestsSent,omitempty"`
}

// IsFriend reports whether the given user id is in the friend set.
func (u User) IsFriend(userID string) bool {
	for _, id := range u.FriendIDs {
		if id == userID {
			return true
		}
	}
	return false
}
