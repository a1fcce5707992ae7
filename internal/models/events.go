package models

// Channel event names. Outbound names are what this client emits, inbound
// names are what the server broadcasts to everyone else.
const (
	EventCreateRoom  = "create-room"
	EventCreatedRoom = "created-room"
	EventSendMessage = "send-message"
	EventRecvMessage = "receive-message"
	EventSortRoom    = "sort-room"
	EventSortedRoom  = "sorted-room"
)

// RoomEvent is the payload of create-room / created-room.
type RoomEvent struct {
	CreatedRoom Room `json:"createdRoom" validate:"required"`
}

// MessageEvent is the payload of send-message / receive-message.
type MessageEvent struct {
	SavedMessage Message `json:"savedMessage" validate:"required"`
}

// SortRoomEvent is the payload of the outbound sort-room signal. The inbound
// sorted-room counterpart carries no payload at all.
type SortRoomEvent struct {
	UserID string `json:"userId" validate:"required"`
}
