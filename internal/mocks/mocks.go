package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"chat-sync/internal/api"
	"chat-sync/internal/channel"
	"chat-sync/internal/models"
)

type RoomAPIMock struct {
	mock.Mock
}

func (m *RoomAPIMock) RoomsForUser(ctx context.Context, userID string) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	var rooms []models.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomAPIMock) CreateRoom(ctx context.Context, req api.CreateRoomRequest) (models.Room, error) {
	args := m.Called(ctx, req)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomAPIMock) UpdateGroup(ctx context.Context, req api.UpdateGroupRequest) (models.Room, error) {
	args := m.Called(ctx, req)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

type MessageAPIMock struct {
	mock.Mock
}

func (m *MessageAPIMock) MessagesForRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageAPIMock) SendMessage(ctx context.Context, req api.SendMessageRequest) (models.Message, error) {
	args := m.Called(ctx, req)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageAPIMock) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type UserAPIMock struct {
	mock.Mock
}

func (m *UserAPIMock) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	args := m.Called(ctx, term)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserAPIMock) SendFriendRequest(ctx context.Context, senderID, receiverID string) error {
	args := m.Called(ctx, senderID, receiverID)
	return args.Error(0)
}

func (m *UserAPIMock) AcceptFriendRequest(ctx context.Context, userID, requesterID string) (models.User, error) {
	args := m.Called(ctx, userID, requesterID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

// ChannelMock records handler registrations and emits for assertions.
type ChannelMock struct {
	mock.Mock

	Handlers map[string]func(json.RawMessage)
}

func NewChannelMock() *ChannelMock {
	return &ChannelMock{Handlers: make(map[string]func(json.RawMessage))}
}

func (m *ChannelMock) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *ChannelMock) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *ChannelMock) On(event string, handler func(data json.RawMessage)) {
	m.Called(event)
	m.Handlers[event] = handler
}

func (m *ChannelMock) Off(event string) {
	m.Called(event)
	delete(m.Handlers, event)
}

func (m *ChannelMock) Emit(event string, payload interface{}) {
	m.Called(event, payload)
}

func (m *ChannelMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Deliver simulates an inbound event through the registered handler.
func (m *ChannelMock) Deliver(event string, payload interface{}) bool {
	handler, ok := m.Handlers[event]
	if !ok {
		return false
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	handler(data)
	return true
}

var _ api.RoomAPI = (*RoomAPIMock)(nil)
var _ api.MessageAPI = (*MessageAPIMock)(nil)
var _ api.UserAPI = (*UserAPIMock)(nil)
var _ channel.Channel = (*ChannelMock)(nil)
