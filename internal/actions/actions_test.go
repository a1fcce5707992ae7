package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"chat-sync/internal/api"
	"chat-sync/internal/errs"
	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
)

func directRoom(id string, u1, u2 models.User) models.Room {
	return models.Room{ID: id, Type: models.RoomDirect, Members: []models.User{u1, u2}}
}

func groupRoom(id, name string, admin models.User, members ...models.User) models.Room {
	return models.Room{ID: id, Type: models.RoomGroup, Name: name, Admin: &admin, Members: members}
}

type fixture struct {
	queue   *Queue
	rooms   *store.RoomDirectory
	msgs    *store.MessageStore
	roomAPI *mocks.RoomAPIMock
	msgAPI  *mocks.MessageAPIMock
	ch      *mocks.ChannelMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	roomAPI := new(mocks.RoomAPIMock)
	msgAPI := new(mocks.MessageAPIMock)
	ch := mocks.NewChannelMock()
	rooms := store.NewRoomDirectory(roomAPI, "u1")
	msgs := store.NewMessageStore(msgAPI)
	queue := NewQueue(msgAPI, roomAPI, rooms, msgs, ch, "u1", "s1", nil)
	return &fixture{queue: queue, rooms: rooms, msgs: msgs, roomAPI: roomAPI, msgAPI: msgAPI, ch: ch}
}

// expectOrderSignal covers the refresh-and-signal step every send runs
// regardless of outcome.
func (f *fixture) expectOrderSignal() {
	f.roomAPI.On("RoomsForUser", mock.Anything, "u1").Return([]models.Room{}, nil).Once()
	f.ch.Mock.On("Emit", models.EventSortRoom, models.SortRoomEvent{UserID: "u1"}).Once()
}

func TestSendMessageEmptyDraftRejectedLocally(t *testing.T) {
	f := newFixture(t)

	_, err := f.queue.SendMessage(context.Background(), SendDraft{RoomID: "r1", Content: "   "})

	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Empty(t, f.msgs.Messages("r1"))
	f.msgAPI.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestSendMessageSuccessReconciles(t *testing.T) {
	f := newFixture(t)
	alice := models.User{ID: "u1", Username: "alice"}
	bob := models.User{ID: "u2", Username: "bob"}
	f.rooms.AddRoom(directRoom("r1", alice, bob))

	f.msgAPI.On("SendMessage", mock.Anything, mock.MatchedBy(func(req api.SendMessageRequest) bool {
		return req.RoomID == "r1" && req.SenderID == "u1" && req.ReceiverID == "u2" && req.ClientID != ""
	})).Return(models.Message{ID: "m1", RoomID: "r1", SenderID: "u1", Content: "hi"}, nil).Once()
	f.ch.Mock.On("Emit", models.EventSendMessage, mock.Anything).Once()
	f.expectOrderSignal()

	confirmed, err := f.queue.SendMessage(context.Background(), SendDraft{RoomID: "r1", Content: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "m1", confirmed.ID)

	log := f.msgs.Messages("r1")
	require.Len(t, log, 1)
	assert.Equal(t, "m1", log[0].ID)
	assert.Equal(t, models.DeliveryConfirmed, log[0].Delivery)
	f.msgAPI.AssertExpectations(t)
	f.ch.AssertExpectations(t)
}

func TestSendMessageEchoDoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	f.rooms.AddRoom(directRoom("r1", models.User{ID: "u1"}, models.User{ID: "u2"}))

	confirmed := models.Message{ID: "m1", RoomID: "r1", SenderID: "u1", Content: "hi"}
	f.msgAPI.On("SendMessage", mock.Anything, mock.Anything).Return(confirmed, nil).Once()
	f.ch.Mock.On("Emit", models.EventSendMessage, mock.Anything).Once()
	f.expectOrderSignal()

	_, err := f.queue.SendMessage(context.Background(), SendDraft{RoomID: "r1", Content: "hi"})
	require.NoError(t, err)

	// The server broadcasts the same message back to the sender.
	f.msgs.AppendConfirmed("r1", confirmed)

	assert.Len(t, f.msgs.Messages("r1"), 1)
}

func TestSendMessageFailureLeavesFailedEntry(t *testing.T) {
	f := newFixture(t)
	f.rooms.AddRoom(directRoom("r1", models.User{ID: "u1"}, models.User{ID: "u2"}))

	f.msgAPI.On("SendMessage", mock.Anything, mock.Anything).
		Return(models.Message{}, errs.Network("POST /message", assert.AnError)).Once()
	f.expectOrderSignal()

	_, err := f.queue.SendMessage(context.Background(), SendDraft{RoomID: "r1", Content: "hi"})

	require.Error(t, err)
	log := f.msgs.Messages("r1")
	require.Len(t, log, 1)
	assert.Equal(t, models.DeliveryFailed, log[0].Delivery)
	f.ch.AssertNotCalled(t, "Emit", models.EventSendMessage, mock.Anything)
	f.ch.AssertExpectations(t)
}

func TestRoomOrderSignalDeferredPastBurst(t *testing.T) {
	f := newFixture(t)
	f.queue.sortLimit = rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	f.rooms.AddRoom(directRoom("r1", models.User{ID: "u1"}, models.User{ID: "u2"}))

	f.msgAPI.On("SendMessage", mock.Anything, mock.Anything).
		Return(models.Message{ID: "m1", RoomID: "r1", SenderID: "u1", Content: "hi"}, nil).Twice()
	f.ch.Mock.On("Emit", models.EventSendMessage, mock.Anything).Twice()
	f.roomAPI.On("RoomsForUser", mock.Anything, "u1").Return([]models.Room{}, nil)

	signals := make(chan struct{}, 4)
	f.ch.Mock.On("Emit", models.EventSortRoom, models.SortRoomEvent{UserID: "u1"}).
		Run(func(mock.Arguments) { signals <- struct{}{} }).Twice()

	// The first send emits immediately; the second exhausts the burst and
	// must surface as a deferred signal instead of being dropped.
	_, err := f.queue.SendMessage(context.Background(), SendDraft{RoomID: "r1", Content: "hi"})
	require.NoError(t, err)
	_, err = f.queue.SendMessage(context.Background(), SendDraft{RoomID: "r1", Content: "hi"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-signals:
		case <-time.After(2 * time.Second):
			t.Fatalf("room order signal %d never emitted", i+1)
		}
	}
	f.ch.AssertExpectations(t)
}

func TestDeleteMessageUnknownIDIsNoop(t *testing.T) {
	f := newFixture(t)

	err := f.queue.DeleteMessage(context.Background(), "r1", "missing")

	require.NoError(t, err)
	f.msgAPI.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestDeleteMessageAppliesOnlyAfterConfirmation(t *testing.T) {
	f := newFixture(t)
	f.msgs.AppendConfirmed("r1", models.Message{ID: "m1", RoomID: "r1", SenderID: "u1"})

	f.msgAPI.On("DeleteMessage", mock.Anything, "m1").
		Return(errs.Network("DELETE /message/m1", assert.AnError)).Once()

	err := f.queue.DeleteMessage(context.Background(), "r1", "m1")
	require.Error(t, err)
	assert.Len(t, f.msgs.Messages("r1"), 1, "failed delete must not change the log")

	f.msgAPI.On("DeleteMessage", mock.Anything, "m1").Return(nil).Once()
	require.NoError(t, f.queue.DeleteMessage(context.Background(), "r1", "m1"))
	assert.Empty(t, f.msgs.Messages("r1"))
	f.msgAPI.AssertExpectations(t)
}

func TestCreateGroupTooFewMembersRejectedLocally(t *testing.T) {
	f := newFixture(t)

	// Creator plus one other: two total, below the group minimum.
	_, err := f.queue.CreateRoom(context.Background(), CreateRoomInput{
		Type:      models.RoomGroup,
		MemberIDs: []string{"u2"},
	})

	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	f.roomAPI.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything)
}

func TestCreateGroupSuccess(t *testing.T) {
	f := newFixture(t)
	created := groupRoom("g1", "weekend", models.User{ID: "u1"},
		models.User{ID: "u1"}, models.User{ID: "u2"}, models.User{ID: "u3"})

	f.roomAPI.On("CreateRoom", mock.Anything, mock.MatchedBy(func(req api.CreateRoomRequest) bool {
		return req.Type == models.RoomGroup && req.AdminID == "u1" && len(req.Members) == 3
	})).Return(created, nil).Once()
	f.ch.Mock.On("Emit", models.EventCreateRoom, models.RoomEvent{CreatedRoom: created}).Once()

	room, err := f.queue.CreateRoom(context.Background(), CreateRoomInput{
		Type:      models.RoomGroup,
		MemberIDs: []string{"u2", "u3"},
		Name:      "weekend",
	})

	require.NoError(t, err)
	assert.Equal(t, "g1", room.ID)
	assert.Equal(t, 1, f.rooms.Len())
	f.roomAPI.AssertExpectations(t)
	f.ch.AssertExpectations(t)
}

func TestCreateDirectRoomExistingLeavesDirectoryUnchanged(t *testing.T) {
	f := newFixture(t)
	existing := directRoom("r1", models.User{ID: "u1", Username: "alice"}, models.User{ID: "u2", Username: "bob"})
	f.rooms.AddRoom(existing)

	f.roomAPI.On("CreateRoom", mock.Anything, mock.Anything).Return(existing, nil).Once()

	room, err := f.queue.CreateRoom(context.Background(), CreateRoomInput{
		Type:      models.RoomDirect,
		MemberIDs: []string{"u2"},
	})

	require.NoError(t, err)
	assert.Equal(t, "r1", room.ID)
	assert.Equal(t, 1, f.rooms.Len())
	f.ch.AssertNotCalled(t, "Emit", models.EventCreateRoom, mock.Anything)
}

func TestUpdateGroupAdminMustRemainMember(t *testing.T) {
	f := newFixture(t)
	f.rooms.AddRoom(groupRoom("g1", "weekend", models.User{ID: "u1"},
		models.User{ID: "u1"}, models.User{ID: "u2"}, models.User{ID: "u3"}, models.User{ID: "u4"}))

	// Removing the admin without transferring adminship is rejected.
	_, err := f.queue.UpdateGroup(context.Background(), UpdateGroupInput{
		RoomID:    "g1",
		MemberIDs: []string{"u2", "u3", "u4"},
		Name:      "weekend",
	})

	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	f.roomAPI.AssertNotCalled(t, "UpdateGroup", mock.Anything, mock.Anything)
}

func TestUpdateGroupTransfersAdmin(t *testing.T) {
	f := newFixture(t)
	f.rooms.AddRoom(groupRoom("g1", "weekend", models.User{ID: "u1"},
		models.User{ID: "u1"}, models.User{ID: "u2"}, models.User{ID: "u3"}, models.User{ID: "u4"}))
	updated := groupRoom("g1", "weekend", models.User{ID: "u2"},
		models.User{ID: "u2"}, models.User{ID: "u3"}, models.User{ID: "u4"})

	f.roomAPI.On("UpdateGroup", mock.Anything, mock.MatchedBy(func(req api.UpdateGroupRequest) bool {
		return req.RoomID == "g1" && req.AdminID == "u1" && req.NewAdminID == "u2"
	})).Return(updated, nil).Once()

	room, err := f.queue.UpdateGroup(context.Background(), UpdateGroupInput{
		RoomID:     "g1",
		MemberIDs:  []string{"u2", "u3", "u4"},
		Name:       "weekend",
		NewAdminID: "u2",
	})

	require.NoError(t, err)
	require.NotNil(t, room.Admin)
	assert.Equal(t, "u2", room.Admin.ID)
	_, stillMember := room.Member(room.Admin.ID)
	assert.True(t, stillMember)

	stored, ok := f.rooms.Room("g1")
	require.True(t, ok)
	assert.Equal(t, "u2", stored.Admin.ID)
	f.roomAPI.AssertExpectations(t)
}

func TestUpdateGroupFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	original := groupRoom("g1", "weekend", models.User{ID: "u1"},
		models.User{ID: "u1"}, models.User{ID: "u2"}, models.User{ID: "u3"})
	f.rooms.AddRoom(original)

	f.roomAPI.On("UpdateGroup", mock.Anything, mock.Anything).
		Return(models.Room{}, errs.Network("PUT /chatroom/group", assert.AnError)).Once()

	_, err := f.queue.UpdateGroup(context.Background(), UpdateGroupInput{
		RoomID:    "g1",
		MemberIDs: []string{"u1", "u2", "u3"},
		Name:      "renamed",
	})

	require.Error(t, err)
	stored, ok := f.rooms.Room("g1")
	require.True(t, ok)
	assert.Equal(t, "weekend", stored.Name)
}

func TestUpdateGroupOnDirectRoomRejected(t *testing.T) {
	f := newFixture(t)
	f.rooms.AddRoom(directRoom("r1", models.User{ID: "u1"}, models.User{ID: "u2"}))

	_, err := f.queue.UpdateGroup(context.Background(), UpdateGroupInput{
		RoomID:    "r1",
		MemberIDs: []string{"u1", "u2", "u3"},
	})

	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}
