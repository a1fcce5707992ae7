package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/mocks"
	"chat-sync/internal/models"
)

type fixture struct {
	sess    *Session
	ch      *mocks.ChannelMock
	roomAPI *mocks.RoomAPIMock
	msgAPI  *mocks.MessageAPIMock
	userAPI *mocks.UserAPIMock
}

func newFixture() *fixture {
	ch := mocks.NewChannelMock()
	roomAPI := &mocks.RoomAPIMock{}
	msgAPI := &mocks.MessageAPIMock{}
	userAPI := &mocks.UserAPIMock{}
	sess := New(Config{
		UserID:  "u1",
		RoomAPI: roomAPI,
		MsgAPI:  msgAPI,
		UserAPI: userAPI,
		Channel: ch,
	})
	return &fixture{sess: sess, ch: ch, roomAPI: roomAPI, msgAPI: msgAPI, userAPI: userAPI}
}

func TestStartConnectsBindsAndLoads(t *testing.T) {
	f := newFixture()
	f.ch.Mock.On("Connect", mock.Anything).Return(nil)
	f.ch.Mock.On("On", "receive-message").Return()
	f.ch.Mock.On("On", "created-room").Return()
	f.ch.Mock.On("On", "sorted-room").Return()
	f.roomAPI.On("RoomsForUser", mock.Anything, "u1").
		Return([]models.Room{{ID: "r1", Type: models.RoomDirect}}, nil)

	require.NoError(t, f.sess.Start(context.Background()))

	assert.Equal(t, 1, f.sess.Rooms.Len())
	assert.Contains(t, f.ch.Handlers, "receive-message")
	assert.Contains(t, f.ch.Handlers, "created-room")
	assert.Contains(t, f.ch.Handlers, "sorted-room")
	f.ch.AssertExpectations(t)
	f.roomAPI.AssertExpectations(t)
}

func TestStartConnectFailureSurfaces(t *testing.T) {
	f := newFixture()
	f.ch.Mock.On("Connect", mock.Anything).Return(errors.New("dial refused"))

	err := f.sess.Start(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.ch.Handlers)
}

func TestStartInitialLoadFailureSurfaces(t *testing.T) {
	f := newFixture()
	f.ch.Mock.On("Connect", mock.Anything).Return(nil)
	f.ch.Mock.On("On", mock.Anything).Return()
	f.roomAPI.On("RoomsForUser", mock.Anything, "u1").
		Return(nil, errors.New("backend down"))

	err := f.sess.Start(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.sess.Rooms.Len())
}

func TestOpenRoomLoadsHistory(t *testing.T) {
	f := newFixture()
	f.msgAPI.On("MessagesForRoom", mock.Anything, "r1").
		Return([]models.Message{{ID: "m1", RoomID: "r1", SenderID: "u2", Content: "hi"}}, nil)

	require.NoError(t, f.sess.OpenRoom(context.Background(), "r1"))
	assert.Len(t, f.sess.Messages.Messages("r1"), 1)
}

func TestSearchUsersExcludesSelf(t *testing.T) {
	f := newFixture()
	f.userAPI.On("SearchUsers", mock.Anything, "al").
		Return([]models.User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "albert"}}, nil)

	users, err := f.sess.SearchUsers(context.Background(), "al")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)
}

func TestCloseUnbindsAndDisconnects(t *testing.T) {
	f := newFixture()
	f.ch.Mock.On("Connect", mock.Anything).Return(nil)
	f.ch.Mock.On("On", mock.Anything).Return()
	f.roomAPI.On("RoomsForUser", mock.Anything, "u1").Return([]models.Room{}, nil)
	require.NoError(t, f.sess.Start(context.Background()))

	f.ch.Mock.On("Off", "receive-message").Return()
	f.ch.Mock.On("Off", "created-room").Return()
	f.ch.Mock.On("Off", "sorted-room").Return()
	f.ch.Mock.On("Close").Return(nil)

	require.NoError(t, f.sess.Close())
	assert.Empty(t, f.ch.Handlers)
	f.ch.AssertExpectations(t)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture()
	f.ch.Mock.On("Off", mock.Anything).Return()
	f.ch.Mock.On("Close").Return(nil)

	require.NoError(t, f.sess.Close())
	require.NoError(t, f.sess.Close())
	f.ch.AssertNumberOfCalls(t, "Close", 1)
}

func TestFriendRequestFlow(t *testing.T) {
	f := newFixture()
	f.userAPI.On("SendFriendRequest", mock.Anything, "u1", "u2").Return(nil)
	f.userAPI.On("AcceptFriendRequest", mock.Anything, "u1", "u3").
		Return(models.User{ID: "u1", FriendIDs: []string{"u3"}}, nil)

	require.NoError(t, f.sess.SendFriendRequest(context.Background(), "u2"))
	require.NoError(t, f.sess.AcceptFriendRequest(context.Background(), "u3"))
	f.userAPI.AssertExpectations(t)
}
