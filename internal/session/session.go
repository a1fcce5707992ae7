// Package session owns the per-login state: the transport channel, the
// room directory, the message store, the dispatcher and the action queue.
// A session is created after authentication succeeds and torn down on
// logout.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chat-sync/internal/actions"
	"chat-sync/internal/api"
	"chat-sync/internal/channel"
	"chat-sync/internal/dispatch"
	"chat-sync/internal/models"
	"chat-sync/internal/store"
	"chat-sync/internal/telemetry"
)

// Session is the sync core for one authenticated user.
type Session struct {
	ID     string
	UserID string

	Rooms    *store.RoomDirectory
	Messages *store.MessageStore
	Actions  *actions.Queue

	ch         chan struct{} // closed on teardown
	transport  channel.Channel
	dispatcher *dispatch.Dispatcher
	userAPI    api.UserAPI
}

// Config carries the collaborators a session needs. The API surfaces are
// interfaces so tests can substitute doubles; in the daemon all three are
// one *api.Client.
type Config struct {
	UserID  string
	RoomAPI api.RoomAPI
	MsgAPI  api.MessageAPI
	UserAPI api.UserAPI
	Channel channel.Channel
	Audit   *telemetry.AuditEmitter
}

// New wires a session together. Start must be called to connect and load.
func New(cfg Config) *Session {
	sessionID := uuid.NewString()
	rooms := store.NewRoomDirectory(cfg.RoomAPI, cfg.UserID)
	messages := store.NewMessageStore(cfg.MsgAPI)
	queue := actions.NewQueue(cfg.MsgAPI, cfg.RoomAPI, rooms, messages, cfg.Channel, cfg.UserID, sessionID, cfg.Audit)
	dispatcher := dispatch.New(cfg.Channel, rooms, messages, cfg.UserID, sessionID)

	return &Session{
		ID:         sessionID,
		UserID:     cfg.UserID,
		Rooms:      rooms,
		Messages:   messages,
		Actions:    queue,
		ch:         make(chan struct{}),
		transport:  cfg.Channel,
		dispatcher: dispatcher,
		userAPI:    cfg.UserAPI,
	}
}

// Start connects the channel, binds the dispatcher and performs the
// initial directory load.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect channel: %w", err)
	}
	s.dispatcher.Bind()

	if err := s.Rooms.Load(ctx); err != nil {
		return fmt.Errorf("initial room load: %w", err)
	}
	return nil
}

// Connected reports whether the realtime channel is currently up.
func (s *Session) Connected() bool {
	return s.transport.Connected()
}

// OpenRoom loads the full message history for a room. Events racing the
// load are reapplied on top of the fetched baseline by the store.
func (s *Session) OpenRoom(ctx context.Context, roomID string) error {
	return s.Messages.Load(ctx, roomID)
}

// SearchUsers proxies the user directory search, excluding the session
// user from the results.
func (s *Session) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	users, err := s.userAPI.SearchUsers(ctx, term)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID != s.UserID {
			out = append(out, u)
		}
	}
	return out, nil
}

// SendFriendRequest sends a friend request from the session user.
func (s *Session) SendFriendRequest(ctx context.Context, receiverID string) error {
	return s.userAPI.SendFriendRequest(ctx, s.UserID, receiverID)
}

// AcceptFriendRequest accepts a pending request addressed to the session
// user.
func (s *Session) AcceptFriendRequest(ctx context.Context, requesterID string) error {
	_, err := s.userAPI.AcceptFriendRequest(ctx, s.UserID, requesterID)
	return err
}

// Close tears the session down: handlers are unbound so in-flight results
// are ignored, then the channel is disconnected.
func (s *Session) Close() error {
	select {
	case <-s.ch:
		return nil
	default:
	}
	close(s.ch)
	s.dispatcher.Unbind()
	return s.transport.Close()
}
