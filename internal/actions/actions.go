// Package actions executes user-initiated mutations against the backend.
// Actions touching the same room are serialized so optimistic inserts and
// their reconciliations never interleave; different rooms proceed
// concurrently. Only message sends are optimistic — delete, create and
// group update apply locally only after server confirmation.
package actions

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"chat-sync/internal/api"
	"chat-sync/internal/channel"
	"chat-sync/internal/errs"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/telemetry"
)

const tracerName = "chat-sync/actions"

// sortSignalRate bounds how often the outbound sort-room signal is emitted;
// a burst of sends collapses into the allowed emits.
const (
	sortSignalRate  = rate.Limit(1)
	sortSignalBurst = 3
)

// Queue is the outbound action queue for one session.
type Queue struct {
	messageAPI api.MessageAPI
	roomAPI    api.RoomAPI
	rooms      roomDirectory
	msgs       messageStore
	ch         channel.Channel
	userID     string
	sessionID  string
	audit      *telemetry.AuditEmitter

	mu          sync.Mutex
	roomLocks   map[string]*sync.Mutex
	sortLimit   *rate.Limiter
	sortPending bool
}

// roomDirectory is the directory surface the queue mutates.
type roomDirectory interface {
	Load(ctx context.Context) error
	AddRoom(room models.Room)
	UpdateRoom(room models.Room)
	Room(id string) (models.Room, bool)
}

// messageStore is the message log surface the queue mutates.
type messageStore interface {
	InsertPending(roomID string, msg models.Message)
	AppendConfirmed(roomID string, msg models.Message)
	MarkFailed(roomID, clientID string)
	Remove(roomID, messageID string)
	Messages(roomID string) []models.Message
}

// NewQueue builds an action queue bound to the session stores and channel.
func NewQueue(messageAPI api.MessageAPI, roomAPI api.RoomAPI, rooms roomDirectory, msgs messageStore, ch channel.Channel, userID, sessionID string, audit *telemetry.AuditEmitter) *Queue {
	return &Queue{
		messageAPI: messageAPI,
		roomAPI:    roomAPI,
		rooms:      rooms,
		msgs:       msgs,
		ch:         ch,
		userID:     userID,
		sessionID:  sessionID,
		audit:      audit,
		roomLocks:  make(map[string]*sync.Mutex),
		sortLimit:  rate.NewLimiter(sortSignalRate, sortSignalBurst),
	}
}

func (q *Queue) roomLock(roomID string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	lock, ok := q.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		q.roomLocks[roomID] = lock
	}
	return lock
}

// SendDraft is a user-authored message before it is sent.
type SendDraft struct {
	RoomID    string
	Content   string
	Images    []string
	ReplyToID string
}

// SendMessage applies the optimistic send flow: validate, insert a pending
// entry, call the backend, reconcile or mark failed, then notify peers and
// refresh room ordering regardless of outcome.
func (q *Queue) SendMessage(ctx context.Context, draft SendDraft) (models.Message, error) {
	if strings.TrimSpace(draft.Content) == "" && len(draft.Images) == 0 {
		observability.IncAction("send_message", "validation")
		return models.Message{}, errs.Validation("content", "empty message")
	}
	if draft.RoomID == "" {
		observability.IncAction("send_message", "validation")
		return models.Message{}, errs.Validation("roomId", "missing room")
	}

	lock := q.roomLock(draft.RoomID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "action.send_message")
	defer span.End()
	defer q.signalRoomOrder(ctx)

	clientID := uuid.NewString()
	pending := models.Message{
		ClientID:  clientID,
		RoomID:    draft.RoomID,
		SenderID:  q.userID,
		Content:   draft.Content,
		Images:    draft.Images,
		ReplyToID: draft.ReplyToID,
		CreatedAt: time.Now(),
	}
	q.msgs.InsertPending(draft.RoomID, pending)

	req := api.SendMessageRequest{
		SenderID:       q.userID,
		RoomID:         draft.RoomID,
		Content:        draft.Content,
		Images:         draft.Images,
		ReplyMessageID: draft.ReplyToID,
		ClientID:       clientID,
	}
	if room, ok := q.rooms.Room(draft.RoomID); ok && !room.IsGroup() {
		if other, ok := room.OtherMember(q.userID); ok {
			req.ReceiverID = other.ID
		}
	}

	confirmed, err := q.messageAPI.SendMessage(ctx, req)
	if err != nil {
		q.msgs.MarkFailed(draft.RoomID, clientID)
		observability.IncAction("send_message", "error")
		q.emitAudit(ctx, "ERROR", "message send failed")
		return models.Message{}, fmt.Errorf("send message: %w", err)
	}

	// The send response is authoritative; keep the correlation id so the
	// broadcast echo reconciles instead of duplicating.
	confirmed.ClientID = clientID
	q.msgs.AppendConfirmed(draft.RoomID, confirmed)
	q.ch.Emit(models.EventSendMessage, models.MessageEvent{SavedMessage: confirmed})
	observability.IncAction("send_message", "success")
	return confirmed, nil
}

// DeleteMessage removes a message for everyone. The local log changes only
// after the backend confirms. Deleting an id that is not in the local log
// is a no-op success.
func (q *Queue) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	lock := q.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "action.delete_message")
	defer span.End()

	if !q.hasMessage(roomID, messageID) {
		observability.IncAction("delete_message", "noop")
		return nil
	}

	if err := q.messageAPI.DeleteMessage(ctx, messageID); err != nil {
		observability.IncAction("delete_message", "error")
		return fmt.Errorf("delete message: %w", err)
	}

	q.msgs.Remove(roomID, messageID)
	observability.IncAction("delete_message", "success")
	return nil
}

func (q *Queue) hasMessage(roomID, messageID string) bool {
	for _, msg := range q.msgs.Messages(roomID) {
		if msg.ID == messageID {
			return true
		}
	}
	return false
}

// CreateRoomInput describes a room to create. The creator is always added
// to the member set and administers group rooms.
type CreateRoomInput struct {
	Type      string
	MemberIDs []string
	Name      string
	Image     string
}

// CreateRoom creates a direct or group room. Group rooms require at least
// three members including the creator; the check runs before any network
// call. Direct creation is create-or-get: a room already present in the
// directory is returned unchanged.
func (q *Queue) CreateRoom(ctx context.Context, in CreateRoomInput) (models.Room, error) {
	members := withMember(in.MemberIDs, q.userID)

	switch in.Type {
	case models.RoomDirect:
		if len(members) != 2 {
			observability.IncAction("create_room", "validation")
			return models.Room{}, errs.Validation("members", "direct room needs exactly two members")
		}
	case models.RoomGroup:
		if len(members) < models.MinGroupMembers {
			observability.IncAction("create_room", "validation")
			return models.Room{}, errs.Validation("members", fmt.Sprintf("group needs at least %d members", models.MinGroupMembers))
		}
	default:
		observability.IncAction("create_room", "validation")
		return models.Room{}, errs.Validation("type", "unknown room type")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "action.create_room")
	defer span.End()

	req := api.CreateRoomRequest{
		Members: members,
		Type:    in.Type,
		Name:    in.Name,
		Image:   in.Image,
	}
	if in.Type == models.RoomGroup {
		if req.Name == "" {
			req.Name = "New Group"
		}
		req.AdminID = q.userID
	}

	created, err := q.roomAPI.CreateRoom(ctx, req)
	if err != nil {
		observability.IncAction("create_room", "error")
		q.emitAudit(ctx, "ERROR", "room creation failed")
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	if err := created.Validate(); err != nil {
		observability.IncAction("create_room", "invariant")
		return models.Room{}, err
	}

	if existing, ok := q.rooms.Room(created.ID); ok {
		observability.IncAction("create_room", "existing")
		return existing, nil
	}

	q.rooms.AddRoom(created)
	q.ch.Emit(models.EventCreateRoom, models.RoomEvent{CreatedRoom: created})
	observability.IncAction("create_room", "success")
	q.emitAudit(ctx, "INFO", "room created")
	return created, nil
}

// UpdateGroupInput describes a group mutation: member edits, rename, image
// change, or admin transfer via NewAdminID.
type UpdateGroupInput struct {
	RoomID     string
	MemberIDs  []string
	Name       string
	Image      string
	NewAdminID string
}

// UpdateGroup updates a group room after server confirmation; nothing
// changes locally on failure. The admin must remain a member.
func (q *Queue) UpdateGroup(ctx context.Context, in UpdateGroupInput) (models.Room, error) {
	room, ok := q.rooms.Room(in.RoomID)
	if !ok {
		observability.IncAction("update_group", "validation")
		return models.Room{}, errs.Validation("roomId", "unknown room")
	}
	if !room.IsGroup() {
		observability.IncAction("update_group", "validation")
		return models.Room{}, errs.Validation("roomId", "not a group room")
	}
	if len(in.MemberIDs) < models.MinGroupMembers {
		observability.IncAction("update_group", "validation")
		return models.Room{}, errs.Validation("members", fmt.Sprintf("group needs at least %d members", models.MinGroupMembers))
	}

	adminID := ""
	if room.Admin != nil {
		adminID = room.Admin.ID
	}
	effectiveAdmin := adminID
	if in.NewAdminID != "" {
		effectiveAdmin = in.NewAdminID
	}
	if !contains(in.MemberIDs, effectiveAdmin) {
		observability.IncAction("update_group", "validation")
		return models.Room{}, errs.Validation("adminId", "admin must be a member")
	}

	lock := q.roomLock(in.RoomID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "action.update_group")
	defer span.End()

	req := api.UpdateGroupRequest{
		RoomID:     in.RoomID,
		Members:    in.MemberIDs,
		Name:       in.Name,
		Image:      in.Image,
		AdminID:    adminID,
		NewAdminID: in.NewAdminID,
	}
	updated, err := q.roomAPI.UpdateGroup(ctx, req)
	if err != nil {
		observability.IncAction("update_group", "error")
		q.emitAudit(ctx, "ERROR", "group update failed")
		return models.Room{}, fmt.Errorf("update group: %w", err)
	}
	if err := updated.Validate(); err != nil {
		observability.IncAction("update_group", "invariant")
		return models.Room{}, err
	}

	q.rooms.UpdateRoom(updated)
	observability.IncAction("update_group", "success")
	q.emitAudit(ctx, "INFO", "group updated")
	return updated, nil
}

// signalRoomOrder refreshes the local directory and tells peers to resort
// theirs. Emits past the limiter burst are deferred to the next window and
// collapsed rather than dropped, so a burst of sends still ends with peers
// notified. The reload error is logged only since the triggering action
// already reported its own outcome.
func (q *Queue) signalRoomOrder(ctx context.Context) {
	if err := q.rooms.Load(ctx); err != nil {
		log.Printf("refresh rooms after action: %v", err)
	}

	q.mu.Lock()
	if q.sortPending {
		q.mu.Unlock()
		return
	}
	delay := q.sortLimit.Reserve().Delay()
	if delay > 0 {
		q.sortPending = true
	}
	q.mu.Unlock()

	if delay == 0 {
		q.ch.Emit(models.EventSortRoom, models.SortRoomEvent{UserID: q.userID})
		return
	}
	go func() {
		time.Sleep(delay)
		q.mu.Lock()
		q.sortPending = false
		q.mu.Unlock()
		q.ch.Emit(models.EventSortRoom, models.SortRoomEvent{UserID: q.userID})
	}()
}

func (q *Queue) emitAudit(ctx context.Context, level, text string) {
	if q.audit == nil {
		return
	}
	userID := q.userID
	q.audit.Emit(ctx, level, text, q.sessionID, &userID)
}

func withMember(ids []string, userID string) []string {
	if contains(ids, userID) {
		out := make([]string, len(ids))
		copy(out, ids)
		return out
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, userID)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
