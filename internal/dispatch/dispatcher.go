// Package dispatch routes inbound channel events to store mutations.
// Every event is applied at most once; payloads that fail schema
// validation are dropped and logged, never surfaced to peers.
package dispatch

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-playground/validator/v10"

	"chat-sync/internal/channel"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/store"
)

var validate = validator.New()

// Dispatcher binds the transport channel to the session stores.
type Dispatcher struct {
	ch        channel.Channel
	rooms     *store.RoomDirectory
	msgs      *store.MessageStore
	userID    string
	sessionID string

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Dispatcher for the session user. Bind must be called to
// start receiving events.
func New(ch channel.Channel, rooms *store.RoomDirectory, msgs *store.MessageStore, userID, sessionID string) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		ch:        ch,
		rooms:     rooms,
		msgs:      msgs,
		userID:    userID,
		sessionID: sessionID,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Bind registers the inbound event handlers on the channel.
func (d *Dispatcher) Bind() {
	d.ch.On(models.EventRecvMessage, d.onReceiveMessage)
	d.ch.On(models.EventCreatedRoom, d.onCreatedRoom)
	d.ch.On(models.EventSortedRoom, d.onSortedRoom)
}

// Unbind releases the handlers and stops reacting to in-flight reloads.
// Pending network calls are not aborted, their results are ignored.
func (d *Dispatcher) Unbind() {
	d.ch.Off(models.EventRecvMessage)
	d.ch.Off(models.EventCreatedRoom)
	d.ch.Off(models.EventSortedRoom)
	d.cancel()
}

func (d *Dispatcher) onReceiveMessage(data json.RawMessage) {
	var event models.MessageEvent
	if !decodeEvent(models.EventRecvMessage, data, &event) {
		return
	}
	if event.SavedMessage.RoomID == "" || event.SavedMessage.ID == "" {
		log.Printf("dispatch %s: missing message identity, dropped", models.EventRecvMessage)
		observability.IncDroppedEvent(models.EventRecvMessage, "missing_field")
		return
	}
	d.msgs.AppendConfirmed(event.SavedMessage.RoomID, event.SavedMessage)
	d.exportEvent(models.EventRecvMessage, event.SavedMessage.RoomID, event)
}

func (d *Dispatcher) onCreatedRoom(data json.RawMessage) {
	var event models.RoomEvent
	if !decodeEvent(models.EventCreatedRoom, data, &event) {
		return
	}
	if err := event.CreatedRoom.Validate(); err != nil {
		log.Printf("dispatch %s: %v, dropped", models.EventCreatedRoom, err)
		observability.IncDroppedEvent(models.EventCreatedRoom, "invariant")
		return
	}
	if _, ok := event.CreatedRoom.Member(d.userID); !ok {
		// Broadcast for a room the local user is not part of.
		observability.IncDroppedEvent(models.EventCreatedRoom, "not_member")
		return
	}
	d.rooms.AddRoom(event.CreatedRoom)
	d.exportEvent(models.EventCreatedRoom, event.CreatedRoom.ID, event)
}

// onSortedRoom triggers a full directory reload. The payload is an empty
// signal on the wire; when the server includes a userId it is honored and
// reloads addressed to other users are ignored.
func (d *Dispatcher) onSortedRoom(data json.RawMessage) {
	if len(data) > 0 {
		var event models.SortRoomEvent
		if err := json.Unmarshal(data, &event); err == nil && event.UserID != "" && event.UserID != d.userID {
			return
		}
	}

	go func() {
		if d.ctx.Err() != nil {
			return
		}
		if err := d.rooms.Load(d.ctx); err != nil {
			if d.ctx.Err() != nil {
				return
			}
			log.Printf("dispatch %s: reload rooms: %v", models.EventSortedRoom, err)
		}
	}()
}

// exportEvent mirrors an applied inbound event to the ops bus. Publishing
// is best effort and already logged by the publisher.
func (d *Dispatcher) exportEvent(name, roomID string, payload interface{}) {
	envelope := observability.NewChannelEventEnvelope(name, d.sessionID, d.userID, roomID, payload)
	_ = observability.PublishEvent(d.ctx, "sync_events.channel", envelope, observability.BuildHeaders(d.sessionID, ""))
}

// decodeEvent unmarshals and validates an inbound payload. Failures are
// dropped and counted, never propagated.
func decodeEvent(event string, data json.RawMessage, out interface{}) bool {
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("dispatch %s: malformed payload: %v", event, err)
		observability.IncDroppedEvent(event, "malformed")
		return false
	}
	if err := validate.Struct(out); err != nil {
		log.Printf("dispatch %s: invalid payload: %v", event, err)
		observability.IncDroppedEvent(event, "invalid")
		return false
	}
	return true
}
