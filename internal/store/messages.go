package store

import (
	"context"
	"fmt"
	"sync"

	"chat-sync/internal/api"
	"chat-sync/internal/models"
)

// MessageStore owns the per-room chronological message logs, keyed by room
// id only. Confirmed appends reconcile pending optimistic inserts by client
// correlation id and are idempotent by server id, so a sender's own
// broadcast echo never duplicates.
type MessageStore struct {
	messageAPI api.MessageAPI

	mu      sync.RWMutex
	logs    map[string][]models.Message
	loading map[string]bool
	// queued holds confirmed events that arrived while a Load for the room
	// was in flight; they are reapplied once the load baseline is in place.
	queued map[string][]models.Message
}

// NewMessageStore builds an empty store.
func NewMessageStore(messageAPI api.MessageAPI) *MessageStore {
	return &MessageStore{
		messageAPI: messageAPI,
		logs:       make(map[string][]models.Message),
		loading:    make(map[string]bool),
		queued:     make(map[string][]models.Message),
	}
}

// Load fetches the full history for a room and replaces its log. The
// fetched baseline is authoritative; events that raced the fetch are
// reapplied on top of it afterwards.
func (s *MessageStore) Load(ctx context.Context, roomID string) error {
	s.mu.Lock()
	s.loading[roomID] = true
	s.mu.Unlock()

	history, err := s.messageAPI.MessagesForRoom(ctx, roomID)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loading, roomID)
	deferred := s.queued[roomID]
	delete(s.queued, roomID)

	if err != nil {
		// No new baseline; raced events still land on the existing log.
		for _, msg := range deferred {
			s.appendConfirmedLocked(roomID, msg)
		}
		return fmt.Errorf("load messages for room %s: %w", roomID, err)
	}

	log := make([]models.Message, 0, len(history))
	for _, msg := range history {
		msg.Delivery = models.DeliveryConfirmed
		log = appendResolved(log, msg)
	}
	s.logs[roomID] = log

	for _, msg := range deferred {
		s.appendConfirmedLocked(roomID, msg)
	}
	return nil
}

// AppendConfirmed appends a server-confirmed message to its room log. If a
// pending entry with the same client correlation id exists it is replaced;
// if the server id is already present the entry is updated in place rather
// than duplicated. While a Load for the room is in flight the message is
// queued and reapplied after the baseline.
func (s *MessageStore) AppendConfirmed(roomID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loading[roomID] {
		s.queued[roomID] = append(s.queued[roomID], msg)
		return
	}
	s.appendConfirmedLocked(roomID, msg)
}

func (s *MessageStore) appendConfirmedLocked(roomID string, msg models.Message) {
	msg.Delivery = models.DeliveryConfirmed
	log := s.logs[roomID]

	for i, existing := range log {
		if msg.ID != "" && existing.ID == msg.ID {
			log[i] = resolveReply(log, msg)
			s.logs[roomID] = log
			return
		}
		if msg.ClientID != "" && existing.ClientID == msg.ClientID && !existing.Confirmed() {
			log[i] = resolveReply(log, msg)
			s.logs[roomID] = log
			return
		}
	}

	s.logs[roomID] = appendResolved(log, msg)
}

// InsertPending appends an optimistic, not-yet-confirmed message.
func (s *MessageStore) InsertPending(roomID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Delivery = models.DeliveryPending
	s.logs[roomID] = appendResolved(s.logs[roomID], msg)
}

// MarkFailed flips the pending entry with the given client id to failed.
// The entry stays visible so the user can resubmit explicitly.
func (s *MessageStore) MarkFailed(roomID, clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[roomID]
	for i, msg := range log {
		if msg.ClientID == clientID && !msg.Confirmed() {
			log[i].Delivery = models.DeliveryFailed
			return
		}
	}
}

// Remove deletes a message by server id. Unknown ids are a no-op.
func (s *MessageStore) Remove(roomID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[roomID]
	for i, msg := range log {
		if msg.ID == messageID {
			s.logs[roomID] = append(log[:i], log[i+1:]...)
			return
		}
	}
}

// Messages returns a snapshot of the room's log in chronological order.
func (s *MessageStore) Messages(roomID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.logs[roomID]
	out := make([]models.Message, len(log))
	copy(out, log)
	return out
}

// Counts reports per-room log length plus pending and failed totals.
func (s *MessageStore) Counts() (perRoom map[string]int, pending, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perRoom = make(map[string]int, len(s.logs))
	for roomID, log := range s.logs {
		perRoom[roomID] = len(log)
		for _, msg := range log {
			switch msg.Delivery {
			case models.DeliveryPending:
				pending++
			case models.DeliveryFailed:
				failed++
			}
		}
	}
	return perRoom, pending, failed
}

// appendResolved appends msg to log with its reply snapshot attached.
func appendResolved(log []models.Message, msg models.Message) []models.Message {
	return append(log, resolveReply(log, msg))
}

// resolveReply attaches a ReplyRef snapshot when the reply target is in
// the same log. A missing target leaves the ref empty, never an error.
func resolveReply(log []models.Message, msg models.Message) models.Message {
	if msg.ReplyToID == "" || msg.Reply != nil {
		return msg
	}
	for _, candidate := range log {
		if candidate.ID == msg.ReplyToID {
			msg.Reply = &models.ReplyRef{
				MessageID: candidate.ID,
				SenderID:  candidate.SenderID,
				Content:   candidate.Content,
			}
			return msg
		}
	}
	return msg
}
