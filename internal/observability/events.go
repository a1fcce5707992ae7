package observability

import "time"

// EventEnvelope wraps a sync event exported to the ops bus, carrying the
// session and room context the raw channel payload lacks.
type EventEnvelope struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventName     string      `json:"event_name"`
	SessionID     string      `json:"session_id,omitempty"`
	UserID        string      `json:"user_id,omitempty"`
	RoomID        string      `json:"room_id,omitempty"`
	OccurredAt    string      `json:"occurred_at"`
	Payload       interface{} `json:"payload"`
}

// NewChannelEventEnvelope builds the envelope for an applied inbound
// channel event.
func NewChannelEventEnvelope(name, sessionID, userID, roomID string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		SchemaVersion: 1,
		EventType:     "channel_event",
		EventName:     name,
		SessionID:     sessionID,
		UserID:        userID,
		RoomID:        roomID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Payload:       payload,
	}
}

// BuildHeaders assembles AMQP headers from correlation identifiers.
func BuildHeaders(sessionID, traceID string) map[string]string {
	headers := map[string]string{}
	if sessionID != "" {
		headers["x-session-id"] = sessionID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
