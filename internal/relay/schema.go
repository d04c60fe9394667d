package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ─── Events (Client → Server) ───────────────────────────────────────

type InboundEvent string

const (
	EventStartStreaming InboundEvent = "start-streaming"
	EventScreenFrame    InboundEvent = "screen-frame"
	EventWatchScreen    InboundEvent = "watch-screen"
	EventStopWatching   InboundEvent = "stop-watching"
	EventStopStreaming  InboundEvent = "stop-streaming"
)

// Envelope is used to peek at the event before full payload parsing.
type Envelope struct {
	Event InboundEvent    `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// StartStreamingRequest opens (or replaces) the streaming session for an attempt.
type StartStreamingRequest struct {
	AttemptID uuid.UUID `json:"attempt_id"`
}

// ScreenFrameRequest carries one opaque base64 frame with its capture timestamp.
type ScreenFrameRequest struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Frame     string    `json:"frame"`
	Timestamp int64     `json:"timestamp"`
}

// WatchRequest subscribes the caller to an attempt's frames.
type WatchRequest struct {
	AttemptID uuid.UUID `json:"attempt_id"`
}

// StopWatchingRequest unsubscribes the caller from an attempt's frames.
type StopWatchingRequest struct {
	AttemptID uuid.UUID `json:"attempt_id"`
}

// StopStreamingRequest ends the streaming session owned by the caller.
type StopStreamingRequest struct {
	AttemptID uuid.UUID `json:"attempt_id"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type OutboundEvent string

const (
	EventStreamingStarted     OutboundEvent = "streaming-started"
	EventScreenFrameOut       OutboundEvent = "screen-frame"
	EventWatchingStarted      OutboundEvent = "watching-started"
	EventWatchError           OutboundEvent = "watch-error"
	EventAdminWatching        OutboundEvent = "admin-watching"
	EventAdminStoppedWatching OutboundEvent = "admin-stopped-watching"
	EventStreamEnded          OutboundEvent = "stream-ended"
	EventProtocolError        OutboundEvent = "error"
)

// StreamingStartedEvent acknowledges that frames may now be sent.
type StreamingStartedEvent struct {
	Event     OutboundEvent `json:"event"`
	AttemptID uuid.UUID     `json:"attempt_id"`
}

// ScreenFrameEvent relays a frame verbatim to a watcher.
type ScreenFrameEvent struct {
	Event     OutboundEvent `json:"event"`
	AttemptID uuid.UUID     `json:"attempt_id"`
	Frame     string        `json:"frame"`
	Timestamp int64         `json:"timestamp"`
}

// WatchingStartedEvent confirms a subscription with session metadata.
type WatchingStartedEvent struct {
	Event       OutboundEvent `json:"event"`
	AttemptID   uuid.UUID     `json:"attempt_id"`
	CandidateID int           `json:"candidate_id"`
	StartedAt   time.Time     `json:"started_at"`
}

// WatchErrorEvent reports a failed watch attempt without closing the connection.
type WatchErrorEvent struct {
	Event     OutboundEvent `json:"event"`
	AttemptID uuid.UUID     `json:"attempt_id"`
	Error     string        `json:"error"`
}

// AdminWatchingEvent notifies the streaming candidate of a viewer-count change.
type AdminWatchingEvent struct {
	Event     OutboundEvent `json:"event"`
	AttemptID uuid.UUID     `json:"attempt_id"`
	Viewers   int           `json:"viewers"`
}

// AdminStoppedWatchingEvent notifies the candidate that a viewer left.
type AdminStoppedWatchingEvent struct {
	Event     OutboundEvent `json:"event"`
	AttemptID uuid.UUID     `json:"attempt_id"`
	Viewers   int           `json:"viewers"`
}

// StreamEndedEvent tells watchers that the session is over.
type StreamEndedEvent struct {
	Event     OutboundEvent `json:"event"`
	AttemptID uuid.UUID     `json:"attempt_id"`
}

// ProtocolErrorEvent reports a malformed or unknown inbound message.
type ProtocolErrorEvent struct {
	Event OutboundEvent `json:"event"`
	Error string        `json:"error"`
}
