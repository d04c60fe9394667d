// Package relay forwards screen-capture frames from a candidate connection to
// subscribed viewer connections, isolated per attempt and per organization.
//
// The relay is best-effort: frames are never buffered or retried, and a frame
// with no watchers is discarded. The next frame supersedes it.
package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Relay coordinates the session and watcher registries and implements the
// frame relay protocol. Construct one per process and inject it.
type Relay struct {
	sessions *SessionRegistry
	watchers *WatcherRegistry
	log      zerolog.Logger
}

// New creates a Relay with fresh registries.
func New(log zerolog.Logger) *Relay {
	return &Relay{
		sessions: NewSessionRegistry(),
		watchers: NewWatcherRegistry(),
		log:      log.With().Str("component", "relay").Logger(),
	}
}

// StartStreaming registers a session for the attempt owned by p, replacing
// any prior entry, and acknowledges to p that frames may now be sent.
// The prior owner is not disconnected; its frames are simply dropped from now
// on by the owner check in Frame. A second client can therefore take over
// delivery silently, which page refresh and reconnect depend on.
// TODO: notify the replaced connection so a hijacked stream is visible.
func (r *Relay) StartStreaming(p Peer, attemptID uuid.UUID, candidateID, orgID int) {
	session := &StreamSession{
		AttemptID:   attemptID,
		CandidateID: candidateID,
		OrgID:       orgID,
		Owner:       p,
		StartedAt:   time.Now(),
	}

	if prev := r.sessions.Put(session); prev != nil {
		r.log.Warn().
			Str("attempt_id", attemptID.String()).
			Int("candidate_id", candidateID).
			Msg("Streaming session replaced by a new connection")
	}

	_ = p.Send(StreamingStartedEvent{
		Event:     EventStreamingStarted,
		AttemptID: attemptID,
	})
}

// Frame relays one frame from p to every current watcher of the attempt.
// Frames from unregistered attempts or non-owner connections are dropped
// silently (logged at debug); an empty watcher set discards the frame.
// None of these are failures; this is steady-state for a latest-frame relay.
func (r *Relay) Frame(p Peer, attemptID uuid.UUID, frame string, timestamp int64) {
	session := r.sessions.Get(attemptID)
	if session == nil {
		r.log.Debug().Str("attempt_id", attemptID.String()).Msg("Frame dropped: no session")
		return
	}
	if session.Owner != p {
		r.log.Debug().Str("attempt_id", attemptID.String()).Msg("Frame dropped: sender does not own session")
		return
	}

	peers := r.watchers.Snapshot(attemptID)
	if len(peers) == 0 {
		return
	}

	event := ScreenFrameEvent{
		Event:     EventScreenFrameOut,
		AttemptID: attemptID,
		Frame:     frame,
		Timestamp: timestamp,
	}
	for _, w := range peers {
		// Best-effort: a slow or dead watcher loses this frame, nothing more.
		_ = w.Send(event)
	}
}

// Watch subscribes p to the attempt's frames. Failures (no session, org
// mismatch) are reported as error events on p's connection, never as a
// terminated connection. On success the candidate connection is notified of
// the new viewer count.
func (r *Relay) Watch(p Peer, attemptID uuid.UUID, orgID int) {
	session := r.sessions.Get(attemptID)
	if session == nil {
		_ = p.Send(WatchErrorEvent{
			Event:     EventWatchError,
			AttemptID: attemptID,
			Error:     "no active streaming session for this attempt",
		})
		return
	}
	if session.OrgID != orgID {
		r.log.Warn().
			Str("attempt_id", attemptID.String()).
			Int("session_org", session.OrgID).
			Int("caller_org", orgID).
			Msg("Cross-organization watch rejected")
		_ = p.Send(WatchErrorEvent{
			Event:     EventWatchError,
			AttemptID: attemptID,
			Error:     "session belongs to another organization",
		})
		return
	}

	count := r.watchers.Add(attemptID, p)

	_ = p.Send(WatchingStartedEvent{
		Event:       EventWatchingStarted,
		AttemptID:   attemptID,
		CandidateID: session.CandidateID,
		StartedAt:   session.StartedAt,
	})
	_ = session.Owner.Send(AdminWatchingEvent{
		Event:     EventAdminWatching,
		AttemptID: attemptID,
		Viewers:   count,
	})
}

// StopWatching unsubscribes p from the attempt. A no-op (not an error) if p
// was not watching. The candidate is notified of the decremented count.
func (r *Relay) StopWatching(p Peer, attemptID uuid.UUID) {
	count, removed := r.watchers.Remove(attemptID, p)
	if !removed {
		return
	}
	r.notifyViewerCount(attemptID, count)
}

// StopStreaming ends the session for the attempt if p owns it: the session is
// removed, every current watcher receives exactly one stream-ended event, and
// the watcher set is cleared.
func (r *Relay) StopStreaming(p Peer, attemptID uuid.UUID) {
	session := r.sessions.Remove(attemptID, p)
	if session == nil {
		return
	}
	r.endStream(session)
}

// Disconnect cleans up after a closed connection: sessions it owned end as if
// stop-streaming had been called, and it is removed from every watcher set it
// belonged to, with viewer-count notifications to the affected candidates.
func (r *Relay) Disconnect(p Peer) {
	for _, session := range r.sessions.RemoveOwnedBy(p) {
		r.endStream(session)
	}

	for attemptID, remaining := range r.watchers.RemoveEverywhere(p) {
		r.notifyViewerCount(attemptID, remaining)
	}
}

// endStream broadcasts stream-ended to the attempt's watchers and drops the set.
func (r *Relay) endStream(session *StreamSession) {
	peers := r.watchers.Clear(session.AttemptID)

	event := StreamEndedEvent{
		Event:     EventStreamEnded,
		AttemptID: session.AttemptID,
	}
	for _, w := range peers {
		_ = w.Send(event)
	}

	r.log.Info().
		Str("attempt_id", session.AttemptID.String()).
		Int("candidate_id", session.CandidateID).
		Int("watchers", len(peers)).
		Msg("Stream ended")
}

func (r *Relay) notifyViewerCount(attemptID uuid.UUID, count int) {
	session := r.sessions.Get(attemptID)
	if session == nil {
		return
	}
	_ = session.Owner.Send(AdminStoppedWatchingEvent{
		Event:     EventAdminStoppedWatching,
		AttemptID: attemptID,
		Viewers:   count,
	})
}
