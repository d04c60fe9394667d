package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// StreamSession is the ephemeral record of one candidate streaming one attempt.
// It lives only in process memory and does not survive restarts.
type StreamSession struct {
	AttemptID   uuid.UUID
	CandidateID int
	OrgID       int
	Owner       Peer
	StartedAt   time.Time
}

// SessionRegistry maps attempt id → active streaming session. Constructed once
// at process start and injected; a multi-instance deployment would substitute
// an implementation backed by a shared fabric.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*StreamSession
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uuid.UUID]*StreamSession)}
}

// Put registers a session, unconditionally replacing any prior entry for the
// same attempt (last start wins; reconnect after a page refresh relies on
// this). Returns the replaced session, if any.
func (r *SessionRegistry) Put(s *StreamSession) *StreamSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sessions[s.AttemptID]
	r.sessions[s.AttemptID] = s
	return prev
}

// Get returns the session for an attempt, or nil.
func (r *SessionRegistry) Get(attemptID uuid.UUID) *StreamSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[attemptID]
}

// Remove deletes and returns the session for an attempt if it is owned by p.
// Returns nil when no session exists or p is not the owner.
func (r *SessionRegistry) Remove(attemptID uuid.UUID, p Peer) *StreamSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[attemptID]
	if !ok || s.Owner != p {
		return nil
	}
	delete(r.sessions, attemptID)
	return s
}

// RemoveOwnedBy deletes every session owned by p and returns them.
// Used on disconnect.
func (r *SessionRegistry) RemoveOwnedBy(p Peer) []*StreamSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []*StreamSession
	for id, s := range r.sessions {
		if s.Owner == p {
			delete(r.sessions, id)
			removed = append(removed, s)
		}
	}
	return removed
}

// WatcherRegistry maps attempt id → set of subscribed viewer peers.
// Membership validation (session exists, same org) happens in the Relay,
// which coordinates both registries under one flow.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[uuid.UUID]map[Peer]struct{}
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{watchers: make(map[uuid.UUID]map[Peer]struct{})}
}

// Add subscribes p to an attempt and returns the new watcher count.
func (r *WatcherRegistry) Add(attemptID uuid.UUID, p Peer) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.watchers[attemptID]
	if !ok {
		set = make(map[Peer]struct{})
		r.watchers[attemptID] = set
	}
	set[p] = struct{}{}
	return len(set)
}

// Remove unsubscribes p from an attempt. Returns the remaining count and
// whether p was actually subscribed. The key is deleted once the set empties.
func (r *WatcherRegistry) Remove(attemptID uuid.UUID, p Peer) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.watchers[attemptID]
	if !ok {
		return 0, false
	}
	if _, member := set[p]; !member {
		return len(set), false
	}
	delete(set, p)
	if len(set) == 0 {
		delete(r.watchers, attemptID)
		return 0, true
	}
	return len(set), true
}

// Snapshot returns a copy of the watcher set for iteration. Broadcasting over
// a snapshot keeps concurrent add/remove from mutating the set mid-loop.
func (r *WatcherRegistry) Snapshot(attemptID uuid.UUID) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.watchers[attemptID]
	if len(set) == 0 {
		return nil
	}
	peers := make([]Peer, 0, len(set))
	for p := range set {
		peers = append(peers, p)
	}
	return peers
}

// Clear removes the whole watcher set for an attempt and returns its members.
func (r *WatcherRegistry) Clear(attemptID uuid.UUID) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.watchers[attemptID]
	if len(set) == 0 {
		delete(r.watchers, attemptID)
		return nil
	}
	peers := make([]Peer, 0, len(set))
	for p := range set {
		peers = append(peers, p)
	}
	delete(r.watchers, attemptID)
	return peers
}

// RemoveEverywhere unsubscribes p from every attempt it watches and returns
// attempt id → remaining watcher count. Used on disconnect.
func (r *WatcherRegistry) RemoveEverywhere(p Peer) map[uuid.UUID]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	affected := make(map[uuid.UUID]int)
	for id, set := range r.watchers {
		if _, member := set[p]; !member {
			continue
		}
		delete(set, p)
		affected[id] = len(set)
		if len(set) == 0 {
			delete(r.watchers, id)
		}
	}
	return affected
}
