package app

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

// Role is the negotiation role of one peer session.
type Role int

const (
	RoleUndecided Role = iota
	RoleOfferer
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	}
	return "undecided"
}

// PeerSession is the per-remote-participant connection state. Owned by
// the registry; referenced by the negotiation flows.
type PeerSession struct {
	ID           domain.ParticipantID
	Conn         core.MediaConnection
	Role         Role
	RemoteStream string
}

// ConnectionFactory constructs a fresh peer-connection handle.
type ConnectionFactory func(peer domain.ParticipantID) (core.MediaConnection, error)

// TrackSource exposes the currently-held local tracks for attachment to
// new sessions.
type TrackSource interface {
	ActiveTracks() []webrtc.TrackLocal
}

// SessionInfo is a read-only session view for the control API.
type SessionInfo struct {
	Peer         domain.ParticipantID `json:"peer"`
	Role         string               `json:"role"`
	State        string               `json:"state"`
	RemoteStream string               `json:"remoteStream,omitempty"`
}

// SessionRegistry owns one peer-connection handle per remote
// participant id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.ParticipantID]*PeerSession

	factory ConnectionFactory
	buffer  *CandidateBuffer
	tracks  TrackSource

	onLocalCandidate func(peer domain.ParticipantID, cand webrtc.ICECandidateInit)
	onRemoteTrack    func(peer domain.ParticipantID, track *webrtc.TrackRemote, newStream bool)
	onStateChange    func(peer domain.ParticipantID, state webrtc.PeerConnectionState)
}

func NewSessionRegistry(factory ConnectionFactory, buffer *CandidateBuffer) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[domain.ParticipantID]*PeerSession),
		factory:  factory,
		buffer:   buffer,
	}
}

// SetTrackSource wires the local media controller; new sessions get the
// currently-held tracks attached on creation.
func (r *SessionRegistry) SetTrackSource(ts TrackSource) { r.tracks = ts }

func (r *SessionRegistry) OnLocalCandidate(fn func(domain.ParticipantID, webrtc.ICECandidateInit)) {
	r.onLocalCandidate = fn
}

// OnRemoteTrack fires for every arriving remote track; newStream is set
// only for the first track of a not-yet-published remote stream, so the
// same stream is never published twice for one participant.
func (r *SessionRegistry) OnRemoteTrack(fn func(peer domain.ParticipantID, track *webrtc.TrackRemote, newStream bool)) {
	r.onRemoteTrack = fn
}

func (r *SessionRegistry) OnStateChange(fn func(domain.ParticipantID, webrtc.PeerConnectionState)) {
	r.onStateChange = fn
}

func (r *SessionRegistry) Get(id domain.ParticipantID) (*PeerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate returns the existing session unchanged, or constructs a
// new handle: wires event sinks, attaches held local tracks, stores it,
// and applies any candidates buffered for this id.
func (r *SessionRegistry) GetOrCreate(id domain.ParticipantID) (*PeerSession, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	conn, err := r.factory(id)
	if err != nil {
		return nil, err
	}
	sess := &PeerSession{ID: id, Conn: conn}

	conn.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		// Outbound candidates are forwarded immediately, never buffered.
		if r.onLocalCandidate != nil {
			r.onLocalCandidate(id, cand)
		}
	})

	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		newStream := r.markRemoteStream(id, track.StreamID())
		if r.onRemoteTrack != nil {
			r.onRemoteTrack(id, track, newStream)
		}
	})

	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if r.onStateChange != nil {
			r.onStateChange(id, state)
		}
	})

	if r.tracks != nil {
		for _, t := range r.tracks.ActiveTracks() {
			if _, err := conn.AttachTrack(t); err != nil {
				log.Warn().Err(err).Str("module", "app.registry").Str("peer", string(id)).
					Str("kind", t.Kind().String()).Msg("attach local track")
			}
		}
	}

	r.mu.Lock()
	// Lost the race with a concurrent create: keep the stored one.
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		_ = conn.Close()
		return existing, nil
	}
	r.sessions[id] = sess
	r.mu.Unlock()

	// A fresh handle almost never has candidates pending for it, so
	// application failures are logged and the candidate dropped.
	for _, cand := range r.buffer.Drain(id) {
		if err := conn.AddICECandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("peer", string(id)).Msg("apply buffered candidate")
		}
	}

	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("session created")
	return sess, nil
}

// Remove closes the handle and deletes all associated state. Idempotent.
func (r *SessionRegistry) Remove(id domain.ParticipantID) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	r.buffer.Forget(id)
	if !ok {
		return
	}
	_ = sess.Conn.Close()
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Msg("session removed")
}

// RemoveAll tears down every session.
func (r *SessionRegistry) RemoveAll() {
	for _, id := range r.IDs() {
		r.Remove(id)
	}
}

func (r *SessionRegistry) IDs() []domain.ParticipantID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ParticipantID, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}

func (r *SessionRegistry) All() []*PeerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PeerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *SessionRegistry) Snapshot() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{
			Peer:         s.ID,
			Role:         s.Role.String(),
			State:        s.Conn.State().String(),
			RemoteStream: s.RemoteStream,
		})
	}
	return out
}

// markRemoteStream records the last-known remote stream id; it reports
// false when the same stream was already published for this peer.
func (r *SessionRegistry) markRemoteStream(id domain.ParticipantID, streamID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || sess.RemoteStream == streamID {
		return false
	}
	sess.RemoteStream = streamID
	return true
}
