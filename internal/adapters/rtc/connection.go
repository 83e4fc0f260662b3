package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

// Connection wraps a pion PeerConnection for one remote participant and
// implements core.MediaConnection.
type Connection struct {
	pc   *webrtc.PeerConnection
	peer domain.ParticipantID

	mu       sync.Mutex
	state    core.SignalingState
	senders  map[webrtc.RTPCodecType]*webrtc.RTPSender
	tracks   map[webrtc.RTPCodecType]webrtc.TrackLocal
	disabled map[webrtc.RTPCodecType]bool

	onICE   func(webrtc.ICECandidateInit)
	onTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onState func(webrtc.PeerConnectionState)
}

func NewConnection(api *webrtc.API, cfg webrtc.Configuration, peer domain.ParticipantID) (*Connection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &Connection{
		pc:       pc,
		peer:     peer,
		state:    core.StateNew,
		senders:  make(map[webrtc.RTPCodecType]*webrtc.RTPSender),
		tracks:   make(map[webrtc.RTPCodecType]webrtc.TrackLocal),
		disabled: make(map[webrtc.RTPCodecType]bool),
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(peer)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("remote track")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(track, receiver)
		}
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(peer)).Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(peer)).Str("peer_connection_state", s.String()).Msg("peer state")
		c.mu.Lock()
		fn := c.onState
		c.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	})

	return c, nil
}

func (c *Connection) CreateAndSetOffer() (webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	c.setState(core.StateHaveLocalOffer)
	return offer, nil
}

func (c *Connection) CreateAndSetAnswer() (webrtc.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	c.setState(core.StateStable)
	return answer, nil
}

func (c *Connection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	if desc.Type == webrtc.SDPTypeOffer {
		c.setState(core.StateHaveRemoteOffer)
	} else {
		c.setState(core.StateStable)
	}
	return nil
}

func (c *Connection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *Connection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// AttachTrack replaces the same-kind sender's track or adds a new sender.
func (c *Connection) AttachTrack(track webrtc.TrackLocal) (bool, error) {
	kind := track.Kind()
	c.mu.Lock()
	defer c.mu.Unlock()

	if sender, ok := c.senders[kind]; ok {
		if c.tracks[kind] == track {
			return false, nil
		}
		c.tracks[kind] = track
		if c.disabled[kind] {
			return true, nil
		}
		if err := sender.ReplaceTrack(track); err != nil {
			return false, err
		}
		return true, nil
	}

	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return false, err
	}
	c.senders[kind] = sender
	c.tracks[kind] = track
	return true, nil
}

func (c *Connection) ClearTrack(kind webrtc.RTPCodecType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sender, ok := c.senders[kind]
	if !ok {
		return nil
	}
	delete(c.tracks, kind)
	return sender.ReplaceTrack(nil)
}

// SetTrackEnabled pauses (ReplaceTrack(nil)) or resumes the sender for
// the given kind; the attached track reference is kept either way.
func (c *Connection) SetTrackEnabled(kind webrtc.RTPCodecType, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sender, ok := c.senders[kind]
	if !ok {
		return nil
	}
	c.disabled[kind] = !enabled
	if enabled {
		return sender.ReplaceTrack(c.tracks[kind])
	}
	return sender.ReplaceTrack(nil)
}

func (c *Connection) State() core.SignalingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(s core.SignalingState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *Connection) OnTrack(fn func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *Connection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

func (c *Connection) Close() error {
	c.setState(core.StateClosed)
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(c.peer)).Msg("close error")
		return err
	}
	log.Info().Str("module", "rtc").Str("peer", string(c.peer)).Msg("closed")
	return nil
}
