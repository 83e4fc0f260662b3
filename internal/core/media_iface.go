package core

import "github.com/pion/webrtc/v4"

// SignalingState is the negotiation sub-state of one peer session.
type SignalingState int

const (
	StateNew SignalingState = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateStable
	StateClosed
)

func (s SignalingState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// MediaConnection abstracts one peer-to-peer connection handle.
type MediaConnection interface {
	// CreateAndSetOffer builds an offer from the current local session
	// state and installs it as the local description.
	CreateAndSetOffer() (webrtc.SessionDescription, error)
	// CreateAndSetAnswer answers a previously applied remote offer.
	CreateAndSetAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(webrtc.SessionDescription) error
	HasRemoteDescription() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error

	// AttachTrack replaces an existing same-kind sender track, or adds a
	// new sender. Reports whether the sender set actually changed.
	AttachTrack(track webrtc.TrackLocal) (bool, error)
	// ClearTrack stops sending the given kind without tearing the sender down.
	ClearTrack(kind webrtc.RTPCodecType) error
	// SetTrackEnabled pauses or resumes an attached sender. No
	// description exchange is required for this.
	SetTrackEnabled(kind webrtc.RTPCodecType, enabled bool) error

	State() SignalingState

	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// OnConnectionStateChange is observed for diagnostics only.
	OnConnectionStateChange(func(webrtc.PeerConnectionState))

	Close() error
}
