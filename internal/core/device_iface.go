package core

import "github.com/pion/webrtc/v4"

// LocalTrack is a capture-backed outbound track.
type LocalTrack interface {
	webrtc.TrackLocal
	// OnEnded fires when the capture source stops on its own (device
	// unplugged, platform-level "stop sharing" control).
	OnEnded(func(error))
	Close() error
}

// UserMedia is the result of acquiring the local camera+microphone.
// Either track may be nil when the hardware lacks that kind.
type UserMedia struct {
	Audio LocalTrack
	Video LocalTrack
}

func (m *UserMedia) Tracks() []LocalTrack {
	var out []LocalTrack
	if m.Audio != nil {
		out = append(out, m.Audio)
	}
	if m.Video != nil {
		out = append(out, m.Video)
	}
	return out
}

// CaptureDevice abstracts local media hardware.
type CaptureDevice interface {
	// UserMedia requests the camera+microphone. Denial is reported as
	// *MediaAcquisitionError and must not be retried automatically.
	UserMedia() (*UserMedia, error)
	// DisplayMedia requests a screen-capture track.
	DisplayMedia() (LocalTrack, error)
}
