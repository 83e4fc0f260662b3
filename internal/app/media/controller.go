// Package media owns the local capture state: the camera+microphone
// stream, the optional screen track, and the mute/cam-off flags.
package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/keulen/huddle/internal/app"
	"github.com/keulen/huddle/internal/core"
	"github.com/keulen/huddle/internal/domain"
)

// State is a read-only view of the local media flags.
type State struct {
	HasStream  bool `json:"hasStream"`
	MicEnabled bool `json:"micEnabled"`
	CamEnabled bool `json:"camEnabled"`
	Sharing    bool `json:"sharing"`
}

// Controller acquires and holds the local media; it pushes tracks into
// every peer session and flips their enabled state on toggles.
type Controller struct {
	device   core.CaptureDevice
	sessions *app.SessionRegistry

	// TrackChanged fires after a track was added or replaced on an
	// existing session; the orchestrator renegotiates that one peer.
	TrackChanged func(peer domain.ParticipantID)
	// ScreenEnded fires when the capture source stops on its own.
	ScreenEnded func()

	mu         sync.Mutex
	audio      core.LocalTrack
	video      core.LocalTrack
	screen     core.LocalTrack
	micEnabled bool
	camEnabled bool
}

func NewController(device core.CaptureDevice, sessions *app.SessionRegistry) *Controller {
	return &Controller{device: device, sessions: sessions}
}

// ActiveTracks implements app.TrackSource: the tracks a new session
// should start with. While sharing, the screen track stands in for the
// camera.
func (c *Controller) ActiveTracks() []webrtc.TrackLocal {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []webrtc.TrackLocal
	if c.audio != nil {
		out = append(out, c.audio)
	}
	switch {
	case c.screen != nil:
		out = append(out, c.screen)
	case c.video != nil:
		out = append(out, c.video)
	}
	return out
}

// Acquire requests the camera+microphone unless a stream is already
// held (in which case it only leaves the flags as they are) or the
// caller is neither allowed nor owner and force is unset.
func (c *Controller) Acquire(force bool, perms domain.Permissions, isOwner bool) error {
	if !force && !perms.Allowed && !isOwner {
		log.Debug().Str("module", "media").Msg("not allowed to start media yet")
		return nil
	}

	c.mu.Lock()
	if c.audio != nil || c.video != nil {
		// Idempotent: never re-acquire hardware.
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	media, err := c.device.UserMedia()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.audio = media.Audio
	c.video = media.Video
	c.micEnabled = media.Audio != nil
	c.camEnabled = media.Video != nil
	tracks := make([]webrtc.TrackLocal, 0, 2)
	if c.audio != nil {
		tracks = append(tracks, c.audio)
	}
	if c.video != nil {
		tracks = append(tracks, c.video)
	}
	c.mu.Unlock()

	// Push the fresh tracks into every existing session; replacing an
	// existing same-kind sender, otherwise adding a new one.
	for _, sess := range c.sessions.All() {
		changed := false
		for _, t := range tracks {
			ch, err := sess.Conn.AttachTrack(t)
			if err != nil {
				log.Warn().Err(err).Str("module", "media").Str("peer", string(sess.ID)).
					Str("kind", t.Kind().String()).Msg("attach track")
				continue
			}
			changed = changed || ch
		}
		if changed && c.TrackChanged != nil {
			c.TrackChanged(sess.ID)
		}
	}

	log.Info().Str("module", "media").Msg("local media started")
	return nil
}

// ToggleMic flips the microphone. With no stream held it first performs
// a forced acquire, then applies the toggle exactly once. Blocked when
// unmuting without permission.
func (c *Controller) ToggleMic(perms domain.Permissions, isOwner bool) error {
	if !perms.Unmute && !isOwner {
		return nil
	}

	c.mu.Lock()
	held := c.audio != nil || c.video != nil
	c.mu.Unlock()
	if !held {
		if err := c.Acquire(true, perms, isOwner); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.audio == nil {
		c.mu.Unlock()
		return nil
	}
	c.micEnabled = !c.micEnabled
	enabled := c.micEnabled
	c.mu.Unlock()

	c.setKindEnabled(webrtc.RTPCodecTypeAudio, enabled)
	log.Info().Str("module", "media").Bool("enabled", enabled).Msg("mic toggled")
	return nil
}

// ToggleCam flips the camera; same acquire-then-toggle rule as ToggleMic.
func (c *Controller) ToggleCam(perms domain.Permissions, isOwner bool) error {
	if !perms.Video && !isOwner {
		return nil
	}

	c.mu.Lock()
	held := c.audio != nil || c.video != nil
	c.mu.Unlock()
	if !held {
		if err := c.Acquire(true, perms, isOwner); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.video == nil {
		c.mu.Unlock()
		return nil
	}
	c.camEnabled = !c.camEnabled
	enabled := c.camEnabled
	sharing := c.screen != nil
	c.mu.Unlock()

	// While sharing, the video sender carries the screen track; the cam
	// flag still flips so the state is right when the share ends.
	if !sharing {
		c.setKindEnabled(webrtc.RTPCodecTypeVideo, enabled)
	}
	log.Info().Str("module", "media").Bool("enabled", enabled).Msg("camera toggled")
	return nil
}

// ForceMute disables the outbound microphone without a permission
// check; used when the owner revokes unmute. Sessions are untouched.
func (c *Controller) ForceMute() {
	c.mu.Lock()
	if c.audio == nil || !c.micEnabled {
		c.mu.Unlock()
		return
	}
	c.micEnabled = false
	c.mu.Unlock()
	c.setKindEnabled(webrtc.RTPCodecTypeAudio, false)
	log.Info().Str("module", "media").Msg("forced mute")
}

// ForceCameraOff disables the outbound camera without a permission check.
func (c *Controller) ForceCameraOff() {
	c.mu.Lock()
	if c.video == nil || !c.camEnabled {
		c.mu.Unlock()
		return
	}
	c.camEnabled = false
	sharing := c.screen != nil
	c.mu.Unlock()
	if !sharing {
		c.setKindEnabled(webrtc.RTPCodecTypeVideo, false)
	}
	log.Info().Str("module", "media").Msg("forced camera off")
}

// StartScreenShare swaps the outbound video track for a screen capture
// on every session.
func (c *Controller) StartScreenShare() error {
	c.mu.Lock()
	if c.screen != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	track, err := c.device.DisplayMedia()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.screen = track
	c.mu.Unlock()

	track.OnEnded(func(err error) {
		if err != nil {
			log.Warn().Err(err).Str("module", "media").Msg("screen track ended")
		}
		if c.ScreenEnded != nil {
			c.ScreenEnded()
		}
	})

	for _, sess := range c.sessions.All() {
		changed, err := sess.Conn.AttachTrack(track)
		if err != nil {
			log.Warn().Err(err).Str("module", "media").Str("peer", string(sess.ID)).Msg("attach screen track")
			continue
		}
		if changed && c.TrackChanged != nil {
			c.TrackChanged(sess.ID)
		}
	}
	log.Info().Str("module", "media").Msg("screen share started")
	return nil
}

// StopScreenShare restores the camera track (or removes the video
// sender when no camera track exists) and stops the capture source.
// The track-ended path funnels here too. Idempotent.
func (c *Controller) StopScreenShare() {
	c.mu.Lock()
	track := c.screen
	c.screen = nil
	cam := c.video
	c.mu.Unlock()
	if track == nil {
		return
	}

	for _, sess := range c.sessions.All() {
		var changed bool
		var err error
		if cam != nil {
			changed, err = sess.Conn.AttachTrack(cam)
		} else {
			err = sess.Conn.ClearTrack(webrtc.RTPCodecTypeVideo)
			changed = err == nil
		}
		if err != nil {
			log.Warn().Err(err).Str("module", "media").Str("peer", string(sess.ID)).Msg("restore camera track")
			continue
		}
		if changed && c.TrackChanged != nil {
			c.TrackChanged(sess.ID)
		}
	}

	if err := track.Close(); err != nil {
		log.Warn().Err(err).Str("module", "media").Msg("stop screen track")
	}
	log.Info().Str("module", "media").Msg("screen share stopped")
}

// Release stops and releases every local track. Idempotent.
func (c *Controller) Release() {
	c.mu.Lock()
	audio, video, screen := c.audio, c.video, c.screen
	c.audio, c.video, c.screen = nil, nil, nil
	c.micEnabled, c.camEnabled = false, false
	c.mu.Unlock()

	for _, t := range []core.LocalTrack{audio, video, screen} {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("module", "media").Str("kind", t.Kind().String()).Msg("release track")
		}
	}
	if audio != nil || video != nil || screen != nil {
		log.Info().Str("module", "media").Msg("local media released")
	}
}

func (c *Controller) Sharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen != nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		HasStream:  c.audio != nil || c.video != nil,
		MicEnabled: c.micEnabled,
		CamEnabled: c.camEnabled,
		Sharing:    c.screen != nil,
	}
}

func (c *Controller) setKindEnabled(kind webrtc.RTPCodecType, enabled bool) {
	for _, sess := range c.sessions.All() {
		if err := sess.Conn.SetTrackEnabled(kind, enabled); err != nil {
			log.Warn().Err(err).Str("module", "media").Str("peer", string(sess.ID)).
				Str("kind", kind.String()).Msg("set track enabled")
		}
	}
}
