// Package capture implements core.CaptureDevice on top of pion
// mediadevices, encoding with VP8 and Opus.
package capture

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	// Register the hardware adapters.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"

	"github.com/keulen/huddle/internal/core"
)

type Device struct {
	selector *mediadevices.CodecSelector
}

func NewDevice() (*Device, error) {
	vp8, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vp8.BitRate = 1_000_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vp8),
		mediadevices.WithAudioEncoders(&opusParams),
	)
	return &Device{selector: selector}, nil
}

// PopulateEngine registers the selected codecs with a pion MediaEngine.
func (d *Device) PopulateEngine(m *webrtc.MediaEngine) error {
	d.selector.Populate(m)
	return nil
}

func (d *Device) UserMedia() (*core.UserMedia, error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameFormat = prop.FrameFormat(frame.FormatI420)
			c.Width = prop.Int(1280)
			c.Height = prop.Int(720)
		},
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: d.selector,
	})
	if err != nil {
		return nil, &core.MediaAcquisitionError{Err: err}
	}

	media := &core.UserMedia{}
	if tracks := stream.GetAudioTracks(); len(tracks) > 0 {
		media.Audio = tracks[0].(core.LocalTrack)
	}
	if tracks := stream.GetVideoTracks(); len(tracks) > 0 {
		media.Video = tracks[0].(core.LocalTrack)
	}
	log.Info().Str("module", "capture").
		Bool("audio", media.Audio != nil).
		Bool("video", media.Video != nil).
		Msg("user media acquired")
	return media, nil
}

func (d *Device) DisplayMedia() (core.LocalTrack, error) {
	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: d.selector,
	})
	if err != nil {
		return nil, &core.MediaAcquisitionError{Err: err}
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, &core.MediaAcquisitionError{Err: fmt.Errorf("display capture produced no video track")}
	}
	log.Info().Str("module", "capture").Str("track_id", tracks[0].ID()).Msg("display media acquired")
	return tracks[0].(core.LocalTrack), nil
}
