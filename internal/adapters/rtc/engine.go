package rtc

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/webrtc/v4"
)

// PopulateEngine registers the codecs the capture device encodes with.
type PopulateEngine func(*webrtc.MediaEngine) error

// NewAPI builds the shared pion API: capture codecs plus a NACK
// generator/responder pair for loss recovery.
func NewAPI(populate PopulateEngine) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := populate(m); err != nil {
		return nil, fmt.Errorf("populate media engine: %w", err)
	}

	i := &interceptor.Registry{}
	generator, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	responder, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(generator)
	i.Add(responder)

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
	), nil
}

// Configuration builds the peer-connection configuration from STUN URLs.
func Configuration(stunServers []string) webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: stunServers},
		},
	}
}
