package rtc

import (
	"fmt"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/pion/webrtc/v4"
)

// Factory builds Peers that share one pion API and ICE configuration.
type Factory struct {
	API    *webrtc.API
	Config webrtc.Configuration
}

var _ core.PeerFactory = (*Factory)(nil)

func NewFactory(cfg webrtc.Configuration) (*Factory, error) {
	api, err := newAPI(webrtc.SettingEngine{})
	if err != nil {
		return nil, err
	}
	return &Factory{API: api, Config: cfg}, nil
}

// NewLoopbackFactory allows loopback host candidates and no ICE servers,
// for single-machine runs and tests.
func NewLoopbackFactory() (*Factory, error) {
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	api, err := newAPI(se)
	if err != nil {
		return nil, err
	}
	return &Factory{API: api}, nil
}

func newAPI(se webrtc.SettingEngine) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se)), nil
}

func (f *Factory) NewPeer(role core.PeerRole, media *core.LocalMedia) (core.PeerConnection, error) {
	return NewPeer(f.API, f.Config, role, media)
}
