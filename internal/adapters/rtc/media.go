package rtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const frameDuration = 20 * time.Millisecond

// opus frame carrying silence
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// LocalTrack is a sample-based outbound track. Disabled tracks stay
// negotiated but stop producing samples.
type LocalTrack struct {
	kind  domain.MediaKind
	local *webrtc.TrackLocalStaticSample

	enabled  atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
}

var _ core.Track = (*LocalTrack)(nil)

func NewLocalTrack(kind domain.MediaKind, streamID string) (*LocalTrack, error) {
	capability := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == domain.MediaVideo {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	local, err := webrtc.NewTrackLocalStaticSample(capability, kind.String(), streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}
	t := &LocalTrack{kind: kind, local: local, stopped: make(chan struct{})}
	t.enabled.Store(true)
	return t, nil
}

func (t *LocalTrack) Kind() domain.MediaKind { return t.kind }

func (t *LocalTrack) Enabled() bool { return t.enabled.Load() }

func (t *LocalTrack) SetEnabled(on bool) { t.enabled.Store(on) }

func (t *LocalTrack) Stop() {
	t.stopOnce.Do(func() {
		t.enabled.Store(false)
		close(t.stopped)
	})
}

func (t *LocalTrack) Stopped() <-chan struct{} { return t.stopped }

func (t *LocalTrack) Local() *webrtc.TrackLocalStaticSample { return t.local }

// pumpSilence feeds comfort frames while the track is enabled.
func (t *LocalTrack) pumpSilence() {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopped:
			return
		case <-ticker.C:
			if !t.enabled.Load() {
				continue
			}
			_ = t.local.WriteSample(media.Sample{Data: opusSilence, Duration: frameDuration})
		}
	}
}

// SyntheticSource stands in for capture devices on a headless client.
// NoCamera and NoMicrophone simulate missing or denied devices.
type SyntheticSource struct {
	NoCamera     bool
	NoMicrophone bool
	// Delay simulates a slow permission prompt.
	Delay time.Duration
}

var _ core.MediaSource = SyntheticSource{}

func (s SyntheticSource) Acquire(ctx context.Context, c core.MediaConstraints) (*core.LocalMedia, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Video && s.NoCamera {
		return nil, fmt.Errorf("camera: %w", domain.ErrMediaUnavailable)
	}
	if c.Audio && s.NoMicrophone {
		return nil, fmt.Errorf("microphone: %w", domain.ErrMediaUnavailable)
	}

	streamID := uuid.NewString()
	m := &core.LocalMedia{}
	if c.Audio {
		t, err := NewLocalTrack(domain.MediaAudio, streamID)
		if err != nil {
			return nil, err
		}
		go t.pumpSilence()
		m.Audio = t
	}
	if c.Video {
		t, err := NewLocalTrack(domain.MediaVideo, streamID)
		if err != nil {
			m.Stop()
			return nil, err
		}
		m.Video = t
	}
	if len(m.Tracks()) == 0 {
		return nil, domain.ErrMediaUnavailable
	}
	return m, nil
}
