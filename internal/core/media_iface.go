package core

import (
	"context"

	"github.com/dkeye/Huddle/internal/domain"
)

// Track is one local capture track.
type Track interface {
	Kind() domain.MediaKind
	Enabled() bool
	SetEnabled(bool)
	// Stop releases the device; it is safe to call more than once.
	Stop()
}

// LocalMedia is what a MediaSource hands out. Video is nil for audio-only capture.
type LocalMedia struct {
	Audio Track
	Video Track
}

func (m *LocalMedia) Tracks() []Track {
	if m == nil {
		return nil
	}
	out := make([]Track, 0, 2)
	if m.Audio != nil {
		out = append(out, m.Audio)
	}
	if m.Video != nil {
		out = append(out, m.Video)
	}
	return out
}

func (m *LocalMedia) Track(kind domain.MediaKind) Track {
	if m == nil {
		return nil
	}
	switch kind {
	case domain.MediaAudio:
		return m.Audio
	case domain.MediaVideo:
		return m.Video
	}
	return nil
}

func (m *LocalMedia) Stop() {
	for _, t := range m.Tracks() {
		t.Stop()
	}
}

type MediaConstraints struct {
	Audio bool
	Video bool
}

type MediaSource interface {
	// Acquire blocks until the devices are opened or ctx is done.
	Acquire(ctx context.Context, c MediaConstraints) (*LocalMedia, error)
}

type PeerRole int

const (
	PeerInitiator PeerRole = iota
	PeerResponder
)

func (r PeerRole) String() string {
	if r == PeerInitiator {
		return "initiator"
	}
	return "responder"
}

// PeerConnection is the opaque peer-to-peer link. Payloads passed to Signal
// and emitted through OnSignal are never inspected by the caller.
type PeerConnection interface {
	Signal(payload any) error
	// Destroy must be idempotent.
	Destroy() error
	OnSignal(func(payload any))
	// OnFailure fires when the link dies without Destroy being called.
	OnFailure(func(error))
}

type PeerFactory interface {
	NewPeer(role PeerRole, media *LocalMedia) (PeerConnection, error)
}
