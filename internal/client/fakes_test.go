package client

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type fakeTrack struct {
	kind domain.MediaKind

	mu      sync.Mutex
	enabled bool
	stops   int
}

func newFakeTrack(kind domain.MediaKind) *fakeTrack { return &fakeTrack{kind: kind, enabled: true} }

func (t *fakeTrack) Kind() domain.MediaKind { return t.kind }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
	t.enabled = false
}

func (t *fakeTrack) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// fakeSource hands out fake tracks. noCamera fails any request with video;
// gate, when set, blocks Acquire until it is closed or ctx ends.
type fakeSource struct {
	noCamera bool
	noMic    bool
	gate     chan struct{}

	mu     sync.Mutex
	calls  []core.MediaConstraints
	issued []*core.LocalMedia
}

var errNoDevice = errors.New("no device")

func (s *fakeSource) Acquire(ctx context.Context, c core.MediaConstraints) (*core.LocalMedia, error) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if (c.Video && s.noCamera) || (c.Audio && s.noMic) {
		return nil, errNoDevice
	}
	m := &core.LocalMedia{}
	if c.Audio {
		m.Audio = newFakeTrack(domain.MediaAudio)
	}
	if c.Video {
		m.Video = newFakeTrack(domain.MediaVideo)
	}
	s.mu.Lock()
	s.issued = append(s.issued, m)
	s.mu.Unlock()
	return m, nil
}

func (s *fakeSource) Calls() []core.MediaConstraints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MediaConstraints(nil), s.calls...)
}

func (s *fakeSource) Issued() []*core.LocalMedia {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*core.LocalMedia(nil), s.issued...)
}

type fakePeer struct {
	role core.PeerRole

	mu        sync.Mutex
	signals   []any
	destroys  int
	onSignal  func(any)
	onFailure func(error)
}

func (p *fakePeer) Signal(payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, payload)
	return nil
}

func (p *fakePeer) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroys++
	return nil
}

func (p *fakePeer) OnSignal(fn func(any)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSignal = fn
}

func (p *fakePeer) OnFailure(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFailure = fn
}

// emit plays the connection producing an outbound payload.
func (p *fakePeer) emit(payload any) {
	p.mu.Lock()
	fn := p.onSignal
	p.mu.Unlock()
	fn(payload)
}

func (p *fakePeer) fail(err error) {
	p.mu.Lock()
	fn := p.onFailure
	p.mu.Unlock()
	fn(err)
}

func (p *fakePeer) Signals() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.signals...)
}

func (p *fakePeer) Destroys() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroys
}

type fakeFactory struct {
	mu    sync.Mutex
	peers []*fakePeer
	err   error
}

func (f *fakeFactory) NewPeer(role core.PeerRole, _ *core.LocalMedia) (core.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePeer{role: role}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) Peers() []*fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePeer(nil), f.peers...)
}
