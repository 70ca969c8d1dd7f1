package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnexpectedSignal = errors.New("unexpected signal")
	ErrPeerFailed       = errors.New("peer connection failed")
)

func DefaultWebRTCConfig() webrtc.Configuration {
	return ConfigWithSTUN("stun:stun.l.google.com:19302")
}

func ConfigWithSTUN(urls ...string) webrtc.Configuration {
	var servers []webrtc.ICEServer
	for _, u := range urls {
		if u != "" {
			servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
		}
	}
	return webrtc.Configuration{ICEServers: servers}
}

// Peer is a pion PeerConnection behind core.PeerConnection. ICE is vanilla:
// each side emits one complete SDP, so a link exchanges exactly one offer
// and one answer.
type Peer struct {
	pc   *webrtc.PeerConnection
	role core.PeerRole

	mu        sync.Mutex
	onSignal  func(any)
	onFailure func(error)
	pending   []any
	destroyed bool
	failed    bool
	answered  bool
}

var _ core.PeerConnection = (*Peer)(nil)

func NewPeer(api *webrtc.API, cfg webrtc.Configuration, role core.PeerRole, media *core.LocalMedia) (*Peer, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	p := &Peer{pc: pc, role: role}

	for _, t := range media.Tracks() {
		lt, ok := t.(*LocalTrack)
		if !ok {
			continue
		}
		if _, err := pc.AddTrack(lt.Local()); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add %s track: %w", lt.Kind(), err)
		}
	}
	p.bindHandlers()

	if role == core.PeerInitiator {
		// a data channel guarantees the offer has something to negotiate
		if _, err := pc.CreateDataChannel("huddle", nil); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("create data channel: %w", err)
		}
		go p.offer()
	}
	return p, nil
}

func (p *Peer) bindHandlers() {
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Debug().Str("module", "rtc").Str("role", p.role.String()).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			p.fail(fmt.Errorf("%w: %s", ErrPeerFailed, s))
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		go drain(track)
	})
}

// drain keeps the receive buffers moving; frames aren't rendered.
func drain(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func (p *Peer) offer() {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		p.fail(fmt.Errorf("create offer: %w", err))
		return
	}
	if err := p.setLocalAndGather(offer); err != nil {
		p.fail(err)
		return
	}
	p.emit(*p.pc.LocalDescription())
}

func (p *Peer) answer(offer webrtc.SessionDescription) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		p.fail(fmt.Errorf("set remote description: %w", err))
		return
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		p.fail(fmt.Errorf("create answer: %w", err))
		return
	}
	if err := p.setLocalAndGather(answer); err != nil {
		p.fail(err)
		return
	}
	p.emit(*p.pc.LocalDescription())
}

func (p *Peer) setLocalAndGather(desc webrtc.SessionDescription) error {
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete
	return nil
}

// Signal feeds a remote payload in. It is a no-op once the peer is destroyed.
func (p *Peer) Signal(payload any) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	desc, err := toDescription(payload)
	if err != nil {
		return err
	}
	switch desc.Type {
	case webrtc.SDPTypeOffer:
		p.mu.Lock()
		dup := p.role == core.PeerInitiator || p.answered
		p.answered = true
		p.mu.Unlock()
		if dup {
			return fmt.Errorf("%w: offer for %s", ErrUnexpectedSignal, p.role)
		}
		go p.answer(desc)
		return nil
	case webrtc.SDPTypeAnswer:
		if p.role != core.PeerInitiator {
			return fmt.Errorf("%w: answer for %s", ErrUnexpectedSignal, p.role)
		}
		if err := p.pc.SetRemoteDescription(desc); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedSignal, desc.Type)
	}
}

// OnSignal also flushes anything emitted before the handler was set.
func (p *Peer) OnSignal(fn func(any)) {
	p.mu.Lock()
	p.onSignal = fn
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, v := range pending {
		fn(v)
	}
}

func (p *Peer) OnFailure(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onFailure = fn
}

func (p *Peer) emit(v any) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	fn := p.onSignal
	if fn == nil {
		p.pending = append(p.pending, v)
	}
	p.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

func (p *Peer) fail(err error) {
	p.mu.Lock()
	if p.destroyed || p.failed {
		p.mu.Unlock()
		return
	}
	p.failed = true
	fn := p.onFailure
	p.mu.Unlock()

	log.Warn().Err(err).Str("module", "rtc").Str("role", p.role.String()).Msg("peer failed")
	if fn != nil {
		fn(err)
	}
}

func (p *Peer) Destroy() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	p.destroyed = true
	p.mu.Unlock()
	return p.pc.Close()
}

// toDescription accepts a SessionDescription or anything that serializes to
// one, such as the generic map a relay frame decodes into.
func toDescription(payload any) (webrtc.SessionDescription, error) {
	switch v := payload.(type) {
	case webrtc.SessionDescription:
		return v, nil
	case *webrtc.SessionDescription:
		if v == nil {
			return webrtc.SessionDescription{}, ErrUnexpectedSignal
		}
		return *v, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", ErrUnexpectedSignal, err)
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(b, &desc); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", ErrUnexpectedSignal, err)
	}
	if desc.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: empty sdp", ErrUnexpectedSignal)
	}
	return desc, nil
}
