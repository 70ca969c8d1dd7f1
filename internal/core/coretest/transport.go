// Package coretest provides in-memory fakes of the core capabilities.
package coretest

import (
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

type Sent struct {
	Event   protocol.Event
	Payload any
}

// Transport records everything sent to it and lets tests inject inbound frames.
type Transport struct {
	id domain.SessionID

	mu      sync.Mutex
	sent    []Sent
	full    bool
	onMsg   func(protocol.Frame)
	onClose func()

	closeOnce sync.Once
	done      chan struct{}
}

var _ core.Transport = (*Transport)(nil)

func NewTransport(id domain.SessionID) *Transport {
	return &Transport{id: id, done: make(chan struct{})}
}

func (t *Transport) ID() domain.SessionID { return t.id }

func (t *Transport) Send(event protocol.Event, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
		return core.ErrClosed
	default:
	}
	if t.full {
		return core.ErrBackpressure
	}
	t.sent = append(t.sent, Sent{Event: event, Payload: payload})
	return nil
}

func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		fn := t.onClose
		t.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

func (t *Transport) OnMessage(fn func(protocol.Frame)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMsg = fn
}

func (t *Transport) OnClose(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = fn
}

// Deliver feeds an inbound event as if it had been read off the wire.
func (t *Transport) Deliver(event protocol.Event, payload any) error {
	f, err := protocol.NewFrame(event, payload)
	if err != nil {
		return err
	}
	t.mu.Lock()
	fn := t.onMsg
	t.mu.Unlock()
	if fn != nil {
		fn(f)
	}
	return nil
}

// SetFull makes Send report backpressure.
func (t *Transport) SetFull(full bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.full = full
}

func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

func (t *Transport) Events() []protocol.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.Event, 0, len(t.sent))
	for _, s := range t.sent {
		out = append(out, s.Event)
	}
	return out
}

// Last returns the most recent payload sent with event.
func (t *Transport) Last(event protocol.Event) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.sent) - 1; i >= 0; i-- {
		if t.sent[i].Event == event {
			return t.sent[i].Payload, true
		}
	}
	return nil, false
}

func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}

func (t *Transport) Closed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Transport) WaitClosed(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
