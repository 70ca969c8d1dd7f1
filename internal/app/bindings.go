package app

import (
	"errors"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Transport core.Transport
	Room      domain.RoomID
	User      domain.UserID
}

// Bindings maps transport sessions to their connection and, once joined,
// to a (room, user) pair. It is also the Dispatcher rooms send through.
type Bindings struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	policy   Policy
	metrics  *metrics.Metrics
}

var _ core.Dispatcher = (*Bindings)(nil)

func NewBindings(policy Policy, m *metrics.Metrics) *Bindings {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Bindings{
		sessions: make(map[domain.SessionID]*sessionEntry),
		policy:   policy,
		metrics:  m,
	}
}

func (b *Bindings) Attach(t core.Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[t.ID()] = &sessionEntry{Transport: t}
	if b.metrics != nil {
		b.metrics.Sessions.Inc()
	}
	log.Info().Str("module", "app.bindings").Str("sid", string(t.ID())).Msg("attached session")
}

func (b *Bindings) Detach(sid domain.SessionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sid]; !ok {
		return
	}
	delete(b.sessions, sid)
	if b.metrics != nil {
		b.metrics.Sessions.Dec()
	}
	log.Info().Str("module", "app.bindings").Str("sid", string(sid)).Msg("detached session")
}

func (b *Bindings) BindRoom(sid domain.SessionID, room domain.RoomID, user domain.UserID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.sessions[sid]
	if !ok {
		return false
	}
	e.Room, e.User = room, user
	log.Info().Str("module", "app.bindings").Str("sid", string(sid)).Str("room", string(room)).Str("user", string(user)).Msg("bound room")
	return true
}

// Unbind clears the room association of sid. A non-empty room must match
// the current one.
func (b *Bindings) Unbind(sid domain.SessionID, room domain.RoomID) (domain.RoomID, domain.UserID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.sessions[sid]
	if !ok || e.Room == "" || (room != "" && e.Room != room) {
		return "", "", false
	}
	prevRoom, prevUser := e.Room, e.User
	e.Room, e.User = "", ""
	log.Info().Str("module", "app.bindings").Str("sid", string(sid)).Str("room", string(prevRoom)).Msg("unbound room")
	return prevRoom, prevUser, true
}

func (b *Bindings) RoomOf(sid domain.SessionID) (domain.RoomID, domain.UserID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.sessions[sid]
	if !ok || e.Room == "" {
		return "", "", false
	}
	return e.Room, e.User, true
}

func (b *Bindings) Transport(sid domain.SessionID) (core.Transport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Transport, true
}

func (b *Bindings) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// CloseAll closes every attached transport; used on shutdown.
func (b *Bindings) CloseAll() {
	b.mu.RLock()
	ts := make([]core.Transport, 0, len(b.sessions))
	for _, e := range b.sessions {
		ts = append(ts, e.Transport)
	}
	b.mu.RUnlock()
	for _, t := range ts {
		t.Close()
	}
}

func (b *Bindings) Dispatch(to domain.SessionID, event protocol.Event, payload any) {
	t, ok := b.Transport(to)
	if !ok {
		log.Debug().Str("module", "app.bindings").Str("sid", string(to)).Str("event", string(event)).Msg("dispatch to unknown session")
		return
	}
	err := t.Send(event, payload)
	switch {
	case err == nil:
		if b.metrics != nil {
			b.metrics.EventsOut.WithLabelValues(string(event)).Inc()
		}
	case errors.Is(err, core.ErrBackpressure):
		if b.metrics != nil {
			b.metrics.Backpressure.Inc()
		}
		switch b.policy.OnBackPressure(to, event) {
		case KickMember:
			log.Warn().Str("module", "app.bindings").Str("sid", string(to)).Str("event", string(event)).Msg("slow session, closing")
			// the transport's close hook runs the leave; never inline under a room lock
			go t.Close()
		case DropFrame, NoAction:
			log.Debug().Str("module", "app.bindings").Str("sid", string(to)).Str("event", string(event)).Msg("frame dropped")
		}
	default:
		log.Debug().Err(err).Str("module", "app.bindings").Str("sid", string(to)).Str("event", string(event)).Msg("send failed")
	}
}
