package gateway

import (
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// handleSignal forwards an opaque signal 1:1. Delivery is at-most-once: a
// target that already left is dropped without telling the sender.
func (g *Gateway) handleSignal(sid domain.SessionID, f protocol.Frame, out protocol.Event) {
	room, user, ok := g.Bindings.RoomOf(sid)
	if !ok {
		g.fail(sid, protocol.CodeNotInRoom, string(f.Event))
		return
	}
	var p protocol.SignalRelay
	if err := f.Decode(&p); err != nil || p.To == "" {
		log.Error().Err(err).Str("module", "gateway").Str("sid", string(sid)).Msg("bad signal payload")
		g.fail(sid, protocol.CodeBadPayload, "signal needs a target")
		return
	}

	fwd := protocol.SignalRelay{Signal: p.Signal, From: user}
	if !g.Rooms.Signal(room, user, p.To, out, fwd) {
		if g.Metrics != nil {
			g.Metrics.SignalsDropped.Inc()
		}
		log.Debug().Err(domain.ErrSignalDeliveryFailed).Str("module", "gateway").Str("room", string(room)).
			Str("from", string(user)).Str("to", string(p.To)).Msg("signal dropped")
	}
}
