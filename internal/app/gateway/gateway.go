// Package gateway binds transport sessions to room members and turns inbound
// relay events into room operations.
package gateway

import (
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Gateway holds no per-room handlers; every frame is resolved through the
// session binding when it arrives.
type Gateway struct {
	Rooms    *app.RoomRegistry
	Bindings *app.Bindings
	Limiter  *app.RateLimiter
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func New(rooms *app.RoomRegistry, binds *app.Bindings, limiter *app.RateLimiter, m *metrics.Metrics) *Gateway {
	return &Gateway{
		Rooms:    rooms,
		Bindings: binds,
		Limiter:  limiter,
		Metrics:  m,
		Now:      time.Now,
	}
}

// Attach registers t and wires its callbacks. Call before the transport starts reading.
func (g *Gateway) Attach(t core.Transport) {
	sid := t.ID()
	g.Bindings.Attach(t)
	t.OnMessage(func(f protocol.Frame) { g.HandleFrame(sid, f) })
	t.OnClose(func() { g.Disconnect(sid) })
}

// Disconnect is the transport-loss path; it shares leave with leave-meeting.
func (g *Gateway) Disconnect(sid domain.SessionID) {
	g.leave(sid)
	g.Bindings.Detach(sid)
	log.Info().Str("module", "gateway").Str("sid", string(sid)).Msg("session closed")
}

func (g *Gateway) HandleFrame(sid domain.SessionID, f protocol.Frame) {
	g.countIn(f.Event)

	switch f.Event {
	case protocol.EventJoinRoom:
		g.handleJoin(sid, f)
	case protocol.EventLeaveMeeting:
		g.handleLeave(sid, f)
	case protocol.EventSendingSignal:
		g.handleSignal(sid, f, protocol.EventUserJoinedWithSignal)
	case protocol.EventReturningSignal:
		g.handleSignal(sid, f, protocol.EventReceivingReturnedSignal)
	case protocol.EventToggleAudio:
		g.handleToggle(sid, f, domain.MediaAudio)
	case protocol.EventToggleVideo:
		g.handleToggle(sid, f, domain.MediaVideo)
	case protocol.EventSendMessage:
		g.handleChat(sid, f)
	case protocol.EventSendCaption:
		g.handleCaption(sid, f)
	case protocol.EventMuteUser:
		g.handleModeration(sid, f, domain.ModerationMute)
	case protocol.EventRemoveUser:
		g.handleModeration(sid, f, domain.ModerationRemove)
	case protocol.EventPing:
		g.reply(sid, protocol.EventPong, nil)
	default:
		log.Warn().Str("module", "gateway").Str("sid", string(sid)).Str("event", string(f.Event)).Msg("unknown event")
		g.fail(sid, protocol.CodeUnknownEvent, string(f.Event))
	}
}

func (g *Gateway) reply(sid domain.SessionID, event protocol.Event, payload any) {
	g.Bindings.Dispatch(sid, event, payload)
}

func (g *Gateway) fail(sid domain.SessionID, code, msg string) {
	g.reply(sid, protocol.EventError, protocol.ErrorPayload{Code: code, Message: msg})
}

func (g *Gateway) now() time.Time {
	if g.Now == nil {
		return time.Now().UTC()
	}
	return g.Now().UTC()
}

func (g *Gateway) countIn(event protocol.Event) {
	if g.Metrics == nil {
		return
	}
	label := string(event)
	if !known(event) {
		label = "unknown"
	}
	g.Metrics.EventsIn.WithLabelValues(label).Inc()
}

func known(e protocol.Event) bool {
	switch e {
	case protocol.EventJoinRoom, protocol.EventLeaveMeeting,
		protocol.EventSendingSignal, protocol.EventReturningSignal,
		protocol.EventToggleAudio, protocol.EventToggleVideo,
		protocol.EventSendMessage, protocol.EventSendCaption,
		protocol.EventMuteUser, protocol.EventRemoveUser, protocol.EventPing:
		return true
	}
	return false
}
