package gateway

import (
	"strings"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// allow applies the per-user limiter to chat and caption traffic.
func (g *Gateway) allow(sid domain.SessionID, user domain.UserID) bool {
	if g.Limiter == nil || g.Limiter.Allow(user) {
		return true
	}
	if g.Metrics != nil {
		g.Metrics.RateLimited.Inc()
	}
	log.Warn().Str("module", "gateway").Str("user", string(user)).Msg("rate limited")
	g.fail(sid, protocol.CodeRateLimited, "slow down")
	return false
}

func (g *Gateway) handleChat(sid domain.SessionID, f protocol.Frame) {
	room, user, ok := g.Bindings.RoomOf(sid)
	if !ok {
		g.fail(sid, protocol.CodeNotInRoom, string(f.Event))
		return
	}
	var msg protocol.ChatMessage
	if err := f.Decode(&msg); err != nil {
		// bare strings are accepted too
		var text string
		if err := f.Decode(&text); err != nil {
			g.fail(sid, protocol.CodeBadPayload, err.Error())
			return
		}
		msg.Content = text
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}
	if !g.allow(sid, user) {
		return
	}

	ts := g.now()
	err := g.Rooms.Relay(room, user, protocol.EventReceiveMessage, func(s domain.UserSession) any {
		return protocol.ChatMessage{SenderID: s.UserID, SenderName: s.DisplayName, Content: content, Timestamp: ts}
	})
	if err != nil {
		g.fail(sid, protocol.CodeNotInRoom, err.Error())
	}
}

func (g *Gateway) handleCaption(sid domain.SessionID, f protocol.Frame) {
	room, user, ok := g.Bindings.RoomOf(sid)
	if !ok {
		return
	}
	var text string
	if err := f.Decode(&text); err != nil {
		g.fail(sid, protocol.CodeBadPayload, err.Error())
		return
	}
	if strings.TrimSpace(text) == "" || !g.allow(sid, user) {
		return
	}

	ts := g.now()
	err := g.Rooms.Relay(room, user, protocol.EventReceiveCaption, func(s domain.UserSession) any {
		return protocol.Caption{UserID: s.UserID, UserName: s.DisplayName, Content: text, Timestamp: ts}
	})
	if err != nil {
		log.Debug().Err(err).Str("module", "gateway").Str("sid", string(sid)).Msg("caption from non-member")
	}
}
