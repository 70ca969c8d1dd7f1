package gateway

import (
	"errors"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (g *Gateway) handleToggle(sid domain.SessionID, f protocol.Frame, kind domain.MediaKind) {
	room, user, ok := g.Bindings.RoomOf(sid)
	if !ok {
		return
	}
	var on bool
	if err := f.Decode(&on); err != nil {
		g.fail(sid, protocol.CodeBadPayload, err.Error())
		return
	}
	targets := g.Rooms.ToggleMedia(room, user, kind, on)
	log.Debug().Str("module", "gateway").Str("user", string(user)).Str("kind", kind.String()).Bool("on", on).Int("notified", len(targets)).Msg("media toggled")
}

func (g *Gateway) handleModeration(sid domain.SessionID, f protocol.Frame, kind domain.ModerationKind) {
	room, actor, ok := g.Bindings.RoomOf(sid)
	if !ok {
		g.fail(sid, protocol.CodeNotInRoom, string(f.Event))
		return
	}
	var p protocol.Target
	if err := f.Decode(&p); err != nil || p.TargetUserID == "" {
		g.fail(sid, protocol.CodeBadPayload, "targetUserId required")
		return
	}

	res, err := g.Rooms.ModerationAction(room, actor, p.TargetUserID, kind)
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		log.Warn().Str("module", "gateway").Str("actor", string(actor)).Str("kind", kind.String()).Msg("moderation by non-host")
		g.fail(sid, protocol.CodeNotAuthorized, "only the host can "+kind.String())
		return
	case errors.Is(err, domain.ErrNotFound):
		g.fail(sid, protocol.CodeNotFound, string(p.TargetUserID))
		return
	case err != nil:
		g.fail(sid, protocol.CodeNotFound, err.Error())
		return
	}

	if res.Leave != nil {
		// the removed session stays connected but no longer speaks for the room
		g.Bindings.Unbind(res.TargetSession, room)
		if g.Limiter != nil {
			g.Limiter.Forget(res.Target)
		}
	}
}
