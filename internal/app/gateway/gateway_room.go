package gateway

import (
	"errors"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (g *Gateway) handleJoin(sid domain.SessionID, f protocol.Frame) {
	var p protocol.JoinRoom
	if err := f.Decode(&p); err != nil {
		log.Error().Err(err).Str("module", "gateway").Msg("bad join payload")
		g.fail(sid, protocol.CodeBadPayload, err.Error())
		return
	}
	if p.RoomID == "" {
		g.fail(sid, protocol.CodeBadPayload, "roomId required")
		return
	}
	if err := domain.ValidateUserID(p.UserID); err != nil {
		g.fail(sid, protocol.CodeBadPayload, err.Error())
		return
	}

	// one room per connection; re-sending the same join just refreshes it
	if room, user, ok := g.Bindings.RoomOf(sid); ok && (room != p.RoomID || user != p.UserID) {
		log.Info().Str("module", "gateway").Str("sid", string(sid)).Str("from_room", string(room)).Msg("switching rooms")
		g.leave(sid)
	}

	res, err := g.Rooms.Join(p.RoomID, p.UserID, p.UserName, sid)
	if err != nil {
		log.Error().Err(err).Str("module", "gateway").Str("sid", string(sid)).Msg("join failed")
		g.fail(sid, protocol.CodeNotFound, err.Error())
		return
	}
	bound := g.Bindings.BindRoom(sid, p.RoomID, p.UserID)

	if res.Replaced != "" {
		g.Bindings.Unbind(res.Replaced, p.RoomID)
		if old, ok := g.Bindings.Transport(res.Replaced); ok {
			go old.Close()
		}
		log.Info().Str("module", "gateway").Str("sid", string(sid)).Str("replaced", string(res.Replaced)).Msg("rejoin replaced older session")
	}

	if !bound {
		// the transport closed while the join was in flight and its
		// disconnect found nothing to leave, so undo the join here
		log.Info().Str("module", "gateway").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("session gone before bind, leaving")
		if _, err := g.Rooms.LeaveSession(p.RoomID, p.UserID, sid); err != nil {
			log.Debug().Err(err).Str("module", "gateway").Str("sid", string(sid)).Msg("leave after lost bind")
		}
	}
}

func (g *Gateway) handleLeave(sid domain.SessionID, f protocol.Frame) {
	var p protocol.LeaveMeeting
	if err := f.Decode(&p); err == nil {
		if room, user, ok := g.Bindings.RoomOf(sid); ok && (p.RoomID != room || p.UserID != user) {
			log.Warn().Str("module", "gateway").Str("sid", string(sid)).Str("claimed_room", string(p.RoomID)).
				Str("room", string(room)).Msg("leave payload disagrees with binding, using binding")
		}
	}
	g.leave(sid)
}

// leave is the only way a member leaves on behalf of its own session:
// leave-meeting, room switch and transport close all end up here.
func (g *Gateway) leave(sid domain.SessionID) {
	room, user, ok := g.Bindings.Unbind(sid, "")
	if !ok {
		return
	}
	if g.Limiter != nil {
		g.Limiter.Forget(user)
	}
	res, err := g.Rooms.LeaveSession(room, user, sid)
	if errors.Is(err, domain.ErrNotFound) {
		log.Debug().Str("module", "gateway").Str("sid", string(sid)).Str("room", string(room)).Msg("leave: already gone")
		return
	}
	log.Info().Str("module", "gateway").Str("sid", string(sid)).Str("room", string(room)).Str("user", string(user)).
		Bool("room_deleted", res.RoomDeleted).Str("new_host", string(res.NewHost)).Msg("left room")
}
