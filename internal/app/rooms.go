package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// RoomRegistry is the authoritative room-id -> room map. The map lock only
// guards lookup, creation and removal; each room serializes its own state.
type RoomRegistry struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomID]*core.Room
	out     core.Dispatcher
	metrics *metrics.Metrics
}

func NewRoomRegistry(out core.Dispatcher, m *metrics.Metrics) *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[domain.RoomID]*core.Room),
		out:     out,
		metrics: m,
	}
}

func (r *RoomRegistry) get(id domain.RoomID) (*core.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok || room.Closed() {
		return nil, false
	}
	return room, true
}

func (r *RoomRegistry) getOrCreate(id domain.RoomID) *core.Room {
	if room, ok := r.get(id); ok {
		return room
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rooms[id]
	if ok && !old.Closed() {
		return old
	}
	room := core.NewRoom(id, r.out)
	r.rooms[id] = room
	if r.metrics != nil && !ok {
		r.metrics.Rooms.Inc()
	}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return room
}

// drop removes room only if it is still the one registered under its id.
func (r *RoomRegistry) drop(room *core.Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[room.ID()]; ok && cur == room {
		delete(r.rooms, room.ID())
		if r.metrics != nil {
			r.metrics.Rooms.Dec()
		}
		log.Info().Str("module", "app.rooms").Str("room", string(room.ID())).Msg("room deleted")
	}
}

func (r *RoomRegistry) Join(id domain.RoomID, uid domain.UserID, name string, sid domain.SessionID) (core.JoinResult, error) {
	for {
		room := r.getOrCreate(id)
		res, err := room.Join(uid, name, sid)
		if errors.Is(err, core.ErrRoomClosed) {
			// emptied between lookup and join; the next lookup replaces it
			continue
		}
		return res, err
	}
}

func (r *RoomRegistry) Leave(id domain.RoomID, uid domain.UserID) (core.LeaveResult, error) {
	return r.leave(id, uid, "")
}

// LeaveSession is Leave for a specific transport session; it is a NotFound
// no-op when uid has since rejoined over another session.
func (r *RoomRegistry) LeaveSession(id domain.RoomID, uid domain.UserID, sid domain.SessionID) (core.LeaveResult, error) {
	return r.leave(id, uid, sid)
}

func (r *RoomRegistry) leave(id domain.RoomID, uid domain.UserID, sid domain.SessionID) (core.LeaveResult, error) {
	room, ok := r.get(id)
	if !ok {
		return core.LeaveResult{}, domain.ErrNotFound
	}
	res, err := room.Leave(uid, sid)
	if err != nil {
		return res, err
	}
	r.afterLeave(room, res)
	return res, nil
}

func (r *RoomRegistry) afterLeave(room *core.Room, res core.LeaveResult) {
	if res.RoomDeleted {
		r.drop(room)
	}
	if res.NewHost != "" && r.metrics != nil {
		r.metrics.HostFailovers.Inc()
	}
}

func (r *RoomRegistry) ToggleMedia(id domain.RoomID, uid domain.UserID, kind domain.MediaKind, enabled bool) []domain.SessionID {
	room, ok := r.get(id)
	if !ok {
		return nil
	}
	return room.ToggleMedia(uid, kind, enabled)
}

func (r *RoomRegistry) ModerationAction(id domain.RoomID, actor, target domain.UserID, kind domain.ModerationKind) (core.ModerationResult, error) {
	room, ok := r.get(id)
	if !ok {
		return core.ModerationResult{}, domain.ErrNotFound
	}
	res, err := room.Moderate(actor, target, kind)
	if err != nil {
		return res, err
	}
	if res.Leave != nil {
		r.afterLeave(room, *res.Leave)
		if r.metrics != nil {
			r.metrics.Kicks.Inc()
		}
	}
	return res, nil
}

func (r *RoomRegistry) Relay(id domain.RoomID, uid domain.UserID, event protocol.Event, build func(sender domain.UserSession) any) error {
	room, ok := r.get(id)
	if !ok {
		return domain.ErrNotFound
	}
	return room.Relay(uid, event, build)
}

func (r *RoomRegistry) Signal(id domain.RoomID, from, to domain.UserID, event protocol.Event, payload any) bool {
	room, ok := r.get(id)
	if !ok {
		return false
	}
	return room.Signal(from, to, event, payload)
}

// Exists reports a room with at least one member. A room is published before
// its first member lands in it.
func (r *RoomRegistry) Exists(id domain.RoomID) bool {
	room, ok := r.get(id)
	return ok && room.MemberCount() > 0
}

func (r *RoomRegistry) Snapshot(id domain.RoomID) (core.RoomInfo, bool) {
	room, ok := r.get(id)
	if !ok {
		return core.RoomInfo{}, false
	}
	info := room.Snapshot()
	return info, info.MemberCount > 0
}

// List returns a summary per live room, ordered by id.
func (r *RoomRegistry) List() []core.RoomInfo {
	r.mu.RLock()
	rooms := make([]*core.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		if room.Closed() {
			continue
		}
		info := room.Snapshot()
		if info.MemberCount == 0 {
			continue
		}
		info.Members = nil
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
