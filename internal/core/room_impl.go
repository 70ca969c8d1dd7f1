package core

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

// ErrRoomClosed is returned once the last member left; callers should get a fresh room.
var ErrRoomClosed = errors.New("room closed")

// Room is a threadsafe in-memory room.
// Every mutation and the events it produces happen under one lock, so all
// members observe the same order. It never closes adapter-owned resources.
type Room struct {
	id  domain.RoomID
	out Dispatcher

	mu           sync.Mutex
	users        map[domain.UserID]*domain.UserSession
	joinSequence []domain.UserID
	host         domain.UserID

	closed atomic.Bool
}

func NewRoom(id domain.RoomID, out Dispatcher) *Room {
	return &Room{
		id:    id,
		out:   out,
		users: make(map[domain.UserID]*domain.UserSession),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) Closed() bool { return r.closed.Load() }

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Room) Join(uid domain.UserID, name string, sid domain.SessionID) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return JoinResult{}, ErrRoomClosed
	}

	res := JoinResult{IsNewRoom: len(r.users) == 0}
	if res.IsNewRoom {
		r.host = uid
	}

	s, dup := r.users[uid]
	if dup {
		if s.SessionID != sid {
			res.Replaced = s.SessionID
		}
		s.DisplayName = domain.NormalizeDisplayName(name)
		s.SessionID = sid
		s.AudioEnabled = true
		s.VideoEnabled = true
	} else {
		s = domain.NewUserSession(uid, name, sid)
		s.IsHost = uid == r.host
		r.users[uid] = s
		r.joinSequence = append(r.joinSequence, uid)
	}
	res.AssignedHost = r.host
	res.ExistingUsers = r.othersLocked(uid)

	snapshot := make([]protocol.RoomUser, 0, len(res.ExistingUsers))
	for _, o := range res.ExistingUsers {
		snapshot = append(snapshot, protocol.RoomUserOf(o))
	}
	r.out.Dispatch(sid, protocol.EventRoomUsers, snapshot)

	joined := protocol.UserJoined{UserID: uid, UserName: s.DisplayName, IsHost: s.IsHost}
	for _, o := range res.ExistingUsers {
		r.out.Dispatch(o.SessionID, protocol.EventUserJoined, joined)
	}

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("user", string(uid)).
		Str("sid", string(sid)).Bool("new_room", res.IsNewRoom).Bool("rejoin", dup).Msg("member joined")
	return res, nil
}

// Leave removes uid. A non-empty sid must match the member's current
// transport session, so a stale disconnect can't evict a newer one.
func (r *Room) Leave(uid domain.UserID, sid domain.SessionID) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.users[uid]
	if !ok || (sid != "" && s.SessionID != sid) {
		return LeaveResult{}, domain.ErrNotFound
	}
	return r.leaveLocked(uid), nil
}

func (r *Room) leaveLocked(uid domain.UserID) LeaveResult {
	s := r.users[uid]
	delete(r.users, uid)
	r.joinSequence = slices.DeleteFunc(r.joinSequence, func(id domain.UserID) bool { return id == uid })

	res := LeaveResult{Left: *s}
	res.Left.IsHost = false

	if len(r.users) == 0 {
		r.host = ""
		r.closed.Store(true)
		res.RoomDeleted = true
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("user", string(uid)).Msg("last member left")
		return res
	}

	left := protocol.UserRef{UserID: uid}
	for _, id := range r.joinSequence {
		r.out.Dispatch(r.users[id].SessionID, protocol.EventUserLeft, left)
	}

	if r.host == uid {
		r.host = r.joinSequence[0]
		r.users[r.host].IsHost = true
		res.NewHost = r.host
		nh := protocol.UserRef{UserID: r.host}
		for _, id := range r.joinSequence {
			r.out.Dispatch(r.users[id].SessionID, protocol.EventNewHost, nh)
		}
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("host", string(r.host)).Msg("host reassigned")
	}

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("user", string(uid)).Int("remaining", len(r.users)).Msg("member left")
	return res
}

// ToggleMedia returns the sessions that were told; unknown users are a no-op.
func (r *Room) ToggleMedia(uid domain.UserID, kind domain.MediaKind, enabled bool) []domain.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.users[uid]
	if !ok {
		return nil
	}
	s.SetMedia(kind, enabled)

	event := protocol.EventUserToggleAudio
	if kind == domain.MediaVideo {
		event = protocol.EventUserToggleVideo
	}
	payload := protocol.MediaToggle{UserID: uid, IsOn: enabled}
	var targets []domain.SessionID
	for _, o := range r.othersLocked(uid) {
		r.out.Dispatch(o.SessionID, event, payload)
		targets = append(targets, o.SessionID)
	}
	return targets
}

func (r *Room) Moderate(actor, target domain.UserID, kind domain.ModerationKind) (ModerationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[actor]; !ok || actor != r.host {
		return ModerationResult{}, domain.ErrNotAuthorized
	}
	t, ok := r.users[target]
	if !ok {
		return ModerationResult{}, domain.ErrNotFound
	}

	res := ModerationResult{Kind: kind, Target: target, TargetSession: t.SessionID}
	switch kind {
	case domain.ModerationMute:
		t.AudioEnabled = false
		r.out.Dispatch(t.SessionID, protocol.EventHostMutedYou, nil)
		muted := protocol.MediaToggle{UserID: target, IsOn: false}
		for _, o := range r.othersLocked(target) {
			r.out.Dispatch(o.SessionID, protocol.EventUserToggleAudio, muted)
		}
	case domain.ModerationRemove:
		r.out.Dispatch(t.SessionID, protocol.EventKickedFromMeeting, nil)
		lr := r.leaveLocked(target)
		res.Leave = &lr
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("actor", string(actor)).
		Str("target", string(target)).Str("kind", kind.String()).Msg("moderation")
	return res, nil
}

// Relay fans an event out to every member except the sender. build sees the
// sender's current session so identity comes from the room, not the client.
func (r *Room) Relay(uid domain.UserID, event protocol.Event, build func(sender domain.UserSession) any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.users[uid]
	if !ok {
		return domain.ErrNotFound
	}
	payload := build(*s)
	for _, o := range r.othersLocked(uid) {
		r.out.Dispatch(o.SessionID, event, payload)
	}
	return nil
}

// Signal forwards payload to one member. It reports false when either end is
// gone; there is no retry.
func (r *Room) Signal(from, to domain.UserID, event protocol.Event, payload any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[from]; !ok {
		return false
	}
	t, ok := r.users[to]
	if !ok {
		return false
	}
	r.out.Dispatch(t.SessionID, event, payload)
	return true
}

func (r *Room) Snapshot() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := RoomInfo{ID: r.id, Host: r.host, MemberCount: len(r.users)}
	for _, id := range r.joinSequence {
		info.Members = append(info.Members, protocol.RoomUserOf(*r.users[id]))
	}
	return info
}

func (r *Room) othersLocked(uid domain.UserID) []domain.UserSession {
	out := make([]domain.UserSession, 0, len(r.users))
	for _, id := range r.joinSequence {
		if id == uid {
			continue
		}
		out = append(out, *r.users[id])
	}
	return out
}
