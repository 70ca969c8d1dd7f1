package client

import (
	"errors"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (c *SessionController) handleFrame(f protocol.Frame) {
	if f.Event == protocol.EventPong {
		return
	}
	if f.Event == protocol.EventError {
		var p protocol.ErrorPayload
		_ = f.Decode(&p)
		log.Warn().Str("module", "client").Str("code", p.Code).Str("message", p.Message).Msg("relay error")
		c.notify(Notice{Kind: NoticeError, Text: p.Code + ": " + p.Message})
		return
	}

	switch {
	case f.Event == protocol.EventRoomUsers && (c.state == StateJoining || c.state == StateJoined):
	case c.state == StateJoined:
	default:
		log.Debug().Str("module", "client").Str("event", string(f.Event)).Str("state", c.state.String()).Msg("ignored")
		return
	}

	switch f.Event {
	case protocol.EventRoomUsers:
		c.onRoomUsers(f)
	case protocol.EventUserJoined:
		c.onUserJoined(f)
	case protocol.EventUserJoinedWithSignal:
		c.onOffer(f)
	case protocol.EventReceivingReturnedSignal:
		c.onAnswer(f)
	case protocol.EventUserToggleAudio:
		c.onPeerMedia(f, domain.MediaAudio)
	case protocol.EventUserToggleVideo:
		c.onPeerMedia(f, domain.MediaVideo)
	case protocol.EventReceiveMessage:
		var m protocol.ChatMessage
		if !c.decode(f, &m) {
			return
		}
		c.chat = append(c.chat, m)
		c.notify(Notice{Kind: NoticeChat, UserID: m.SenderID, Name: m.SenderName, Text: m.Content})
	case protocol.EventReceiveCaption:
		var cp protocol.Caption
		if !c.decode(f, &cp) {
			return
		}
		c.addCaption(cp)
		c.notify(Notice{Kind: NoticeCaption, UserID: cp.UserID, Name: cp.UserName, Text: cp.Content})
	case protocol.EventNewHost:
		c.onNewHost(f)
	case protocol.EventUserLeft:
		var p protocol.UserRef
		if !c.decode(f, &p) {
			return
		}
		c.dropPeer(p.UserID)
	case protocol.EventHostMutedYou:
		if t := c.media.Track(domain.MediaAudio); t != nil {
			t.SetEnabled(false)
		}
		c.audioOn = false
		c.notify(Notice{Kind: NoticeMuted})
	case protocol.EventKickedFromMeeting:
		log.Info().Str("module", "client").Str("room", string(c.room)).Msg("removed by host")
		c.teardown(true)
		c.notify(Notice{Kind: NoticeKicked})
	default:
		log.Debug().Str("module", "client").Str("event", string(f.Event)).Msg("unhandled event")
	}
}

func (c *SessionController) decode(f protocol.Frame, v any) bool {
	if err := f.Decode(v); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad payload")
		return false
	}
	return true
}

// onRoomUsers reconciles the snapshot: every listed user gets a participant
// entry and, if untracked, a responder link waiting for their offer.
func (c *SessionController) onRoomUsers(f protocol.Frame) {
	var users []protocol.RoomUser
	if err := f.Decode(&users); err != nil && !errors.Is(err, protocol.ErrEmptyPayload) {
		log.Warn().Err(err).Str("module", "client").Msg("bad room-users payload")
		return
	}

	first := c.state == StateJoining
	c.state = StateJoined
	hostSeen := false
	for _, u := range users {
		if u.ID == c.cfg.UserID {
			continue
		}
		hostSeen = hostSeen || u.IsHost
		c.upsertPeer(Participant{ID: u.ID, Name: u.Name, IsHost: u.IsHost, Audio: u.Audio, Video: u.Video})
		if _, ok := c.links.Get(u.ID); ok {
			continue
		}
		if _, err := c.links.Create(u.ID, core.PeerResponder, c.media); err != nil {
			log.Error().Err(err).Str("module", "client").Str("remote", string(u.ID)).Msg("create link")
		}
	}
	c.isHost = !hostSeen

	log.Info().Str("module", "client").Str("room", string(c.room)).Int("members", len(users)+1).Bool("host", c.isHost).Msg("joined")
	if first {
		c.notify(Notice{Kind: NoticeJoined, Text: string(c.room)})
	}
}

func (c *SessionController) onUserJoined(f protocol.Frame) {
	var p protocol.UserJoined
	if !c.decode(f, &p) || p.UserID == c.cfg.UserID {
		return
	}
	c.upsertPeer(Participant{ID: p.UserID, Name: p.UserName, IsHost: p.IsHost, Audio: true, Video: true})
	// a rejoining user gets a fresh link
	if _, err := c.links.Create(p.UserID, core.PeerInitiator, c.media); err != nil {
		log.Error().Err(err).Str("module", "client").Str("remote", string(p.UserID)).Msg("create link")
	}
	c.notify(Notice{Kind: NoticePeerJoined, UserID: p.UserID, Name: p.UserName})
}

func (c *SessionController) onOffer(f protocol.Frame) {
	var p protocol.SignalRelay
	if !c.decode(f, &p) || p.From == "" {
		return
	}
	l, ok := c.links.Get(p.From)
	if !ok {
		var err error
		if l, err = c.links.Create(p.From, core.PeerResponder, c.media); err != nil {
			log.Error().Err(err).Str("module", "client").Str("remote", string(p.From)).Msg("create link")
			return
		}
	}
	c.feed(l, p.Signal)
}

func (c *SessionController) onAnswer(f protocol.Frame) {
	var p protocol.SignalRelay
	if !c.decode(f, &p) {
		return
	}
	l, ok := c.links.Get(p.From)
	if !ok {
		log.Debug().Str("module", "client").Str("from", string(p.From)).Msg("returned signal without link, dropped")
		return
	}
	c.feed(l, p.Signal)
}

func (c *SessionController) feed(l *PeerLink, payload any) {
	if err := l.Signal(payload); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("remote", string(l.Remote)).Msg("signal rejected")
	}
}

func (c *SessionController) onPeerMedia(f protocol.Frame, kind domain.MediaKind) {
	var p protocol.MediaToggle
	if !c.decode(f, &p) {
		return
	}
	peer, ok := c.peers[p.UserID]
	if !ok {
		return
	}
	if kind == domain.MediaAudio {
		peer.Audio = p.IsOn
	} else {
		peer.Video = p.IsOn
	}
	state := "off"
	if p.IsOn {
		state = "on"
	}
	c.notify(Notice{Kind: NoticePeerMedia, UserID: p.UserID, Name: peer.Name, Text: kind.String() + " " + state})
}

func (c *SessionController) onNewHost(f protocol.Frame) {
	var p protocol.UserRef
	if !c.decode(f, &p) {
		return
	}
	for _, peer := range c.peers {
		peer.IsHost = peer.ID == p.UserID
	}
	c.isHost = p.UserID == c.cfg.UserID
	name := c.cfg.Name
	if peer, ok := c.peers[p.UserID]; ok {
		name = peer.Name
	}
	c.notify(Notice{Kind: NoticeHost, UserID: p.UserID, Name: name})
}

func (c *SessionController) onLinkSignal(l *PeerLink, payload any) {
	if c.state != StateJoined || !c.links.Current(l) {
		return
	}
	event := protocol.EventSendingSignal
	if l.Role == core.PeerResponder {
		event = protocol.EventReturningSignal
	}
	c.send(event, protocol.SignalRelay{Signal: payload, To: l.Remote})
}

func (c *SessionController) onLinkFailure(l *PeerLink, err error) {
	if !c.links.Current(l) {
		return
	}
	log.Warn().Err(err).Str("module", "client").Str("remote", string(l.Remote)).Msg("peer link failed")
	c.links.Remove(l.Remote)
	c.notify(Notice{Kind: NoticeLinkFailed, UserID: l.Remote, Text: err.Error()})
}

func (c *SessionController) onDisconnect() {
	if c.state == StateIdle {
		return
	}
	log.Warn().Str("module", "client").Str("room", string(c.room)).Msg("relay connection lost")
	c.teardown(false)
	c.notify(Notice{Kind: NoticeDisconnect})
}

func (c *SessionController) upsertPeer(p Participant) {
	if cur, ok := c.peers[p.ID]; ok {
		*cur = p
		return
	}
	c.peers[p.ID] = &p
	c.order = append(c.order, p.ID)
}

func (c *SessionController) dropPeer(id domain.UserID) {
	c.links.Remove(id)
	p, ok := c.peers[id]
	if !ok {
		return
	}
	delete(c.peers, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.notify(Notice{Kind: NoticePeerLeft, UserID: id, Name: p.Name})
}
