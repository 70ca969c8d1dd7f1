package client

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

type Config struct {
	UserID      domain.UserID
	Name        string
	MaxCaptions int
	// Notify runs on the event loop and must not call back into the controller.
	Notify func(Notice)
}

// acquisition tiers, best first
var mediaTiers = []core.MediaConstraints{
	{Audio: true, Video: true},
	{Audio: true},
}

// SessionController drives one participant. All state below is owned by the
// goroutine running Run; public methods hand work to it and wait.
type SessionController struct {
	cfg    Config
	t      core.Transport
	source core.MediaSource

	inbox   chan func()
	stopped chan struct{}

	state         State
	gen           int
	cancelAcquire context.CancelFunc
	room          domain.RoomID
	isHost        bool
	media         *core.LocalMedia
	audioOn       bool
	videoOn       bool
	peers         map[domain.UserID]*Participant
	order         []domain.UserID
	chat          []protocol.ChatMessage
	captions      []protocol.Caption
	links         *PeerLinkManager
	now           func() time.Time
}

func NewSessionController(t core.Transport, source core.MediaSource, factory core.PeerFactory, cfg Config) *SessionController {
	if cfg.MaxCaptions <= 0 {
		cfg.MaxCaptions = DefaultMaxCaptions
	}
	cfg.Name = domain.NormalizeDisplayName(cfg.Name)
	if cfg.UserID == "" {
		cfg.UserID = domain.NewUserID()
	}

	c := &SessionController{
		cfg:     cfg,
		t:       t,
		source:  source,
		inbox:   make(chan func(), 64),
		stopped: make(chan struct{}),
		peers:   make(map[domain.UserID]*Participant),
		now:     time.Now,
	}
	c.links = NewPeerLinkManager(factory,
		func(l *PeerLink, payload any) { c.post(func() { c.onLinkSignal(l, payload) }) },
		func(l *PeerLink, err error) { c.post(func() { c.onLinkFailure(l, err) }) },
	)
	t.OnMessage(func(f protocol.Frame) { c.post(func() { c.handleFrame(f) }) })
	t.OnClose(func() { c.post(c.onDisconnect) })
	return c
}

func (c *SessionController) Self() domain.UserID { return c.cfg.UserID }

// Run processes events until ctx is done, then releases media and links.
func (c *SessionController) Run(ctx context.Context) error {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			if c.state != StateIdle {
				c.teardown(true)
			}
			return nil
		case fn := <-c.inbox:
			fn()
		}
	}
}

func (c *SessionController) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.stopped:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (c *SessionController) do(fn func()) error {
	done := make(chan struct{})
	if !c.post(func() { fn(); close(done) }) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		return ErrStopped
	}
}

// Join acquires local media and asks the relay to admit us to room. It
// returns once join-room is sent; the session becomes Joined when the relay
// answers with the member snapshot.
func (c *SessionController) Join(ctx context.Context, room domain.RoomID) error {
	if room == "" {
		return fmt.Errorf("room id required")
	}

	var (
		acqCtx context.Context
		gen    int
		err    error
	)
	if e := c.do(func() {
		if c.state != StateIdle {
			err = ErrBusy
			return
		}
		c.state = StateJoining
		c.room = room
		c.gen++
		gen = c.gen
		acqCtx, c.cancelAcquire = context.WithCancel(ctx)
	}); e != nil {
		return e
	}
	if err != nil {
		return err
	}

	media, acqErr := c.acquire(acqCtx)

	if e := c.do(func() {
		if gen != c.gen || c.state != StateJoining {
			// left while acquiring
			if media != nil {
				media.Stop()
			}
			err = context.Canceled
			return
		}
		c.cancelAcquire()
		c.cancelAcquire = nil
		if acqErr != nil {
			c.reset()
			err = acqErr
			return
		}
		c.media = media
		c.audioOn = media.Audio != nil && media.Audio.Enabled()
		c.videoOn = media.Video != nil && media.Video.Enabled()

		join := protocol.JoinRoom{RoomID: room, UserID: c.cfg.UserID, UserName: c.cfg.Name}
		if sendErr := c.t.Send(protocol.EventJoinRoom, join); sendErr != nil {
			media.Stop()
			c.reset()
			err = fmt.Errorf("send join: %w", sendErr)
			return
		}
		// the relay assumes both tracks are on
		if !c.videoOn {
			c.send(protocol.EventToggleVideo, false)
		}
		log.Info().Str("module", "client").Str("room", string(room)).Bool("video", c.videoOn).Msg("join sent")
	}); e != nil {
		if media != nil {
			media.Stop()
		}
		return e
	}
	return err
}

// acquire walks the tiers until one succeeds.
func (c *SessionController) acquire(ctx context.Context) (*core.LocalMedia, error) {
	var last error
	for _, tier := range mediaTiers {
		m, err := c.source.Acquire(ctx, tier)
		if err == nil {
			return m, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Err(err).Str("module", "client").Bool("video", tier.Video).Msg("media tier unavailable")
		last = err
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, last)
}

// Leave is safe in any state. A pending acquisition is cancelled.
func (c *SessionController) Leave() error {
	return c.do(func() {
		switch c.state {
		case StateIdle:
		case StateJoining:
			if c.media == nil {
				// still acquiring; Join sees the state change and releases what it got
				c.cancelAcquire()
				c.cancelAcquire = nil
				c.reset()
				return
			}
			// join-room is out, the relay may already count us
			room := c.room
			c.teardown(true)
			c.notify(Notice{Kind: NoticeLeft, Text: string(room)})
		default:
			room := c.room
			c.teardown(true)
			c.notify(Notice{Kind: NoticeLeft, Text: string(room)})
		}
	})
}

// teardown releases everything; notifyRelay sends leave-meeting first.
func (c *SessionController) teardown(notifyRelay bool) {
	room := c.room
	c.state = StateLeaving
	if c.cancelAcquire != nil {
		c.cancelAcquire()
		c.cancelAcquire = nil
	}
	c.media.Stop()
	c.links.DestroyAll()
	if notifyRelay {
		c.send(protocol.EventLeaveMeeting, protocol.LeaveMeeting{RoomID: room, UserID: c.cfg.UserID})
	}
	c.reset()
	log.Info().Str("module", "client").Str("room", string(room)).Msg("left room")
}

func (c *SessionController) reset() {
	c.state = StateIdle
	c.room = ""
	c.isHost = false
	c.media = nil
	c.audioOn = false
	c.videoOn = false
	c.peers = make(map[domain.UserID]*Participant)
	c.order = nil
	c.chat = nil
	c.captions = nil
}

func (c *SessionController) ToggleAudio() (bool, error) {
	return c.toggle(domain.MediaAudio)
}

func (c *SessionController) ToggleVideo() (bool, error) {
	return c.toggle(domain.MediaVideo)
}

func (c *SessionController) toggle(kind domain.MediaKind) (on bool, err error) {
	if e := c.do(func() {
		if c.state != StateJoined {
			err = ErrNotJoined
			return
		}
		track := c.media.Track(kind)
		if track == nil {
			err = fmt.Errorf("%s: %w", kind, domain.ErrMediaUnavailable)
			return
		}
		on = !track.Enabled()
		track.SetEnabled(on)
		event := protocol.EventToggleAudio
		if kind == domain.MediaVideo {
			c.videoOn = on
			event = protocol.EventToggleVideo
		} else {
			c.audioOn = on
		}
		c.send(event, on)
	}); e != nil {
		return false, e
	}
	return on, err
}

// SendChat posts a message; the relay does not echo it back, so it is
// recorded locally too.
func (c *SessionController) SendChat(text string) error {
	return c.joined(func() {
		c.send(protocol.EventSendMessage, protocol.ChatMessage{Content: text})
		c.chat = append(c.chat, protocol.ChatMessage{
			SenderID:   c.cfg.UserID,
			SenderName: c.cfg.Name,
			Content:    text,
			Timestamp:  c.now().UTC(),
		})
	})
}

func (c *SessionController) SendCaption(text string) error {
	return c.joined(func() {
		c.send(protocol.EventSendCaption, text)
		c.addCaption(protocol.Caption{
			UserID:    c.cfg.UserID,
			UserName:  c.cfg.Name,
			Content:   text,
			Timestamp: c.now().UTC(),
		})
	})
}

func (c *SessionController) Mute(target domain.UserID) error {
	return c.moderate(protocol.EventMuteUser, target)
}

func (c *SessionController) Kick(target domain.UserID) error {
	return c.moderate(protocol.EventRemoveUser, target)
}

// moderate checks only what we know locally; the relay has the final say.
func (c *SessionController) moderate(event protocol.Event, target domain.UserID) (err error) {
	if e := c.joined(func() {
		if !c.isHost {
			err = domain.ErrNotAuthorized
			return
		}
		if _, ok := c.peers[target]; !ok {
			err = fmt.Errorf("%s: %w", target, domain.ErrNotFound)
			return
		}
		c.send(event, protocol.Target{TargetUserID: target})
	}); e != nil {
		return e
	}
	return err
}

func (c *SessionController) joined(fn func()) (err error) {
	if e := c.do(func() {
		if c.state != StateJoined {
			err = ErrNotJoined
			return
		}
		fn()
	}); e != nil {
		return e
	}
	return err
}

// View snapshots the session state.
func (c *SessionController) View() (View, error) {
	var v View
	err := c.do(func() {
		v = View{
			State:    c.state,
			Room:     c.room,
			Self:     c.cfg.UserID,
			IsHost:   c.isHost,
			Audio:    c.audioOn,
			Video:    c.videoOn,
			Links:    c.links.Len(),
			Chat:     append([]protocol.ChatMessage(nil), c.chat...),
			Captions: append([]protocol.Caption(nil), c.captions...),
		}
		for _, id := range c.order {
			v.Participants = append(v.Participants, *c.peers[id])
		}
	})
	return v, err
}

func (c *SessionController) send(event protocol.Event, payload any) {
	if err := c.t.Send(event, payload); err != nil {
		log.Warn().Err(err).Str("module", "client").Str("event", string(event)).Msg("send failed")
	}
}

func (c *SessionController) notify(n Notice) {
	if c.cfg.Notify != nil {
		c.cfg.Notify(n)
	}
}

func (c *SessionController) addCaption(cp protocol.Caption) {
	c.captions = append(c.captions, cp)
	if n := len(c.captions); n > c.cfg.MaxCaptions {
		c.captions = append([]protocol.Caption(nil), c.captions[n-c.cfg.MaxCaptions:]...)
	}
}
