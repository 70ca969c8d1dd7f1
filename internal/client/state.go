// Package client is the participant side of a huddle: it joins a room over a
// relay transport and keeps one peer link per remote participant.
package client

import (
	"errors"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

var (
	ErrBusy      = errors.New("session is not idle")
	ErrNotJoined = errors.New("not joined")
	ErrStopped   = errors.New("session loop stopped")
)

type State int

const (
	StateIdle State = iota
	StateJoining
	StateJoined
	StateLeaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	}
	return "unknown"
}

// DefaultMaxCaptions is how many captions a session keeps.
const DefaultMaxCaptions = 10

type Participant struct {
	ID     domain.UserID
	Name   string
	IsHost bool
	Audio  bool
	Video  bool
}

// View is a copy of the session state, safe to use outside the event loop.
type View struct {
	State        State
	Room         domain.RoomID
	Self         domain.UserID
	IsHost       bool
	Audio        bool
	Video        bool
	Participants []Participant
	Links        int
	Chat         []protocol.ChatMessage
	Captions     []protocol.Caption
}

type NoticeKind string

const (
	NoticeJoined     NoticeKind = "joined"
	NoticePeerJoined NoticeKind = "peer-joined"
	NoticePeerLeft   NoticeKind = "peer-left"
	NoticePeerMedia  NoticeKind = "peer-media"
	NoticeChat       NoticeKind = "chat"
	NoticeCaption    NoticeKind = "caption"
	NoticeHost       NoticeKind = "host"
	NoticeMuted      NoticeKind = "muted"
	NoticeKicked     NoticeKind = "kicked"
	NoticeLinkFailed NoticeKind = "link-failed"
	NoticeError      NoticeKind = "error"
	NoticeLeft       NoticeKind = "left"
	NoticeDisconnect NoticeKind = "disconnected"
)

// Notice tells the UI something changed.
type Notice struct {
	Kind   NoticeKind
	UserID domain.UserID
	Name   string
	Text   string
}
