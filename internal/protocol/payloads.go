package protocol

import (
	"time"

	"github.com/dkeye/Huddle/internal/domain"
)

type JoinRoom struct {
	RoomID   domain.RoomID `json:"roomId"`
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
}

// RoomUser is one entry of the room-users snapshot.
type RoomUser struct {
	ID     domain.UserID `json:"id"`
	Name   string        `json:"name"`
	IsHost bool          `json:"isHost"`
	Audio  bool          `json:"audio"`
	Video  bool          `json:"video"`
}

func RoomUserOf(s domain.UserSession) RoomUser {
	return RoomUser{
		ID:     s.UserID,
		Name:   s.DisplayName,
		IsHost: s.IsHost,
		Audio:  s.AudioEnabled,
		Video:  s.VideoEnabled,
	}
}

type UserJoined struct {
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
	IsHost   bool          `json:"isHost"`
}

// SignalRelay carries an opaque peer-connection payload. Clients fill To,
// the relay replaces it with From before forwarding.
type SignalRelay struct {
	Signal any           `json:"signal"`
	To     domain.UserID `json:"to,omitempty"`
	From   domain.UserID `json:"from,omitempty"`
}

type MediaToggle struct {
	UserID domain.UserID `json:"userId"`
	IsOn   bool          `json:"isOn"`
}

type ChatMessage struct {
	SenderID   domain.UserID `json:"senderId"`
	SenderName string        `json:"senderName"`
	Content    string        `json:"content"`
	Timestamp  time.Time     `json:"timestamp"`
}

type Caption struct {
	UserID    domain.UserID `json:"userId"`
	UserName  string        `json:"userName"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
}

type Target struct {
	TargetUserID domain.UserID `json:"targetUserId"`
}

type UserRef struct {
	UserID domain.UserID `json:"userId"`
}

type LeaveMeeting struct {
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
