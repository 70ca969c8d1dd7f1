package core

import (
	"errors"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Transport abstracts one client <-> relay connection.
// Owned by the adapter; the adapter must Close() it.
type Transport interface {
	ID() domain.SessionID
	// Send must not block; a full queue is reported as ErrBackpressure.
	Send(event protocol.Event, payload any) error
	Close()
	OnMessage(func(protocol.Frame))
	OnClose(func())
}

// Dispatcher delivers one event to one transport session.
// Rooms call it while holding their lock, so it must not block or call back into a room.
type Dispatcher interface {
	Dispatch(to domain.SessionID, event protocol.Event, payload any)
}
