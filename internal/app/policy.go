package app

import (
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

type Policy interface {
	OnBackPressure(sid domain.SessionID, event protocol.Event) BackpressureAction
}

// SimplePolicy drops chat and captions for a slow session but closes it when
// it would miss anything that changes room or peer state.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ domain.SessionID, event protocol.Event) BackpressureAction {
	switch event {
	case protocol.EventReceiveMessage, protocol.EventReceiveCaption, protocol.EventPong:
		return DropFrame
	default:
		return KickMember
	}
}
