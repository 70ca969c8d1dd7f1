package core

import (
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
)

type JoinResult struct {
	IsNewRoom    bool
	AssignedHost domain.UserID
	// ExistingUsers are the other members in join order.
	ExistingUsers []domain.UserSession
	// Replaced is the transport session superseded by a duplicate join.
	Replaced domain.SessionID
}

type LeaveResult struct {
	Left        domain.UserSession
	RoomDeleted bool
	// NewHost is empty unless the host left a non-empty room.
	NewHost domain.UserID
}

type ModerationResult struct {
	Kind          domain.ModerationKind
	Target        domain.UserID
	TargetSession domain.SessionID
	// Leave is set for removals.
	Leave *LeaveResult
}

// RoomInfo is a read-only view for APIs (no transport fields).
type RoomInfo struct {
	ID          domain.RoomID       `json:"id"`
	Host        domain.UserID       `json:"host"`
	MemberCount int                 `json:"memberCount"`
	Members     []protocol.RoomUser `json:"members,omitempty"`
}
