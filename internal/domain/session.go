package domain

// UserSession is one participant's presence in a room.
// Owned by the room; copies handed out are snapshots.
type UserSession struct {
	UserID       UserID
	DisplayName  string
	SessionID    SessionID
	IsHost       bool
	AudioEnabled bool
	VideoEnabled bool
}

func NewUserSession(id UserID, name string, sid SessionID) *UserSession {
	return &UserSession{
		UserID:       id,
		DisplayName:  NormalizeDisplayName(name),
		SessionID:    sid,
		AudioEnabled: true,
		VideoEnabled: true,
	}
}

func (s *UserSession) SetMedia(kind MediaKind, enabled bool) {
	switch kind {
	case MediaAudio:
		s.AudioEnabled = enabled
	case MediaVideo:
		s.VideoEnabled = enabled
	}
}
