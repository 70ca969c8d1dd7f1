package domain

type RoomID string

type MediaKind int

const (
	MediaAudio MediaKind = iota
	MediaVideo
)

func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	default:
		return "unknown"
	}
}

type ModerationKind int

const (
	ModerationMute ModerationKind = iota
	ModerationRemove
)

func (k ModerationKind) String() string {
	switch k {
	case ModerationMute:
		return "mute"
	case ModerationRemove:
		return "remove"
	default:
		return "unknown"
	}
}
