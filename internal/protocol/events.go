// Package protocol holds the relay wire vocabulary: event names, payloads and codecs.
package protocol

type Event string

// client -> relay
const (
	EventJoinRoom        Event = "join-room"
	EventLeaveMeeting    Event = "leave-meeting"
	EventSendingSignal   Event = "sending-signal"
	EventReturningSignal Event = "returning-signal"
	EventToggleAudio     Event = "toggle-audio"
	EventToggleVideo     Event = "toggle-video"
	EventSendMessage     Event = "send-message"
	EventSendCaption     Event = "send-caption"
	EventMuteUser        Event = "mute-user"
	EventRemoveUser      Event = "remove-user"
	EventPing            Event = "ping"
)

// relay -> client
const (
	EventRoomUsers               Event = "room-users"
	EventUserJoined              Event = "user-joined"
	EventUserJoinedWithSignal    Event = "user-joined-with-signal"
	EventReceivingReturnedSignal Event = "receiving-returned-signal"
	EventUserToggleAudio         Event = "user-toggle-audio"
	EventUserToggleVideo         Event = "user-toggle-video"
	EventReceiveMessage          Event = "receive-message"
	EventReceiveCaption          Event = "receive-caption"
	EventHostMutedYou            Event = "host-muted-you"
	EventKickedFromMeeting       Event = "kicked-from-meeting"
	EventNewHost                 Event = "new-host"
	EventUserLeft                Event = "user-left"
	EventPong                    Event = "pong"
	EventError                   Event = "error"
)

// Error codes carried by EventError.
const (
	CodeBadPayload    = "bad_payload"
	CodeNotFound      = "not_found"
	CodeNotAuthorized = "not_authorized"
	CodeNotInRoom     = "not_in_room"
	CodeRateLimited   = "rate_limited"
	CodeUnknownEvent  = "unknown_event"
)
