package gateway

import (
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core/coretest"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/metrics"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newGateway(t *testing.T) *Gateway {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	binds := app.NewBindings(app.SimplePolicy{}, m)
	g := New(app.NewRoomRegistry(binds, m), binds, app.NewRateLimiter(0, 0), m)
	g.Now = func() time.Time { return fixedNow }
	return g
}

func connect(t *testing.T, g *Gateway, sid domain.SessionID) *coretest.Transport {
	t.Helper()
	c := coretest.NewTransport(sid)
	g.Attach(c)
	return c
}

func send(t *testing.T, c *coretest.Transport, event protocol.Event, payload any) {
	t.Helper()
	require.NoError(t, c.Deliver(event, payload))
}

func joinAs(t *testing.T, g *Gateway, sid domain.SessionID, room domain.RoomID, uid domain.UserID, name string) *coretest.Transport {
	t.Helper()
	c := connect(t, g, sid)
	send(t, c, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: room, UserID: uid, UserName: name})
	return c
}

func lastError(t *testing.T, c *coretest.Transport) protocol.ErrorPayload {
	t.Helper()
	p, ok := c.Last(protocol.EventError)
	require.True(t, ok, "expected an error event")
	return p.(protocol.ErrorPayload)
}

func TestJoinSnapshotAndNotice(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")

	p, ok := b.Last(protocol.EventRoomUsers)
	require.True(t, ok)
	users := p.([]protocol.RoomUser)
	require.Len(t, users, 1)
	assert.Equal(t, protocol.RoomUser{ID: "A", Name: "Alice", IsHost: true, Audio: true, Video: true}, users[0])

	p, ok = a.Last(protocol.EventUserJoined)
	require.True(t, ok)
	assert.Equal(t, protocol.UserJoined{UserID: "B", UserName: "Bob"}, p)
	assert.NotContains(t, b.Events(), protocol.EventUserJoined)
}

func TestJoinValidation(t *testing.T) {
	g := newGateway(t)
	c := connect(t, g, "s1")

	send(t, c, protocol.EventJoinRoom, protocol.JoinRoom{UserID: "A"})
	assert.Equal(t, protocol.CodeBadPayload, lastError(t, c).Code)

	c.Reset()
	send(t, c, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1"})
	assert.Equal(t, protocol.CodeBadPayload, lastError(t, c).Code)
	assert.False(t, g.Rooms.Exists("r1"))
}

func TestExplicitLeaveAndDisconnectShareOnePath(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")
	c := joinAs(t, g, "sc", "r1", "C", "Cid")
	b.Reset()
	c.Reset()

	// host leaves explicitly
	send(t, a, protocol.EventLeaveMeeting, protocol.LeaveMeeting{RoomID: "r1", UserID: "A"})
	assert.Equal(t, []protocol.Event{protocol.EventUserLeft, protocol.EventNewHost}, b.Events())
	assert.Equal(t, []protocol.Event{protocol.EventUserLeft, protocol.EventNewHost}, c.Events())
	nh, _ := c.Last(protocol.EventNewHost)
	assert.Equal(t, protocol.UserRef{UserID: "B"}, nh)

	// a second leave from the same session is a no-op
	c.Reset()
	send(t, a, protocol.EventLeaveMeeting, protocol.LeaveMeeting{RoomID: "r1", UserID: "A"})
	assert.Empty(t, c.Events())

	// new host drops its connection
	b.Close()
	assert.Equal(t, []protocol.Event{protocol.EventUserLeft, protocol.EventNewHost}, c.Events())
	info, ok := g.Rooms.Snapshot("r1")
	require.True(t, ok)
	assert.EqualValues(t, "C", info.Host)

	c.Close()
	assert.False(t, g.Rooms.Exists("r1"))
	assert.Equal(t, 1, g.Bindings.Count())
}

func TestSignalRelay(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")

	offer := map[string]any{"type": "offer", "sdp": "v=0"}
	send(t, b, protocol.EventSendingSignal, protocol.SignalRelay{Signal: offer, To: "A"})
	p, ok := a.Last(protocol.EventUserJoinedWithSignal)
	require.True(t, ok)
	relay := p.(protocol.SignalRelay)
	assert.EqualValues(t, "B", relay.From)
	assert.Empty(t, relay.To)
	assert.Equal(t, offer, relay.Signal)

	send(t, a, protocol.EventReturningSignal, protocol.SignalRelay{Signal: map[string]any{"type": "answer"}, To: "B"})
	p, ok = b.Last(protocol.EventReceivingReturnedSignal)
	require.True(t, ok)
	assert.EqualValues(t, "A", p.(protocol.SignalRelay).From)

	// target gone: dropped, no error to the sender
	b.Reset()
	send(t, b, protocol.EventSendingSignal, protocol.SignalRelay{Signal: offer, To: "ghost"})
	assert.Empty(t, b.Events())
	assert.Equal(t, float64(1), testutil.ToFloat64(g.Metrics.SignalsDropped))
}

func TestSignalOutsideRoom(t *testing.T) {
	g := newGateway(t)
	c := connect(t, g, "s1")
	send(t, c, protocol.EventSendingSignal, protocol.SignalRelay{Signal: "x", To: "A"})
	assert.Equal(t, protocol.CodeNotInRoom, lastError(t, c).Code)
}

func TestToggleExcludesSender(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")
	a.Reset()
	b.Reset()

	send(t, b, protocol.EventToggleVideo, false)
	p, ok := a.Last(protocol.EventUserToggleVideo)
	require.True(t, ok)
	assert.Equal(t, protocol.MediaToggle{UserID: "B", IsOn: false}, p)
	assert.Empty(t, b.Events())

	info, _ := g.Rooms.Snapshot("r1")
	assert.False(t, info.Members[1].Video)
	assert.True(t, info.Members[0].Video)
}

func TestChatAndCaptionUseBoundIdentity(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")
	a.Reset()
	b.Reset()

	send(t, b, protocol.EventSendMessage, protocol.ChatMessage{SenderID: "A", SenderName: "spoofed", Content: "hello"})
	p, ok := a.Last(protocol.EventReceiveMessage)
	require.True(t, ok)
	assert.Equal(t, protocol.ChatMessage{SenderID: "B", SenderName: "Bob", Content: "hello", Timestamp: fixedNow}, p)
	assert.Empty(t, b.Events())

	send(t, a, protocol.EventSendCaption, "good morning")
	p, ok = b.Last(protocol.EventReceiveCaption)
	require.True(t, ok)
	assert.Equal(t, protocol.Caption{UserID: "A", UserName: "Alice", Content: "good morning", Timestamp: fixedNow}, p)

	b.Reset()
	send(t, a, protocol.EventSendMessage, "plain text")
	p, ok = b.Last(protocol.EventReceiveMessage)
	require.True(t, ok)
	assert.Equal(t, "plain text", p.(protocol.ChatMessage).Content)
}

func TestChatRateLimited(t *testing.T) {
	g := newGateway(t)
	g.Limiter = app.NewRateLimiter(0.001, 1)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")
	b.Reset()

	send(t, a, protocol.EventSendMessage, "one")
	send(t, a, protocol.EventSendMessage, "two")

	var got []string
	for _, s := range b.Sent() {
		if s.Event == protocol.EventReceiveMessage {
			got = append(got, s.Payload.(protocol.ChatMessage).Content)
		}
	}
	assert.Equal(t, []string{"one"}, got)
	assert.Equal(t, protocol.CodeRateLimited, lastError(t, a).Code)
}

func TestModeration(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")
	c := joinAs(t, g, "sc", "r1", "C", "Cid")
	a.Reset()
	b.Reset()
	c.Reset()

	// non-host: rejected, only the actor hears about it
	send(t, b, protocol.EventMuteUser, protocol.Target{TargetUserID: "C"})
	assert.Equal(t, protocol.CodeNotAuthorized, lastError(t, b).Code)
	assert.Empty(t, a.Events())
	assert.Empty(t, c.Events())

	// missing target
	b.Reset()
	send(t, a, protocol.EventRemoveUser, protocol.Target{TargetUserID: "ghost"})
	assert.Equal(t, protocol.CodeNotFound, lastError(t, a).Code)
	assert.Empty(t, b.Events())
	assert.Empty(t, c.Events())

	a.Reset()
	send(t, a, protocol.EventMuteUser, protocol.Target{TargetUserID: "C"})
	assert.Equal(t, []protocol.Event{protocol.EventHostMutedYou}, c.Events())
	assert.Equal(t, []protocol.Event{protocol.EventUserToggleAudio}, b.Events())

	b.Reset()
	c.Reset()
	send(t, a, protocol.EventRemoveUser, protocol.Target{TargetUserID: "C"})
	assert.Equal(t, []protocol.Event{protocol.EventKickedFromMeeting}, c.Events())
	assert.Equal(t, []protocol.Event{protocol.EventUserLeft}, b.Events())
	_, _, bound := g.Bindings.RoomOf("sc")
	assert.False(t, bound)

	// the kicked client's own leave is harmless
	b.Reset()
	send(t, c, protocol.EventLeaveMeeting, protocol.LeaveMeeting{RoomID: "r1", UserID: "C"})
	assert.Empty(t, b.Events())
	info, _ := g.Rooms.Snapshot("r1")
	assert.Equal(t, 2, info.MemberCount)
}

func TestRejoinReplacesOldSession(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	old := joinAs(t, g, "sb1", "r1", "B", "Bob")
	a.Reset()

	fresh := joinAs(t, g, "sb2", "r1", "B", "Bob")
	assert.True(t, old.WaitClosed(time.Second))
	assert.Contains(t, fresh.Events(), protocol.EventRoomUsers)

	// the old connection closing must not evict the new one
	info, ok := g.Rooms.Snapshot("r1")
	require.True(t, ok)
	assert.Equal(t, 2, info.MemberCount)
	assert.NotContains(t, a.Events(), protocol.EventUserLeft)

	send(t, fresh, protocol.EventSendMessage, "still here")
	_, ok = a.Last(protocol.EventReceiveMessage)
	assert.True(t, ok)
}

func TestJoinAfterTransportClosedDoesNotLinger(t *testing.T) {
	g := newGateway(t)
	connect(t, g, "sa")
	join, err := protocol.NewFrame(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", UserID: "A", UserName: "Alice"})
	require.NoError(t, err)

	// the close wins the race against a join still being handled
	g.Disconnect("sa")
	g.HandleFrame("sa", join)

	assert.False(t, g.Rooms.Exists("r1"))
	_, ok := g.Rooms.Snapshot("r1")
	assert.False(t, ok)
	assert.Zero(t, g.Bindings.Count())

	// same race with someone already in the room: the host stays put
	b := joinAs(t, g, "sb", "r2", "B", "Bob")
	b.Reset()
	connect(t, g, "sc")
	g.Disconnect("sc")
	late, err := protocol.NewFrame(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r2", UserID: "C", UserName: "Cid"})
	require.NoError(t, err)
	g.HandleFrame("sc", late)

	assert.Equal(t, []protocol.Event{protocol.EventUserJoined, protocol.EventUserLeft}, b.Events())
	info, ok := g.Rooms.Snapshot("r2")
	require.True(t, ok)
	assert.Equal(t, 1, info.MemberCount)
	assert.EqualValues(t, "B", info.Host)
}

func TestJoinAnotherRoomLeavesFirst(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")
	b.Reset()

	send(t, a, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r2", UserID: "A", UserName: "Alice"})
	assert.Equal(t, []protocol.Event{protocol.EventUserLeft, protocol.EventNewHost}, b.Events())
	assert.True(t, g.Rooms.Exists("r2"))
	room, _, _ := g.Bindings.RoomOf("sa")
	assert.EqualValues(t, "r2", room)
}

func TestPingAndUnknown(t *testing.T) {
	g := newGateway(t)
	c := connect(t, g, "s1")
	send(t, c, protocol.EventPing, nil)
	assert.Equal(t, []protocol.Event{protocol.EventPong}, c.Events())

	send(t, c, protocol.Event("dance"), nil)
	assert.Equal(t, protocol.CodeUnknownEvent, lastError(t, c).Code)
}

func TestSlowMemberIsClosedAndLeaves(t *testing.T) {
	g := newGateway(t)
	a := joinAs(t, g, "sa", "r1", "A", "Alice")
	b := joinAs(t, g, "sb", "r1", "B", "Bob")
	b.SetFull(true)

	send(t, a, protocol.EventToggleAudio, false)
	require.True(t, b.WaitClosed(time.Second))
	assert.Eventually(t, func() bool {
		info, ok := g.Rooms.Snapshot("r1")
		return ok && info.MemberCount == 1
	}, time.Second, 10*time.Millisecond)
}
