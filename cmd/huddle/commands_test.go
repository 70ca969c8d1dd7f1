package main

import (
	"bytes"
	"testing"

	"github.com/dkeye/Huddle/internal/client"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	calls []string
	err   error
	view  client.View
}

func (f *fakeSession) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeSession) ToggleAudio() (bool, error)  { return false, f.record("mic") }
func (f *fakeSession) ToggleVideo() (bool, error)  { return true, f.record("cam") }
func (f *fakeSession) Mute(id domain.UserID) error { return f.record("mute " + string(id)) }
func (f *fakeSession) Kick(id domain.UserID) error { return f.record("kick " + string(id)) }
func (f *fakeSession) SendChat(s string) error     { return f.record("chat " + s) }
func (f *fakeSession) SendCaption(s string) error  { return f.record("caption " + s) }
func (f *fakeSession) Leave() error                { return f.record("leave") }
func (f *fakeSession) View() (client.View, error)  { return f.view, f.err }

func TestRunCommandDispatch(t *testing.T) {
	s := &fakeSession{}
	var out bytes.Buffer

	for _, line := range []string{"hello there", "  ", "/mic", "/cam", "/mute A", "/kick  B ", "/caption live text"} {
		quit, err := runCommand(s, &out, line)
		require.NoError(t, err, line)
		assert.False(t, quit)
	}
	assert.Equal(t, []string{"chat hello there", "mic", "cam", "mute A", "kick B", "caption live text"}, s.calls)
	assert.Contains(t, out.String(), "microphone off")
	assert.Contains(t, out.String(), "camera on")

	quit, err := runCommand(s, &out, "/leave")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestRunCommandUsage(t *testing.T) {
	s := &fakeSession{}
	var out bytes.Buffer

	_, err := runCommand(s, &out, "/mute")
	assert.Error(t, err)
	_, err = runCommand(s, &out, "/caption")
	assert.Error(t, err)
	_, err = runCommand(s, &out, "/dance")
	assert.ErrorContains(t, err, "unknown command")
	assert.Empty(t, s.calls)
}

func TestWhoListsParticipants(t *testing.T) {
	s := &fakeSession{view: client.View{
		State: client.StateJoined, Room: "r1", Self: "B", Audio: true,
		Participants: []client.Participant{{ID: "A", Name: "Alice", IsHost: true, Audio: true}},
	}}
	var out bytes.Buffer
	_, err := runCommand(s, &out, "/who")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "room r1, joined: B (you) mic:on cam:off")
	assert.Contains(t, out.String(), `A "Alice" [host] mic:on cam:off`)
}

func TestFormatNotice(t *testing.T) {
	assert.Equal(t, "<Alice> hi", formatNotice(client.Notice{Kind: client.NoticeChat, UserID: "A", Name: "Alice", Text: "hi"}))
	assert.Equal(t, "* C left", formatNotice(client.Notice{Kind: client.NoticePeerLeft, UserID: "C"}))
	assert.Equal(t, "* the host muted you", formatNotice(client.Notice{Kind: client.NoticeMuted}))
}
