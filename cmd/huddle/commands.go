package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dkeye/Huddle/internal/client"
	"github.com/dkeye/Huddle/internal/domain"
)

// session is the part of client.SessionController the prompt drives.
type session interface {
	ToggleAudio() (bool, error)
	ToggleVideo() (bool, error)
	Mute(domain.UserID) error
	Kick(domain.UserID) error
	SendChat(string) error
	SendCaption(string) error
	Leave() error
	View() (client.View, error)
}

const helpText = `/mic            toggle microphone
/cam            toggle camera
/mute <id>      mute a participant (host)
/kick <id>      remove a participant (host)
/caption <text> send a caption
/who            list participants
/leave          leave the room
anything else is sent as chat`

// runCommand executes one prompt line and reports whether the session ended.
func runCommand(s session, out io.Writer, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, s.SendChat(line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/mic":
		on, err := s.ToggleAudio()
		if err == nil {
			fmt.Fprintln(out, "microphone", onOff(on))
		}
		return false, err
	case "/cam":
		on, err := s.ToggleVideo()
		if err == nil {
			fmt.Fprintln(out, "camera", onOff(on))
		}
		return false, err
	case "/mute", "/kick":
		if arg == "" {
			return false, fmt.Errorf("usage: %s <user-id>", cmd)
		}
		if cmd == "/mute" {
			return false, s.Mute(domain.UserID(arg))
		}
		return false, s.Kick(domain.UserID(arg))
	case "/caption":
		if arg == "" {
			return false, fmt.Errorf("usage: /caption <text>")
		}
		return false, s.SendCaption(arg)
	case "/who":
		v, err := s.View()
		if err != nil {
			return false, err
		}
		printWho(out, v)
		return false, nil
	case "/leave", "/quit":
		return true, s.Leave()
	case "/help":
		fmt.Fprintln(out, helpText)
		return false, nil
	}
	return false, fmt.Errorf("unknown command %s, try /help", cmd)
}

func printWho(out io.Writer, v client.View) {
	self := fmt.Sprintf("%s (you)", v.Self)
	if v.IsHost {
		self += " [host]"
	}
	fmt.Fprintf(out, "room %s, %s: %s mic:%s cam:%s\n", v.Room, v.State, self, onOff(v.Audio), onOff(v.Video))
	for _, p := range v.Participants {
		host := ""
		if p.IsHost {
			host = " [host]"
		}
		fmt.Fprintf(out, "  %s %q%s mic:%s cam:%s\n", p.ID, p.Name, host, onOff(p.Audio), onOff(p.Video))
	}
}

func formatNotice(n client.Notice) string {
	who := string(n.UserID)
	if n.Name != "" {
		who = n.Name
	}
	switch n.Kind {
	case client.NoticeJoined:
		return "* joined " + n.Text
	case client.NoticePeerJoined:
		return "* " + who + " joined"
	case client.NoticePeerLeft:
		return "* " + who + " left"
	case client.NoticePeerMedia:
		return "* " + who + " turned " + n.Text
	case client.NoticeChat:
		return "<" + who + "> " + n.Text
	case client.NoticeCaption:
		return "[cc " + who + "] " + n.Text
	case client.NoticeHost:
		return "* " + who + " is now the host"
	case client.NoticeMuted:
		return "* the host muted you"
	case client.NoticeKicked:
		return "* you were removed from the meeting"
	case client.NoticeLinkFailed:
		return "* link to " + who + " failed: " + n.Text
	case client.NoticeDisconnect:
		return "* connection to the relay lost"
	case client.NoticeError:
		return "! " + n.Text
	}
	return fmt.Sprintf("* %s %s", n.Kind, n.Text)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
