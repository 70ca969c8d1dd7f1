package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Huddle/internal/adapters/rtc"
	sig "github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/client"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/logging"
)

func newJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a room",
		Long: `Join a room and stay until /leave, Ctrl-C or removal by the host.

Examples:
  huddle join --room standup
  huddle join --server wss://relay.example.com/api/ws/signal --room standup --name Alice --audio-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient(cmd.Flags())
			if err != nil {
				return err
			}
			return runJoin(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("server", "", "relay websocket URL")
	f.String("room", "", "room id")
	f.String("user", "", "user id (random when empty)")
	f.String("name", "", "display name")
	f.String("codec", "", "wire codec: json or msgpack")
	f.String("stun", "", "STUN server URL")
	f.Bool("audio-only", false, "never open the camera")
	f.String("log-level", "", "log level")
	return cmd
}

// how long a leaving client waits for its last frames to reach the relay
const leaveFlushWait = 2 * time.Second

func runJoin(parent context.Context, cfg *config.ClientConfig, in io.Reader, out io.Writer) error {
	closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Console: true})
	if err != nil {
		return err
	}
	defer closer.Close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	user := domain.UserID(cfg.User)
	if user == "" {
		user = domain.NewUserID()
	}
	if err := domain.ValidateUserID(user); err != nil {
		return err
	}

	conn, err := sig.Dial(ctx, cfg.Server, cfg.Codec, sig.DefaultOptions())
	if err != nil {
		return err
	}
	defer conn.Close()

	factory, err := rtc.NewFactory(rtc.ConfigWithSTUN(cfg.STUN))
	if err != nil {
		return err
	}

	done := make(chan struct{}, 1)
	session := client.NewSessionController(conn, rtc.SyntheticSource{NoCamera: cfg.AudioOnly}, factory, client.Config{
		UserID: user,
		Name:   cfg.Name,
		Notify: func(n client.Notice) {
			fmt.Fprintln(out, formatNotice(n))
			if n.Kind == client.NoticeKicked || n.Kind == client.NoticeDisconnect {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	g.Go(func() error { return session.Run(loopCtx) })
	// the socket outlives gctx and the loop so leave-meeting still goes out
	// on Ctrl-C; it is drained and closed on the way out
	connCtx, stopConn := context.WithCancel(context.Background())
	defer stopConn()
	conn.Start(connCtx)

	if err := session.Join(gctx, domain.RoomID(cfg.Room)); err != nil {
		stopLoop()
		_ = g.Wait()
		return fmt.Errorf("join %s: %w", cfg.Room, err)
	}
	log.Info().Str("module", "huddle").Str("room", cfg.Room).Str("user", string(user)).Msg("joining")
	fmt.Fprintf(out, "joining %s as %s (type /help for commands)\n", cfg.Room, user)

	lines := make(chan string)
	go readLines(in, lines)

	g.Go(func() error {
		defer stopLoop()
		for {
			select {
			case <-gctx.Done():
				_ = session.Leave()
				return nil
			case <-done:
				return nil
			case line, ok := <-lines:
				if !ok {
					_ = session.Leave()
					return nil
				}
				quit, err := runCommand(session, out, line)
				if err != nil {
					fmt.Fprintln(out, "!", err)
				}
				if quit {
					return nil
				}
			}
		}
	})

	err = g.Wait()
	conn.Drain(leaveFlushWait)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func readLines(in io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		out <- sc.Text()
	}
}
