package signal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
)

// Dial connects to a relay's signaling endpoint. The returned connection is
// not started; wire its callbacks, then call Start.
func Dial(ctx context.Context, serverURL, codecName string, opts Options) (*WsSignalConn, error) {
	codec, err := protocol.CodecByName(codecName)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("codec", codec.Name())
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewWsSignalConn(domain.NewSessionID(), ws, codec, opts), nil
}
