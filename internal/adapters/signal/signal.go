package signal

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Huddle/internal/app/gateway"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  64 * 1024,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
		SendBuffer: 64,
	}
}

type SignalWSController struct {
	Gateway *gateway.Gateway
	Options Options
}

func NewSignalWSController(gw *gateway.Gateway, opts Options) *SignalWSController {
	return &SignalWSController{Gateway: gw, Options: opts}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsSignalConn is one websocket speaking the relay protocol. The same type
// serves accepted server connections and dialed client connections.
type WsSignalConn struct {
	id    domain.SessionID
	conn  *websocket.Conn
	codec protocol.Codec
	opts  Options
	send  chan []byte
	done  chan struct{}

	// frames queued but not yet handed to the socket
	pending atomic.Int64

	mu      sync.RWMutex
	closed  bool
	onMsg   func(protocol.Frame)
	onClose func()
}

var _ core.Transport = (*WsSignalConn)(nil)

func NewWsSignalConn(id domain.SessionID, conn *websocket.Conn, codec protocol.Codec, opts Options) *WsSignalConn {
	def := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = def.SendBuffer
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = def.PingPeriod
	}
	if opts.PongWait <= 0 {
		opts.PongWait = def.PongWait
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = def.WriteWait
	}
	return &WsSignalConn{
		id:    id,
		conn:  conn,
		codec: codec,
		opts:  opts,
		send:  make(chan []byte, opts.SendBuffer),
		done:  make(chan struct{}),
	}
}

func (c *WsSignalConn) ID() domain.SessionID { return c.id }

func (c *WsSignalConn) Send(event protocol.Event, payload any) error {
	b, err := c.codec.Encode(event, payload)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

func (c *WsSignalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	c.pending.Add(1)
	select {
	case c.send <- b:
	default:
		c.pending.Add(-1)
		return core.ErrBackpressure
	}
	return nil
}

// Drain waits until every queued frame has been written, the connection
// closes, or wait passes. Call it before Close to get the last frames out.
func (c *WsSignalConn) Drain(wait time.Duration) bool {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for c.pending.Load() > 0 {
		select {
		case <-c.done:
			return false
		case <-deadline.C:
			log.Debug().Str("module", "signal").Str("sid", string(c.id)).Int64("pending", c.pending.Load()).Msg("drain timed out")
			return false
		case <-tick.C:
		}
	}
	return true
}

func (c *WsSignalConn) OnMessage(fn func(protocol.Frame)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMsg = fn
}

func (c *WsSignalConn) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// Done is closed once the connection is closed.
func (c *WsSignalConn) Done() <-chan struct{} { return c.done }

// Close is idempotent; the close hook runs once, after the socket is gone.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	close(c.done)
	_ = c.conn.Close()
	fn := c.onClose
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Start launches the pumps. ctx cancellation closes the connection.
func (c *WsSignalConn) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
	go c.writePump()
	go c.readPump()
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	codec, err := protocol.CodecByName(c.Query("codec"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	sid := domain.NewSessionID()
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", c.GetString("client_token")).
		Str("codec", codec.Name()).Msg("new WS connection")

	conn := NewWsSignalConn(sid, ws, codec, ctl.Options)
	ctl.Gateway.Attach(conn)
	conn.Start(ctx)
}
