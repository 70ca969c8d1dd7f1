package signal

import (
	"time"

	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *WsSignalConn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	msgType := websocket.TextMessage
	if c.codec.Binary() {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(c.opts.WriteWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
				c.pending.Add(-1)
				log.Error().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump set deadline")
				return
			}
			err := c.conn.WriteMessage(msgType, data)
			c.pending.Add(-1)
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("writePump ping error")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WsSignalConn) readPump() {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(c.id)).Msg("readPump closing")
		c.Close()
	}()

	if c.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(c.opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("readPump read error")
			}
			return
		}
		f, err := c.codec.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.id)).Msg("bad frame")
			_ = c.Send(protocol.EventError, protocol.ErrorPayload{Code: protocol.CodeBadPayload, Message: err.Error()})
			continue
		}

		c.mu.RLock()
		fn := c.onMsg
		c.mu.RUnlock()
		if fn != nil {
			fn(f)
		}
	}
}
