package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// wsConn serializes frame writes so control replies from the reader never
// interleave with streamed messages.
type wsConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *wsConn) writeText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.WriteServerText(c.conn, data)
}

func (c *wsConn) handleControl(hdr ws.Header, r io.Reader) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsutil.ControlFrameHandler(c.conn, ws.StateServerSide)(hdr, r)
}

// readUntilGone answers pings and closes until the peer goes away. Data
// frames are discarded.
func (c *wsConn) readUntilGone() {
	rd := &wsutil.Reader{
		Source:         c.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, rd); err != nil {
				return
			}
			continue
		}
		if err := rd.Discard(); err != nil {
			return
		}
	}
}

// WebSocketHandler streams run messages as JSON text frames. It accepts the
// same query filters as SSEHandler. Client frames are read only to answer
// control frames and notice the peer going away.
func WebSocketHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := parseFilter(r.URL.Query())

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		c := &wsConn{conn: conn}

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			c.readUntilGone()
		}()

		for {
			select {
			case <-gone:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !f.accept(msg) {
					continue
				}
				data, err := json.Marshal(msg)
				if err != nil {
					slog.Warn("websocket: marshal message", "error", err)
					continue
				}
				if err := c.writeText(data); err != nil {
					slog.Debug("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
