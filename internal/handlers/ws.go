// internal/handlers/ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/catchphrase/internal/game"
	"github.com/jason-s-yu/catchphrase/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	// Subprotocol is offered to clients that ask for one. Clients may also
	// connect without a subprotocol.
	Subprotocol = "catchphrase"

	readLimit    = 16 << 10
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
)

// wsConn adapts a websocket connection to the game.Conn transport.
type wsConn struct {
	c   *websocket.Conn
	log *logrus.Entry
}

func newWSConn(c *websocket.Conn, log *logrus.Entry) *wsConn {
	c.SetReadLimit(readLimit)
	return &wsConn{c: c, log: log}
}

// ReceiveFrame returns the next text message. Binary messages are dropped.
func (w *wsConn) ReceiveFrame(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := w.c.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ != websocket.MessageText {
			w.log.Warnf("ignoring non-text message type %d", typ)
			continue
		}
		return data, nil
	}
}

func (w *wsConn) SendFrame(ctx context.Context, frame []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return w.c.Write(writeCtx, websocket.MessageText, frame)
}

func (w *wsConn) Close(reason string) {
	_ = w.c.Close(websocket.StatusNormalClosure, reason)
}

// keepAlive pings the peer until ctx ends. A failed ping closes the socket,
// which unblocks the reader.
func (w *wsConn) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := w.c.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					w.log.Warnf("ping failed, assuming disconnect: %v", err)
					_ = w.c.Close(websocket.StatusGoingAway, "ping timeout")
				}
				return
			}
		}
	}
}

// WSHandler upgrades the request and runs one session over it.
func WSHandler(logger *logrus.Logger, reg *game.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.CloseNow()

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		entry := logger.WithField("remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := newWSConn(c, entry)
		go conn.keepAlive(ctx)

		err = game.Serve(ctx, reg, conn)
		if isCleanClose(err) {
			err = nil
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// isCleanClose reports whether err is an ordinary end of a connection.
func isCleanClose(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
