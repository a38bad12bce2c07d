package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// dial opens a transport for endpoint: tcp (mqtt://, tcp:// or bare host:port),
// tls (mqtts://, ssl://, tls://) or websocket (ws://, wss://).
func dial(ctx context.Context, endpoint string, timeout time.Duration, tlsCfg *tls.Config) (net.Conn, error) {
	e := strings.TrimSpace(endpoint)
	if e == "" {
		return nil, ErrEndpointRequired
	}
	if strings.HasPrefix(e, "ws://") || strings.HasPrefix(e, "wss://") {
		dialer := websocket.Dialer{
			HandshakeTimeout: timeout,
			Subprotocols:     []string{"mqtt"},
			TLSClientConfig:  tlsCfg,
		}
		conn, _, err := dialer.DialContext(ctx, e, http.Header{})
		if err != nil {
			return nil, err
		}
		return &wsConn{Conn: conn}, nil
	}

	scheme, addr, found := strings.Cut(e, "://")
	if !found {
		scheme, addr = "tcp", e
	}
	switch scheme {
	case "mqtts", "ssl", "tls":
		d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: tlsCfg}
		return d.DialContext(ctx, "tcp", addr)
	case "mqtt", "tcp":
		d := &net.Dialer{Timeout: timeout}
		return d.DialContext(ctx, "tcp", addr)
	default:
		return nil, fmt.Errorf("realtime/mqtt: unsupported endpoint scheme %q", scheme)
	}
}

// wsConn adapts a message-oriented websocket to the byte stream the packet
// reader expects.
type wsConn struct {
	*websocket.Conn
	r io.Reader
}

func (ws *wsConn) Read(p []byte) (int, error) {
	for {
		if ws.r == nil {
			op, r, err := ws.NextReader()
			if err != nil {
				return 0, err
			}
			if op != websocket.BinaryMessage {
				return 0, fmt.Errorf("realtime/mqtt: websocket message type %d is not binary", op)
			}
			ws.r = r
		}
		n, err := ws.r.Read(p)
		if errors.Is(err, io.EOF) {
			ws.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (ws *wsConn) Write(p []byte) (int, error) {
	if err := ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (ws *wsConn) SetDeadline(t time.Time) error {
	if err := ws.SetReadDeadline(t); err != nil {
		return err
	}
	return ws.SetWriteDeadline(t)
}
