package rtspcore

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type wsReader struct {
	wc *websocket.Conn

	buf []byte
}

func (r *wsReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		var msgType int
		var err error
		msgType, r.buf, err = r.wc.ReadMessage()
		if err != nil {
			return 0, err
		}

		if msgType != websocket.BinaryMessage {
			return 0, fmt.Errorf("unexpected message type %v", msgType)
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]

	return n, nil
}

type wsWriter struct {
	wc *websocket.Conn

	mutex sync.Mutex
}

func (w *wsWriter) Write(p []byte) (int, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	err := w.wc.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// connTunnelWebSocket carries the control channel inside binary WebSocket
// messages, using the rtsp.onvif.org subprotocol.
type connTunnelWebSocket struct {
	wconn *websocket.Conn
	r     io.Reader
	w     io.Writer
}

func (tu *connTunnelWebSocket) Read(b []byte) (int, error) {
	return tu.r.Read(b)
}

func (tu *connTunnelWebSocket) Write(b []byte) (int, error) {
	return tu.w.Write(b)
}

func (tu *connTunnelWebSocket) Close() error {
	return tu.wconn.Close()
}

func (tu *connTunnelWebSocket) LocalAddr() net.Addr {
	return tu.wconn.LocalAddr()
}

func (tu *connTunnelWebSocket) RemoteAddr() net.Addr {
	return tu.wconn.RemoteAddr()
}

func (tu *connTunnelWebSocket) SetDeadline(_ time.Time) error {
	return nil
}

func (tu *connTunnelWebSocket) SetReadDeadline(t time.Time) error {
	return tu.wconn.SetReadDeadline(t)
}

func (tu *connTunnelWebSocket) SetWriteDeadline(t time.Time) error {
	return tu.wconn.SetWriteDeadline(t)
}

func newConnTunnelWebSocket(
	ctx context.Context,
	c *Conn,
	tlsConfig *tls.Config,
) (net.Conn, error) {
	tu := &connTunnelWebSocket{}
	addr := c.u.Address()

	var ur string
	if tlsConfig != nil {
		ur = "wss"
	} else {
		ur = "ws"
	}
	ur += "://" + addr + "/"

	tunnelID := strings.ReplaceAll(uuid.New().String(), "-", "")

	reqHeader := http.Header{}
	reqHeader.Set("X-Sessioncookie", tunnelID)
	for _, kv := range c.extraHTTPHeaders {
		reqHeader.Add(kv[0], kv[1])
	}

	var err error
	tu.wconn, _, err = (&websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, address string) (net.Conn, error) {
			return c.dialThroughProxy(ctx, address)
		},
		TLSClientConfig: tlsConfig,
		Subprotocols:    []string{"rtsp.onvif.org"},
	}).DialContext(ctx, ur, reqHeader) //nolint:bodyclose
	if err != nil {
		return nil, err
	}

	tu.r = &wsReader{wc: tu.wconn}
	tu.w = &wsWriter{wc: tu.wconn}

	c.tunnelID = tunnelID

	return tu, nil
}
