package rtspcore

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avfoundry/rtspcore/pkg/base"
)

// httpProxyConnect opens a raw channel to addr through a HTTP proxy with the
// CONNECT method.
func httpProxyConnect(nconn net.Conn, addr string) error {
	_, err := nconn.Write([]byte(
		"CONNECT " + addr + " HTTP/1.1\r\n" +
			"Host: " + addr + "\r\n" +
			"\r\n",
	))
	if err != nil {
		return err
	}

	res, err := http.ReadResponse(bufio.NewReader(nconn), nil)
	if err != nil {
		return err
	}
	res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy returned status code %v", res.StatusCode)
	}

	return nil
}

// connTunnelHTTP is a duplex stream made of two half-duplex HTTP
// connections: a GET for the server-to-client direction and a POST for the
// client-to-server direction, correlated by a shared tunnel ID. Outgoing
// bytes are base64-encoded per the tunneling convention.
type connTunnelHTTP struct {
	readChan  net.Conn
	readBuf   *bufio.Reader
	writeChan net.Conn
}

func (c *connTunnelHTTP) Read(p []byte) (n int, err error) {
	return c.readBuf.Read(p)
}

func (c *connTunnelHTTP) Write(p []byte) (n int, err error) {
	_, err = c.writeChan.Write([]byte(base64.StdEncoding.EncodeToString(p)))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *connTunnelHTTP) Close() error {
	c.readChan.Close()
	c.writeChan.Close()
	return nil
}

func (c *connTunnelHTTP) LocalAddr() net.Addr {
	return c.readChan.LocalAddr()
}

func (c *connTunnelHTTP) RemoteAddr() net.Addr {
	return c.readChan.RemoteAddr()
}

func (c *connTunnelHTTP) SetDeadline(t time.Time) error {
	c.readChan.SetReadDeadline(t)   //nolint:errcheck
	c.writeChan.SetWriteDeadline(t) //nolint:errcheck
	return nil
}

func (c *connTunnelHTTP) SetReadDeadline(t time.Time) error {
	return c.readChan.SetReadDeadline(t)
}

func (c *connTunnelHTTP) SetWriteDeadline(t time.Time) error {
	return c.writeChan.SetWriteDeadline(t)
}

func tunnelResponseToRTSP(res *http.Response) *base.Response {
	out := &base.Response{
		StatusCode:    base.StatusCode(res.StatusCode),
		StatusMessage: strings.TrimPrefix(res.Status, fmt.Sprintf("%d ", res.StatusCode)),
		Header:        make(base.Header),
	}
	for key, vals := range res.Header {
		for _, val := range vals {
			out.Header.Add(key, val)
		}
	}
	return out
}

func (c *Conn) tunnelExtraHeaders() string {
	var sb strings.Builder
	for _, kv := range c.extraHTTPHeaders {
		sb.WriteString(kv[0] + ": " + kv[1] + "\r\n")
	}
	return sb.String()
}

func newConnTunnelHTTP(
	ctx context.Context,
	c *Conn,
	tlsConfig *tls.Config,
) (net.Conn, *base.Response, error) {
	tu := &connTunnelHTTP{}
	addr := c.u.Address()

	var err error
	tu.readChan, err = c.dialThroughProxy(ctx, addr)
	if err != nil {
		return nil, nil, err
	}

	if tlsConfig != nil {
		tu.readChan = tls.Client(tu.readChan, tlsConfig)
	}

	ok := false

	defer func() {
		if !ok {
			tu.readChan.Close()
		}
	}()

	ctxCheckerReadDone := make(chan struct{})
	defer func() { <-ctxCheckerReadDone }()

	ctxCheckerReadTerminate := make(chan struct{})
	defer close(ctxCheckerReadTerminate)

	go func() {
		defer close(ctxCheckerReadDone)
		select {
		case <-ctx.Done():
			tu.readChan.Close()
		case <-ctxCheckerReadTerminate:
		}
	}()

	tunnelID := strings.ReplaceAll(uuid.New().String(), "-", "")

	// do not use http.Request
	// since Content-Length requires a Body of same size
	_, err = tu.readChan.Write([]byte(
		"GET / HTTP/1.1\r\n" +
			"Host: " + addr + "\r\n" +
			"X-Sessioncookie: " + tunnelID + "\r\n" +
			"Accept: application/x-rtsp-tunnelled\r\n" +
			"Content-Length: 30000\r\n" +
			c.tunnelExtraHeaders() +
			"\r\n",
	))
	if err != nil {
		return nil, nil, err
	}

	tu.readBuf = bufio.NewReader(tu.readChan)
	res, err := http.ReadResponse(tu.readBuf, nil)
	if err != nil {
		return nil, nil, err
	}
	res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("bad status code: %v", res.StatusCode)
	}

	// some servers advertise a different host for the POST half
	postAddr := addr
	if !c.ignoreServerReplyHost {
		if v := res.Header.Get("X-Server-Ip-Address"); v != "" {
			_, port, _ := net.SplitHostPort(addr)
			postAddr = net.JoinHostPort(v, port)
		}
	}

	tu.writeChan, err = c.dialThroughProxy(ctx, postAddr)
	if err != nil {
		return nil, nil, err
	}

	if tlsConfig != nil {
		tu.writeChan = tls.Client(tu.writeChan, tlsConfig)
	}

	defer func() {
		if !ok {
			tu.writeChan.Close()
		}
	}()

	ctxCheckerWriteDone := make(chan struct{})
	defer func() { <-ctxCheckerWriteDone }()

	ctxCheckerWriteTerminate := make(chan struct{})
	defer close(ctxCheckerWriteTerminate)

	go func() {
		defer close(ctxCheckerWriteDone)
		select {
		case <-ctx.Done():
			tu.writeChan.Close()
		case <-ctxCheckerWriteTerminate:
		}
	}()

	// do not use http.Request
	// since Content-Length requires a Body of same size
	_, err = tu.writeChan.Write([]byte(
		"POST / HTTP/1.1\r\n" +
			"Host: " + postAddr + "\r\n" +
			"X-Sessioncookie: " + tunnelID + "\r\n" +
			"Content-Type: application/x-rtsp-tunnelled\r\n" +
			"Content-Length: 30000\r\n" +
			c.tunnelExtraHeaders() +
			"\r\n",
	))
	if err != nil {
		return nil, nil, err
	}

	c.tunnelID = tunnelID

	ok = true
	return tu, tunnelResponseToRTSP(res), nil
}
