package rtspcore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avfoundry/rtspcore/pkg/base"
	"github.com/avfoundry/rtspcore/pkg/conn"
	"github.com/avfoundry/rtspcore/pkg/liberrors"
)

func TestNewConnErrors(t *testing.T) {
	_, err := NewConn(nil)
	require.Error(t, err)

	u := &base.URL{Scheme: "http", Host: "localhost"}
	_, err = NewConn(u)
	require.Error(t, err)
}

func TestNotConnectedGuards(t *testing.T) {
	c, err := NewConn(base.MustParseURL("rtsp://localhost:8554/test"))
	require.NoError(t, err)

	err = c.Send(base.NewRequest(base.Options, c.URL()), time.Second)
	require.Equal(t, liberrors.ErrNotConnected{}, err)

	_, err = c.Receive(time.Second)
	require.Equal(t, liberrors.ErrNotConnected{}, err)

	_, err = c.ReadData(make([]byte, 1), time.Second)
	require.Equal(t, liberrors.ErrNotConnected{}, err)

	_, err = c.WriteData([]byte{0x01}, time.Second)
	require.Equal(t, liberrors.ErrNotConnected{}, err)

	err = c.Flush(false)
	require.Equal(t, liberrors.ErrNotConnected{}, err)

	_, err = c.Poll(EventRead, time.Second)
	require.Equal(t, liberrors.ErrNotConnected{}, err)

	err = c.SetQOSDSCP(46)
	require.Equal(t, liberrors.ErrNotConnected{}, err)

	// closing a never-connected connection is an error the caller tolerates
	err = c.Close()
	require.Equal(t, liberrors.ErrNotConnected{}, err)
}

// serveOnce accepts one connection and handles one request per entry of
// responses.
func serveOnce(t *testing.T, ln net.Listener, handle func(nconn net.Conn)) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		nconn, err := ln.Accept()
		if err != nil {
			return
		}
		defer nconn.Close()
		handle(nconn)
	}()
	return done
}

func TestConnectAndRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	done := serveOnce(t, ln, func(nconn net.Conn) {
		co := conn.NewConn(nconn)

		req, err2 := co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.Options, req.Method)

		res := base.NewResponse(base.StatusOK, "", req)
		res.Header.Add("Session", "12345678;timeout=60")
		err2 = co.WriteResponse(res)
		require.NoError(t, err2)
	})

	u := base.MustParseURL("rtsp://" + ln.Addr().String() + "/test")
	c, err := NewConn(u)
	require.NoError(t, err)
	c.SetRememberSessionID(true)

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "connected", c.State().String())
	require.NotEmpty(t, c.IP())

	// connecting again is rejected
	err = c.Connect(2 * time.Second)
	require.Equal(t, liberrors.ErrAlreadyConnected{}, err)

	req := base.NewRequest(base.Options, u)
	req.Header.Add("CSeq", "1")
	err = c.Send(req, 2*time.Second)
	require.NoError(t, err)

	msg, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	res, ok := msg.(*base.Response)
	require.True(t, ok)
	require.Equal(t, base.StatusOK, res.StatusCode)

	// the session ID is remembered without its parameters
	require.Equal(t, "12345678", c.RememberedSessionID())

	<-done

	err = c.Close()
	require.NoError(t, err)
	require.Equal(t, "closed", c.State().String())
}

func TestReceiveTimeoutIsRetryable(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	stop := make(chan struct{})
	done := serveOnce(t, ln, func(nconn net.Conn) {
		<-stop
	})
	defer func() {
		close(stop)
		<-done
	}()

	c, err := NewConn(base.MustParseURL("rtsp://" + ln.Addr().String() + "/test"))
	require.NoError(t, err)

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Receive(50 * time.Millisecond)
	require.Equal(t, liberrors.ErrTimeout{Op: "receive"}, err)

	// the connection stays usable after a timeout
	require.Equal(t, "connected", c.State().String())

	_, err = c.Poll(EventRead, 50*time.Millisecond)
	require.Equal(t, liberrors.ErrTimeout{Op: "poll"}, err)

	ev, err := c.Poll(EventWrite, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, EventWrite, ev)
}

func TestConnectTimeoutIsRetryable(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	done := serveOnce(t, ln, func(nconn net.Conn) {
	})

	c, err := NewConn(base.MustParseURL("rtsp://" + ln.Addr().String() + "/test"))
	require.NoError(t, err)

	attempts := 0
	c.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
		attempts++
		if attempts == 1 {
			return nil, &net.DNSError{Err: "i/o timeout", IsTimeout: true}
		}
		return (&net.Dialer{}).DialContext(ctx, network, address)
	}

	err = c.Connect(time.Second)
	require.Equal(t, liberrors.ErrTimeout{Op: "connect"}, err)

	// a timed-out connect leaves the connection retryable
	require.Equal(t, "created", c.State().String())

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "connected", c.State().String())
	require.Equal(t, 2, attempts)

	c.Close()
	<-done
}

func TestPeerCloseIsTerminal(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	done := serveOnce(t, ln, func(nconn net.Conn) {
		// close immediately
	})

	c, err := NewConn(base.MustParseURL("rtsp://" + ln.Addr().String() + "/test"))
	require.NoError(t, err)

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	<-done

	_, err = c.Receive(2 * time.Second)
	require.IsType(t, liberrors.ErrConnectionClosed{}, err)

	// subsequent operations fail with the terminal kind
	err = c.Send(base.NewRequest(base.Options, c.URL()), time.Second)
	require.IsType(t, liberrors.ErrConnectionClosed{}, err)

	c.Close()
}

func TestReceiveMalformedData(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	done := serveOnce(t, ln, func(nconn net.Conn) {
		nconn.Write([]byte("GARBAGE here\r\n\r\n")) //nolint:errcheck
	})

	c, err := NewConn(base.MustParseURL("rtsp://" + ln.Addr().String() + "/test"))
	require.NoError(t, err)

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Receive(2 * time.Second)
	require.IsType(t, liberrors.ErrProtocol{}, err)

	<-done
}

func TestConnectContextCancellation(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	stop := make(chan struct{})
	done := serveOnce(t, ln, func(nconn net.Conn) {
		<-stop
	})
	defer func() {
		close(stop)
		<-done
	}()

	ctx, cancel := context.WithCancel(context.Background())

	c, err := NewConn(base.MustParseURL("rtsp://" + ln.Addr().String() + "/test"))
	require.NoError(t, err)
	c.Context = ctx

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	// cancellation breaks the blocking read
	_, err = c.Receive(-1)
	require.Error(t, err)

	c.Close()
}

func TestSendMessages(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	done := serveOnce(t, ln, func(nconn net.Conn) {
		co := conn.NewConn(nconn)

		for i := 0; i < 2; i++ {
			req, err2 := co.ReadRequest()
			require.NoError(t, err2)
			require.Equal(t, base.Options, req.Method)
		}

		fr, err2 := co.ReadInterleavedFrame()
		require.NoError(t, err2)
		require.Equal(t, 0, fr.Channel)
	})

	u := base.MustParseURL("rtsp://" + ln.Addr().String() + "/test")
	c, err := NewConn(u)
	require.NoError(t, err)

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	defer c.Close()

	req1 := base.NewRequest(base.Options, u)
	req1.Header.Add("CSeq", "1")
	req2 := base.NewRequest(base.Options, u)
	req2.Header.Add("CSeq", "2")

	n, err := c.SendMessages([]interface{}{
		req1,
		req2,
		&base.InterleavedFrame{Channel: 0, Payload: []byte{0x01, 0x02}},
	}, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	<-done
}

func TestWriteDataAndFlush(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	done := serveOnce(t, ln, func(nconn net.Conn) {
		buf := make([]byte, 4)
		_, err2 := nconn.Read(buf)
		if err2 == nil {
			received <- buf
		}
	})

	c, err := NewConn(base.MustParseURL("rtsp://" + ln.Addr().String() + "/test"))
	require.NoError(t, err)

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	defer c.Close()

	// discarded data never reaches the peer
	_, err = c.WriteData([]byte{0xde, 0xad}, time.Second)
	require.NoError(t, err)
	err = c.Flush(true)
	require.NoError(t, err)

	_, err = c.WriteData([]byte{0x01, 0x02, 0x03, 0x04}, time.Second)
	require.NoError(t, err)
	err = c.Flush(false)
	require.NoError(t, err)

	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, <-received)
	<-done
}

func TestSendAfterDiscardFlush(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	done := serveOnce(t, ln, func(nconn net.Conn) {
		co := conn.NewConn(nconn)

		// the discarded bytes must not precede the request
		req, err2 := co.ReadRequest()
		require.NoError(t, err2)
		require.Equal(t, base.Options, req.Method)

		err2 = co.WriteResponse(base.NewResponse(base.StatusOK, "", req))
		require.NoError(t, err2)
	})

	u := base.MustParseURL("rtsp://" + ln.Addr().String() + "/test")
	c, err := NewConn(u)
	require.NoError(t, err)

	err = c.Connect(2 * time.Second)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.WriteData([]byte{0xde, 0xad}, time.Second)
	require.NoError(t, err)
	err = c.Flush(true)
	require.NoError(t, err)

	// messages sent after a discard reach the peer
	req := base.NewRequest(base.Options, u)
	req.Header.Add("CSeq", "1")
	err = c.Send(req, 2*time.Second)
	require.NoError(t, err)

	msg, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	res, ok := msg.(*base.Response)
	require.True(t, ok)
	require.Equal(t, base.StatusOK, res.StatusCode)

	<-done
}

func TestAcceptAndReadData(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	type acceptResult struct {
		c   *Conn
		err error
	}
	acceptCh := make(chan acceptResult)
	go func() {
		sc, err2 := Accept(ln)
		acceptCh <- acceptResult{sc, err2}
	}()

	nconn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer nconn.Close()

	ar := <-acceptCh
	require.NoError(t, ar.err)
	sc := ar.c
	defer sc.Close()

	require.Equal(t, "connected", sc.State().String())
	require.NotEmpty(t, sc.IP())

	_, err = nconn.Write([]byte{0x0a, 0x0b})
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := sc.ReadData(buf, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{0x0a, 0x0b}, buf)
}

func TestKeepAliveTimeout(t *testing.T) {
	c, err := NewConn(base.MustParseURL("rtsp://localhost:8554/test"))
	require.NoError(t, err)

	c.SetKeepAlivePeriod(100 * time.Millisecond)
	require.Equal(t, 100*time.Millisecond, c.NextTimeout())

	err = c.ResetTimeout()
	require.NoError(t, err)
	require.Greater(t, c.NextTimeout(), time.Duration(0))

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, time.Duration(0), c.NextTimeout())
}

func TestSetProxyValidation(t *testing.T) {
	c, err := NewConn(base.MustParseURL("rtsp://localhost:8554/test"))
	require.NoError(t, err)

	require.Error(t, c.SetProxy("", 8080))
	require.Error(t, c.SetProxy("proxy.example.com", 0))
	require.Error(t, c.SetProxy("proxy.example.com", 70000))
	require.NoError(t, c.SetProxy("proxy.example.com", 8080))
}

func TestDoTunnelValidation(t *testing.T) {
	c1, err := NewConn(base.MustParseURL("rtsp://localhost:8554/test"))
	require.NoError(t, err)
	c2, err := NewConn(base.MustParseURL("rtsp://localhost:8554/test"))
	require.NoError(t, err)

	// not tunneled
	err = c1.DoTunnel(c2)
	require.IsType(t, liberrors.ErrTunnelNotReady{}, err)

	c1.SetTunneled(true)
	c2.SetTunneled(true)

	// not connected
	err = c1.DoTunnel(c2)
	require.IsType(t, liberrors.ErrTunnelNotReady{}, err)
}

func TestDoTunnelPairing(t *testing.T) {
	getLocal, getRemote := net.Pipe()
	defer getRemote.Close()
	postLocal, postRemote := net.Pipe()
	defer postRemote.Close()

	c1, err := NewConnFromNetConn(getLocal, "127.0.0.1")
	require.NoError(t, err)
	c1.SetTunneled(true)
	c1.SetTunnelID("7acf3983a33e4bbcb66e4acb2f4a47b3")
	defer c1.Close()

	c2, err := NewConnFromNetConn(postLocal, "127.0.0.1")
	require.NoError(t, err)
	c2.SetTunneled(true)

	// the POST half must carry the same session cookie
	err = c1.DoTunnel(c2)
	require.IsType(t, liberrors.ErrTunnelNotReady{}, err)

	c2.SetTunnelID("7acf3983a33e4bbcb66e4acb2f4a47b3")
	err = c1.DoTunnel(c2)
	require.NoError(t, err)

	// the POST half handed its socket over
	require.Equal(t, "closed", c2.State().String())

	// requests arrive base64-encoded on the POST half
	go func() {
		req := base.NewRequest(base.Options, base.MustParseURL("rtsp://example.com/test"))
		req.Header.Add("CSeq", "1")
		byts, err2 := req.Marshal()
		if err2 != nil {
			return
		}
		postRemote.Write([]byte(base64.StdEncoding.EncodeToString(byts))) //nolint:errcheck
	}()

	msg, err := c1.Receive(2 * time.Second)
	require.NoError(t, err)
	req, ok := msg.(*base.Request)
	require.True(t, ok)
	require.Equal(t, base.Options, req.Method)

	// responses leave in plaintext on the GET half
	resCh := make(chan *base.Response, 1)
	go func() {
		co := conn.NewConn(getRemote)
		res, err2 := co.ReadResponse()
		if err2 != nil {
			resCh <- nil
			return
		}
		resCh <- res
	}()

	err = c1.Send(base.NewResponse(base.StatusOK, "", req), 2*time.Second)
	require.NoError(t, err)

	res := <-resCh
	require.NotNil(t, res)
	require.Equal(t, base.StatusOK, res.StatusCode)

	// a merged connection cannot be paired again
	err = c1.DoTunnel(c2)
	require.IsType(t, liberrors.ErrTunnelNotReady{}, err)
}

func TestHTTPTunnel(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)

		// GET half: server-to-client channel
		getConn, err2 := ln.Accept()
		require.NoError(t, err2)
		defer getConn.Close()

		getReq, err2 := http.ReadRequest(bufio.NewReader(getConn))
		require.NoError(t, err2)
		require.Equal(t, "GET", getReq.Method)
		require.Equal(t, "application/x-rtsp-tunnelled", getReq.Header.Get("Accept"))
		cookie := getReq.Header.Get("X-Sessioncookie")
		require.NotEmpty(t, cookie)
		require.Equal(t, "value", getReq.Header.Get("X-Custom"))

		_, err2 = getConn.Write([]byte("HTTP/1.1 200 OK\r\n" +
			"Content-Type: application/x-rtsp-tunnelled\r\n" +
			"\r\n"))
		require.NoError(t, err2)

		// POST half: client-to-server channel
		postConn, err2 := ln.Accept()
		require.NoError(t, err2)
		defer postConn.Close()

		postRead := bufio.NewReader(postConn)
		postReq, err2 := http.ReadRequest(postRead)
		require.NoError(t, err2)
		require.Equal(t, "POST", postReq.Method)
		require.Equal(t, cookie, postReq.Header.Get("X-Sessioncookie"))

		// client requests arrive base64-encoded on the POST half
		encBuf := make([]byte, 2048)
		n, err2 := postRead.Read(encBuf)
		require.NoError(t, err2)
		dec, err2 := base64.StdEncoding.DecodeString(string(encBuf[:n]))
		require.NoError(t, err2)

		var req base.Request
		err2 = req.Unmarshal(bufio.NewReader(bytes.NewBuffer(dec)))
		require.NoError(t, err2)
		require.Equal(t, base.Options, req.Method)

		// responses travel in plaintext on the GET half
		res := base.NewResponse(base.StatusOK, "", &req)
		byts, err2 := res.Marshal()
		require.NoError(t, err2)
		_, err2 = getConn.Write(byts)
		require.NoError(t, err2)
	}()

	u := base.MustParseURL("rtsp://" + ln.Addr().String() + "/test")
	c, err := NewConn(u)
	require.NoError(t, err)
	c.SetTunneled(true)
	c.AddExtraHTTPRequestHeader("X-Custom", "value")

	res, err := c.ConnectWithResponse(2 * time.Second)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, base.StatusOK, res.StatusCode)
	require.NotEmpty(t, c.TunnelID())

	req := base.NewRequest(base.Options, u)
	req.Header.Add("CSeq", "1")
	err = c.Send(req, 2*time.Second)
	require.NoError(t, err)

	msg, err := c.Receive(2 * time.Second)
	require.NoError(t, err)
	res2, ok := msg.(*base.Response)
	require.True(t, ok)
	require.Equal(t, base.StatusOK, res2.StatusCode)

	<-done
	c.Close()
}
