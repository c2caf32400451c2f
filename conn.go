package rtspcore

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/proxy"

	"github.com/avfoundry/rtspcore/pkg/base"
	"github.com/avfoundry/rtspcore/pkg/conn"
	"github.com/avfoundry/rtspcore/pkg/liberrors"
)

const (
	connWriteBufferSize    = 4096
	defaultKeepAlivePeriod = 60 * time.Second
)

type connState int

const (
	connStateCreated connState = iota
	connStateConnecting
	connStateConnected
	connStateClosed
)

// String implements fmt.Stringer.
func (s connState) String() string {
	switch s {
	case connStateCreated:
		return "created"
	case connStateConnecting:
		return "connecting"
	case connStateConnected:
		return "connected"
	case connStateClosed:
		return "closed"
	}
	return "unknown"
}

// AuthMethod is an authentication method.
type AuthMethod int

// authentication methods.
const (
	AuthBasic AuthMethod = iota
	AuthDigest
)

// ProxyType is the protocol spoken with a forward proxy.
type ProxyType int

// proxy types.
const (
	// ProxyHTTP uses HTTP CONNECT (or plain HTTP requests when tunneling).
	ProxyHTTP ProxyType = iota

	// ProxySOCKS5 uses the SOCKS5 protocol.
	ProxySOCKS5
)

// TunnelProtocol is the protocol used to tunnel RTSP through HTTP-only
// intermediaries.
type TunnelProtocol int

// tunnel protocols.
const (
	// TunnelHTTP pairs a HTTP GET and a HTTP POST request.
	TunnelHTTP TunnelProtocol = iota

	// TunnelWebSocket uses a single WebSocket connection.
	TunnelWebSocket
)

// Event is a set of readiness conditions of a connection.
type Event int

// events.
const (
	// EventRead means that data can be read without blocking.
	EventRead Event = 1 << iota

	// EventWrite means that data can be written without blocking.
	EventWrite
)

// TLSValidationFlags selects which TLS certificate checks are performed.
type TLSValidationFlags int

// TLS validation flags.
const (
	// TLSValidateCertificate verifies the certificate chain against the
	// trust database.
	TLSValidateCertificate TLSValidationFlags = 1 << iota

	// TLSValidateHostname verifies that the certificate matches the host.
	TLSValidateHostname
)

// TLSInteraction is consulted during the TLS handshake when the peer
// requests a client certificate.
type TLSInteraction interface {
	RequestCertificate(info *tls.CertificateRequestInfo) (*tls.Certificate, error)
}

// connStream routes the framing layer to the active sockets. Reads and
// writes use separate handles to support tunnel pairing.
type connStream struct {
	c *Conn
}

func (s *connStream) Read(p []byte) (int, error) {
	if s.c.tunnelReader != nil {
		return s.c.tunnelReader.Read(p)
	}
	return s.c.nconn.Read(p)
}

func (s *connStream) Write(p []byte) (int, error) {
	return s.c.wconn.Write(p)
}

// connSocketReader reads the current read socket directly, below the tunnel
// decoder.
type connSocketReader struct {
	c *Conn
}

func (r *connSocketReader) Read(p []byte) (int, error) {
	return r.c.nconn.Read(p)
}

// Conn is a RTSP control channel to a peer.
//
// A Conn is exclusively owned by its creator: Connect, Send, Receive, Close
// and the raw I/O primitives require external mutual exclusion when used from
// multiple goroutines. Configuration getters may be read concurrently, but
// setters race with any in-flight I/O operation.
type Conn struct {
	u     *base.URL
	state connState

	// Context cancels any blocking primitive when done. It must be set
	// before Connect.
	Context context.Context

	// DialContext is the function used to establish network connections.
	// It defaults to a net.Dialer.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)

	nconn net.Conn // read side
	wconn net.Conn // write side; differs from nconn after tunnel pairing
	bw    *bufio.Writer
	conn  *conn.Conn

	tlsConn *tls.Conn

	tunneled     bool
	tunnelProto  TunnelProtocol
	tunnelID     string
	tunnelReader io.Reader // set after pairing; decodes the POST half
	httpMode     bool

	proxyHost string
	proxyPort int
	proxyType ProxyType

	authMethod AuthMethod
	authSet    bool
	authUser   string
	authPass   string
	authParams map[string]string

	tlsValidationFlags TLSValidationFlags
	tlsDatabase        *x509.CertPool
	tlsInteraction     TLSInteraction

	contentLengthLimit    uint64
	rememberSessionID     bool
	session               string
	ip                    string
	extraHTTPHeaders      [][2]string
	ignoreServerReplyHost bool

	keepAlivePeriod time.Duration
	lastActivity    time.Time

	closerTerminate chan struct{}
	closerDone      chan struct{}
}

// NewConn allocates a Conn bound to a URL. No network I/O is performed.
func NewConn(u *base.URL) (*Conn, error) {
	if u == nil {
		return nil, liberrors.ErrInvalidURL{URL: "", Err: fmt.Errorf("URL not provided")}
	}

	if u.Scheme != "rtsp" && u.Scheme != "rtsps" {
		return nil, liberrors.ErrUnsupportedScheme{Scheme: u.Scheme}
	}

	return &Conn{
		u:                  u,
		state:              connStateCreated,
		Context:            context.Background(),
		tlsValidationFlags: TLSValidateCertificate | TLSValidateHostname,
		authParams:         make(map[string]string),
		contentLengthLimit: base.DefaultMaxContentLength,
		keepAlivePeriod:    defaultKeepAlivePeriod,
	}, nil
}

// NewConnFromNetConn wraps an already-established network connection, like
// one obtained from Accept. ip is the address of the peer.
func NewConnFromNetConn(nconn net.Conn, ip string) (*Conn, error) {
	u, err := base.ParseURL("rtsp://" + net.JoinHostPort(ip, "554") + "/")
	if err != nil {
		return nil, err
	}

	c, err := NewConn(u)
	if err != nil {
		return nil, err
	}

	c.ip = ip
	c.setupStreams(nconn)
	c.state = connStateConnected
	c.lastActivity = time.Now()
	return c, nil
}

// Accept waits for a connection on a listener and wraps it into a Conn.
// This is the minimal server-side primitive; request dispatching is the
// caller's responsibility.
func Accept(ln net.Listener) (*Conn, error) {
	nconn, err := ln.Accept()
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(nconn.RemoteAddr().String())
	return NewConnFromNetConn(nconn, host)
}

// URL returns the URL the connection is bound to.
func (c *Conn) URL() *base.URL {
	return c.u
}

// State returns a printable description of the connection state.
func (c *Conn) State() fmt.Stringer {
	return c.state
}

// Capabilities returns the optional features available on this connection.
func (c *Conn) Capabilities() Capability {
	caps := CapabilityExtraHTTPHeaders |
		CapabilityContentLengthLimit |
		CapabilityMessageBatching |
		CapabilityWebSocketTunnel
	if c.u.IsSecure() {
		caps |= CapabilityTLSIntrospection
	}
	return caps
}

// HasCapability reports whether a capability is available.
func (c *Conn) HasCapability(v Capability) bool {
	return (c.Capabilities() & v) == v
}

func (c *Conn) setupStreams(nconn net.Conn) {
	c.nconn = nconn
	c.wconn = nconn

	cs := &connStream{c: c}
	c.bw = bufio.NewWriterSize(cs, connWriteBufferSize)
	c.conn = conn.NewConn(struct {
		io.Reader
		io.Writer
	}{cs, c.bw})
	c.conn.SetContentLengthLimit(c.contentLengthLimit)
}

// deadline converts a timeout into an absolute deadline. Zero means
// non-blocking, negative means no deadline.
func deadline(timeout time.Duration) time.Time {
	switch {
	case timeout < 0:
		return time.Time{}
	default:
		return time.Now().Add(timeout)
	}
}

func (c *Conn) mapIOError(op string, err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return liberrors.ErrTimeout{Op: op}
	}

	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		c.state = connStateClosed
		return liberrors.ErrConnectionClosed{Err: err}
	}

	return err
}

// mapReceiveError distinguishes transport failures from malformed incoming
// data.
func (c *Conn) mapReceiveError(err error) error {
	merr := c.mapIOError("receive", err)
	switch merr.(type) {
	case liberrors.ErrTimeout, liberrors.ErrConnectionClosed:
		return merr
	}

	var lerr liberrors.ErrContentLengthExceeded
	if errors.As(err, &lerr) {
		return err
	}

	return liberrors.ErrProtocol{Err: err}
}

func mapConnectError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return liberrors.ErrTimeout{Op: "connect"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return liberrors.ErrTimeout{Op: "connect"}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return liberrors.ErrConnectionRefused{Err: err}
	}
	return err
}

func (c *Conn) dialContextFunc() func(ctx context.Context, network, address string) (net.Conn, error) {
	if c.DialContext != nil {
		return c.DialContext
	}
	return (&net.Dialer{}).DialContext
}

func (c *Conn) buildTLSConfig() *tls.Config {
	conf := &tls.Config{
		ServerName: c.u.Hostname(),
	}

	if (c.tlsValidationFlags & TLSValidateCertificate) == 0 {
		conf.InsecureSkipVerify = true
	} else if (c.tlsValidationFlags & TLSValidateHostname) == 0 {
		// verify the chain but not the host
		conf.InsecureSkipVerify = true
		conf.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			certs := make([]*x509.Certificate, len(rawCerts))
			for i, raw := range rawCerts {
				cert, err := x509.ParseCertificate(raw)
				if err != nil {
					return err
				}
				certs[i] = cert
			}

			opts := x509.VerifyOptions{
				Roots:         c.tlsDatabase,
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range certs[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := certs[0].Verify(opts)
			return err
		}
	}

	if c.tlsDatabase != nil {
		conf.RootCAs = c.tlsDatabase
	}

	if c.tlsInteraction != nil {
		conf.GetClientCertificate = c.tlsInteraction.RequestCertificate
	}

	return conf
}

// dialThroughProxy establishes a connection to the target, traversing the
// configured proxy hop when present.
func (c *Conn) dialThroughProxy(ctx context.Context, addr string) (net.Conn, error) {
	if c.proxyHost == "" {
		return c.dialContextFunc()(ctx, "tcp", addr)
	}

	proxyAddr := net.JoinHostPort(c.proxyHost, strconv.FormatInt(int64(c.proxyPort), 10))

	if c.proxyType == ProxySOCKS5 {
		d, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxyDialerAdapter{c.dialContextFunc()})
		if err != nil {
			return nil, err
		}
		return d.(proxy.ContextDialer).DialContext(ctx, "tcp", addr)
	}

	nconn, err := c.dialContextFunc()(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, err
	}

	err = httpProxyConnect(nconn, addr)
	if err != nil {
		nconn.Close()
		return nil, err
	}

	return nconn, nil
}

type proxyDialerAdapter struct {
	dialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

func (d proxyDialerAdapter) Dial(network, address string) (net.Conn, error) {
	return d.dialContext(context.Background(), network, address)
}

func (d proxyDialerAdapter) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d.dialContext(ctx, network, address)
}

// Connect performs the transport handshake within the timeout budget: TCP
// connect, optional proxy traversal, optional TLS handshake and optional
// HTTP tunnel pairing. On timeout the connection is left in a
// cleanly-closable state and can be retried.
func (c *Conn) Connect(timeout time.Duration) error {
	_, err := c.connectInner(timeout)
	return err
}

// ConnectWithResponse is like Connect but additionally returns the response
// of the tunnel handshake, when a tunnel is in use.
func (c *Conn) ConnectWithResponse(timeout time.Duration) (*base.Response, error) {
	return c.connectInner(timeout)
}

func (c *Conn) connectInner(timeout time.Duration) (*base.Response, error) {
	switch c.state {
	case connStateConnected:
		return nil, liberrors.ErrAlreadyConnected{}

	case connStateConnecting:
		return nil, liberrors.ErrAlreadyConnected{}
	}

	c.state = connStateConnecting

	ctx := c.Context
	if timeout >= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var tlsConfig *tls.Config
	if c.u.IsSecure() {
		tlsConfig = c.buildTLSConfig()
	}

	var nconn net.Conn
	var res *base.Response
	var err error

	if c.tunneled || c.httpMode {
		switch c.tunnelProto {
		case TunnelWebSocket:
			nconn, err = newConnTunnelWebSocket(ctx, c, tlsConfig)

		default:
			nconn, res, err = newConnTunnelHTTP(ctx, c, tlsConfig)
		}
		if err != nil {
			c.state = connStateCreated
			return nil, mapConnectError(err)
		}
	} else {
		nconn, err = c.dialThroughProxy(ctx, c.u.Address())
		if err != nil {
			c.state = connStateCreated
			return nil, mapConnectError(err)
		}

		if tlsConfig != nil {
			tconn := tls.Client(nconn, tlsConfig)
			err = tconn.HandshakeContext(ctx)
			if err != nil {
				nconn.Close()
				c.state = connStateCreated
				if errors.Is(err, context.DeadlineExceeded) {
					return nil, liberrors.ErrTimeout{Op: "connect"}
				}
				return nil, liberrors.ErrTLS{Err: err}
			}
			c.tlsConn = tconn
			nconn = tconn
		}
	}

	c.setupStreams(nconn)

	if host, _, err2 := net.SplitHostPort(nconn.RemoteAddr().String()); err2 == nil {
		c.ip = host
	}

	c.state = connStateConnected
	c.lastActivity = time.Now()

	c.closerStart()

	return res, nil
}

// closerStart spawns a goroutine that breaks blocking I/O when the
// connection's context is canceled.
func (c *Conn) closerStart() {
	c.closerTerminate = make(chan struct{})
	c.closerDone = make(chan struct{})

	go func(terminate chan struct{}, done chan struct{}, nconn net.Conn, wconn net.Conn) {
		defer close(done)

		select {
		case <-c.Context.Done():
			nconn.Close()
			if wconn != nconn {
				wconn.Close()
			}
		case <-terminate:
		}
	}(c.closerTerminate, c.closerDone, c.nconn, c.wconn)
}

func (c *Conn) closerStop() {
	if c.closerTerminate != nil {
		close(c.closerTerminate)
		<-c.closerDone
		c.closerTerminate = nil
	}
}

// Close closes the connection. Closing a never-connected connection returns
// an error that callers must tolerate. After Close, a new Connect is
// accepted.
func (c *Conn) Close() error {
	if c.state == connStateCreated {
		return liberrors.ErrNotConnected{}
	}

	if c.state == connStateClosed && c.nconn == nil {
		return liberrors.ErrConnectionClosed{}
	}

	c.closerStop()

	err := c.nconn.Close()
	if c.wconn != nil && c.wconn != c.nconn {
		c.wconn.Close()
	}

	c.nconn = nil
	c.wconn = nil
	c.conn = nil
	c.bw = nil
	c.tlsConn = nil
	c.tunnelReader = nil
	c.state = connStateClosed

	return err
}

func (c *Conn) checkConnected() error {
	switch c.state {
	case connStateConnected:
		return nil

	case connStateClosed:
		return liberrors.ErrConnectionClosed{}
	}
	return liberrors.ErrNotConnected{}
}

func (c *Conn) prepareRequest(req *base.Request) {
	if req.Header == nil {
		req.Header = make(base.Header)
	}

	if c.rememberSessionID && c.session != "" {
		if _, ok := req.Header.Get("Session"); !ok {
			req.Header.Add("Session", c.session)
		}
	}

	if c.authSet {
		if _, ok := req.Header.Get("Authorization"); !ok {
			if v, ok2 := c.authorizationHeader(req.Method, req.URL); ok2 {
				req.Header["Authorization"] = v
			}
		}
	}
}

// Send serializes one message over the active stream. Requests are completed
// with the configured Authorization header and the remembered session ID.
// msg must be a *base.Request, a *base.Response or a *base.InterleavedFrame.
func (c *Conn) Send(msg interface{}, timeout time.Duration) error {
	err := c.checkConnected()
	if err != nil {
		return err
	}

	c.wconn.SetWriteDeadline(deadline(timeout)) //nolint:errcheck

	switch m := msg.(type) {
	case *base.Request:
		c.prepareRequest(m)
		err = c.conn.WriteRequest(m)

	case *base.Response:
		err = c.conn.WriteResponse(m)

	case *base.InterleavedFrame:
		buf := make([]byte, m.MarshalSize())
		err = c.conn.WriteInterleavedFrame(m, buf)

	default:
		return liberrors.ErrUnsupported{Feature: fmt.Sprintf("sending %T", msg)}
	}

	if err == nil {
		err = c.bw.Flush()
	}
	if err != nil {
		return c.mapIOError("send", err)
	}

	c.lastActivity = time.Now()
	return nil
}

// SendMessages performs a best-effort ordered send of a batch of messages
// sharing one timeout budget. On failure, the returned count reports how
// many messages were confirmed sent.
func (c *Conn) SendMessages(msgs []interface{}, timeout time.Duration) (int, error) {
	err := c.checkConnected()
	if err != nil {
		return 0, err
	}

	dl := deadline(timeout)

	for i, msg := range msgs {
		c.wconn.SetWriteDeadline(dl) //nolint:errcheck

		var werr error
		switch m := msg.(type) {
		case *base.Request:
			c.prepareRequest(m)
			werr = c.conn.WriteRequest(m)

		case *base.Response:
			werr = c.conn.WriteResponse(m)

		case *base.InterleavedFrame:
			buf := make([]byte, m.MarshalSize())
			werr = c.conn.WriteInterleavedFrame(m, buf)

		default:
			werr = liberrors.ErrUnsupported{Feature: fmt.Sprintf("sending %T", msg)}
		}

		if werr == nil {
			werr = c.bw.Flush()
		}
		if werr != nil {
			return i, liberrors.ErrPartialSend{
				Sent:  i,
				Total: len(msgs),
				Err:   c.mapIOError("send", werr),
			}
		}
	}

	c.lastActivity = time.Now()
	return len(msgs), nil
}

func (c *Conn) rememberSession(res *base.Response) {
	if !c.rememberSessionID {
		return
	}

	if v, ok := res.Header.Get("Session"); ok {
		id, _, _ := strings.Cut(v, ";")
		c.session = strings.TrimSpace(id)
	}
}

// Receive reads one message from the active stream. It returns a
// *base.Request, a *base.Response or a *base.InterleavedFrame.
//
// A 401 response automatically fills the authentication parameter bag from
// the WWW-Authenticate challenge; re-issuing the request is the caller's
// responsibility.
func (c *Conn) Receive(timeout time.Duration) (interface{}, error) {
	err := c.checkConnected()
	if err != nil {
		return nil, err
	}

	c.nconn.SetReadDeadline(deadline(timeout)) //nolint:errcheck

	msg, err := c.conn.Read()
	if err != nil {
		return nil, c.mapReceiveError(err)
	}

	if res, ok := msg.(*base.Response); ok {
		c.rememberSession(res)

		if res.StatusCode == base.StatusUnauthorized {
			c.fillAuthParams(res.Header.Values("WWW-Authenticate"))
		}
	}

	c.lastActivity = time.Now()
	return msg, nil
}

// ReadData reads raw bytes from below the message framing, for protocols
// that multiplex media bytes on the control stream.
func (c *Conn) ReadData(buf []byte, timeout time.Duration) (int, error) {
	err := c.checkConnected()
	if err != nil {
		return 0, err
	}

	c.nconn.SetReadDeadline(deadline(timeout)) //nolint:errcheck

	n, err := c.conn.BufferedReader().Read(buf)
	if err != nil {
		return n, c.mapIOError("read", err)
	}

	c.lastActivity = time.Now()
	return n, nil
}

// WriteData writes raw bytes below the message framing. Data is buffered;
// call Flush to drain it.
func (c *Conn) WriteData(buf []byte, timeout time.Duration) (int, error) {
	err := c.checkConnected()
	if err != nil {
		return 0, err
	}

	c.wconn.SetWriteDeadline(deadline(timeout)) //nolint:errcheck

	n, err := c.bw.Write(buf)
	if err != nil {
		return n, c.mapIOError("write", err)
	}

	return n, nil
}

// Flush drains pending writes. When discard is true, buffered-but-unsent
// data is dropped instead.
func (c *Conn) Flush(discard bool) error {
	err := c.checkConnected()
	if err != nil {
		return err
	}

	if discard {
		// Reset drops the buffered bytes while keeping the same writer,
		// which the framing layer holds a reference to
		c.bw.Reset(&connStream{c: c})
		return nil
	}

	err = c.bw.Flush()
	if err != nil {
		return c.mapIOError("flush", err)
	}
	return nil
}

// Poll waits until one of the requested readiness conditions holds, or the
// timeout expires. A zero timeout returns immediately.
func (c *Conn) Poll(events Event, timeout time.Duration) (Event, error) {
	err := c.checkConnected()
	if err != nil {
		return 0, err
	}

	var revents Event

	if (events & EventWrite) != 0 {
		// a connected stream is writable unless its send buffer is full;
		// blocking is bounded by the write deadline of the next write
		revents |= EventWrite
	}

	if (events & EventRead) != 0 {
		br := c.conn.BufferedReader()
		if br.Buffered() > 0 {
			revents |= EventRead
		} else {
			c.nconn.SetReadDeadline(deadline(timeout)) //nolint:errcheck
			_, perr := br.Peek(1)
			switch {
			case perr == nil:
				revents |= EventRead

			default:
				perr = c.mapIOError("poll", perr)
				if _, isTimeout := perr.(liberrors.ErrTimeout); !isTimeout {
					return 0, perr
				}
			}
		}
	}

	if revents == 0 {
		return 0, liberrors.ErrTimeout{Op: "poll"}
	}
	return revents, nil
}

// SetKeepAlivePeriod sets the RTSP-level keep-alive period used by
// NextTimeout.
func (c *Conn) SetKeepAlivePeriod(v time.Duration) {
	c.keepAlivePeriod = v
}

// NextTimeout returns the time remaining before the session keep-alive
// deadline expires. A caller can use it to schedule a session-refresh loop
// without busy-waiting.
func (c *Conn) NextTimeout() time.Duration {
	if c.lastActivity.IsZero() {
		return c.keepAlivePeriod
	}

	remaining := c.keepAlivePeriod - time.Since(c.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetTimeout restarts the keep-alive countdown.
func (c *Conn) ResetTimeout() error {
	c.lastActivity = time.Now()
	return nil
}

// SetProxy configures a forward proxy hop used during Connect.
func (c *Conn) SetProxy(host string, port int) error {
	if host == "" || port <= 0 || port > 65535 {
		return liberrors.ErrInvalidParameter{Name: "proxy", Value: fmt.Sprintf("%s:%d", host, port)}
	}

	c.proxyHost = host
	c.proxyPort = port
	return nil
}

// SetProxyType selects the protocol spoken with the proxy.
func (c *Conn) SetProxyType(v ProxyType) {
	c.proxyType = v
}

// SetHTTPMode enables manual HTTP message support. When enabled, Connect
// performs the HTTP handshake and incoming bodies are bounded by the
// content-length limit.
func (c *Conn) SetHTTPMode(v bool) {
	c.httpMode = v
}

// SetTunneled enables RTSP-over-HTTP tunneling. Must be called before
// Connect.
func (c *Conn) SetTunneled(v bool) {
	c.tunneled = v
}

// IsTunneled reports whether the connection tunnels RTSP through HTTP.
func (c *Conn) IsTunneled() bool {
	return c.tunneled
}

// SetTunnelProtocol selects the tunneling protocol used during Connect.
func (c *Conn) SetTunnelProtocol(v TunnelProtocol) {
	c.tunnelProto = v
}

// TunnelID returns the correlation token shared by the two halves of a HTTP
// tunnel. It is empty until Connect or SetTunnelID, and an empty value
// counts as not-paired.
func (c *Conn) TunnelID() string {
	return c.tunnelID
}

// SetTunnelID assigns the correlation token of a tunnel half. On the client
// side the token is generated during Connect; on the server side the caller
// extracts it from the X-Sessioncookie header of the HTTP request and
// assigns it here before DoTunnel.
func (c *Conn) SetTunnelID(id string) {
	c.tunnelID = id
}

// DoTunnel merges c2, the POST half of a HTTP tunnel, into c, the GET half,
// producing one logical duplex connection. Both connections must be
// tunneled, connected and not already paired, and must share the same tunnel
// ID. After the merge, reads come from the POST half through a base64
// decoder, while writes keep flowing to the GET half in plaintext.
func (c *Conn) DoTunnel(c2 *Conn) error {
	if !c.tunneled || !c2.tunneled {
		return liberrors.ErrTunnelNotReady{Reason: "both connections must be tunneled"}
	}

	if c.state != connStateConnected || c2.state != connStateConnected {
		return liberrors.ErrTunnelNotReady{Reason: "both connections must be connected"}
	}

	// an empty tunnel ID counts as a non-paired state
	if c.tunnelID == "" || c2.tunnelID == "" {
		return liberrors.ErrTunnelNotReady{Reason: "tunnel ID not negotiated"}
	}

	if c.tunnelID != c2.tunnelID {
		return liberrors.ErrTunnelNotReady{Reason: "tunnel IDs do not match"}
	}

	if c.wconn != c.nconn || c.tunnelReader != nil {
		return liberrors.ErrTunnelNotReady{Reason: "connection is already paired"}
	}

	// the read side moves to the POST half, whose payload is base64-encoded
	c.nconn = c2.nconn
	c.tunnelReader = base64.NewDecoder(base64.StdEncoding, &connSocketReader{c: c})

	// c2 hands its socket over and becomes defunct
	c2.closerStop()
	c2.nconn = nil
	c2.wconn = nil
	c2.conn = nil
	c2.bw = nil
	c2.state = connStateClosed

	return nil
}

// SetRememberSessionID makes the connection remember the session ID of
// incoming responses and attach it to outgoing requests that lack one.
func (c *Conn) SetRememberSessionID(v bool) {
	c.rememberSessionID = v
}

// RememberedSessionID returns the session ID remembered from responses.
func (c *Conn) RememberedSessionID() string {
	return c.session
}

// SetContentLengthLimit bounds the length of incoming message bodies.
// Messages declaring a bigger body are rejected before the body is read.
func (c *Conn) SetContentLengthLimit(v uint64) {
	c.contentLengthLimit = v
	if c.conn != nil {
		c.conn.SetContentLengthLimit(v)
	}
}

// AddExtraHTTPRequestHeader attaches a header to the HTTP requests of the
// tunnel handshake.
func (c *Conn) AddExtraHTTPRequestHeader(key string, value string) {
	c.extraHTTPHeaders = append(c.extraHTTPHeaders, [2]string{key, value})
}

// SetIgnoreServerReplyHost makes the tunnel handshake ignore the host
// advertised by the server in its reply, keeping the original address for
// the second tunnel half.
func (c *Conn) SetIgnoreServerReplyHost(v bool) {
	c.ignoreServerReplyHost = v
}

// SetIP overrides the remote IP address reported by IP.
func (c *Conn) SetIP(ip string) {
	c.ip = ip
}

// IP returns the remote IP address. It is empty until Connect, unless set
// with SetIP.
func (c *Conn) IP() string {
	return c.ip
}

// SetQOSDSCP sets the differentiated-services code point of outgoing
// packets.
func (c *Conn) SetQOSDSCP(dscp int) error {
	err := c.checkConnected()
	if err != nil {
		return err
	}

	return ipv4.NewConn(c.nconn).SetTOS(dscp << 2)
}

// SetTLSValidationFlags selects the certificate checks performed during the
// TLS handshake. It takes effect on the next Connect.
func (c *Conn) SetTLSValidationFlags(flags TLSValidationFlags) bool {
	if c.state == connStateConnected {
		return false
	}
	c.tlsValidationFlags = flags
	return true
}

// TLSValidationFlags returns the configured certificate checks.
func (c *Conn) TLSValidationFlags() TLSValidationFlags {
	return c.tlsValidationFlags
}

// SetTLSDatabase sets the trust database used to verify the peer
// certificate. It takes effect on the next Connect.
func (c *Conn) SetTLSDatabase(pool *x509.CertPool) {
	c.tlsDatabase = pool
}

// TLSDatabase returns the configured trust database.
func (c *Conn) TLSDatabase() *x509.CertPool {
	return c.tlsDatabase
}

// SetTLSInteraction sets the handler consulted when the peer requests a
// client certificate. It takes effect on the next Connect.
func (c *Conn) SetTLSInteraction(v TLSInteraction) {
	c.tlsInteraction = v
}

// TLS returns the state of the secure channel. It fails with an Unsupported
// error on plaintext connections.
func (c *Conn) TLS() (tls.ConnectionState, error) {
	if c.tlsConn == nil {
		return tls.ConnectionState{}, liberrors.ErrUnsupported{Feature: "TLS introspection"}
	}
	return c.tlsConn.ConnectionState(), nil
}
