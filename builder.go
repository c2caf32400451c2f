package rtspcore

import (
	"crypto/x509"
	"time"

	"github.com/avfoundry/rtspcore/pkg/base"
	"github.com/avfoundry/rtspcore/pkg/headers"
	"github.com/avfoundry/rtspcore/pkg/liberrors"
)

// defaultConnectTimeout is applied by BuildAndConnect when no timeout has
// been set.
const defaultConnectTimeout = 20 * time.Second

// ConnBuilder accumulates connection configuration and creates a Conn on
// Build. No I/O happens before Build or BuildAndConnect. The zero value is
// not usable; start from NewConnBuilder.
type ConnBuilder struct {
	u              *base.URL
	proxyHost      string
	proxyPort      int
	proxySet       bool
	proxyType      ProxyType
	authMethod     AuthMethod
	authUser       string
	authPass       string
	authFilled     bool
	tunneled       bool
	httpMode       bool
	tunnelProto    TunnelProtocol
	tlsFlags       *TLSValidationFlags
	tlsDatabase    *x509.CertPool
	tlsInteraction TLSInteraction
	timeout        time.Duration
	timeoutSet     bool
}

// NewConnBuilder creates a ConnBuilder bound to the given URL.
func NewConnBuilder(u *base.URL) *ConnBuilder {
	return &ConnBuilder{u: u}
}

// Proxy sets the proxy server.
func (b *ConnBuilder) Proxy(host string, port int) *ConnBuilder {
	b.proxyHost = host
	b.proxyPort = port
	b.proxySet = true
	return b
}

// ProxyType sets the proxy protocol.
func (b *ConnBuilder) ProxyType(v ProxyType) *ConnBuilder {
	b.proxyType = v
	return b
}

// Auth sets the authentication method and credentials.
func (b *ConnBuilder) Auth(method AuthMethod, user string, pass string) *ConnBuilder {
	b.authMethod = method
	b.authUser = user
	b.authPass = pass
	b.authFilled = true
	return b
}

// Tunneled enables or disables HTTP tunneling.
func (b *ConnBuilder) Tunneled(v bool) *ConnBuilder {
	b.tunneled = v
	return b
}

// HTTPMode enables or disables HTTP mode.
func (b *ConnBuilder) HTTPMode(v bool) *ConnBuilder {
	b.httpMode = v
	return b
}

// TunnelProtocol selects the tunneling transport.
func (b *ConnBuilder) TunnelProtocol(v TunnelProtocol) *ConnBuilder {
	b.tunnelProto = v
	return b
}

// TLSValidationFlags sets the certificate checks performed during the
// handshake of a rtsps connection.
func (b *ConnBuilder) TLSValidationFlags(flags TLSValidationFlags) *ConnBuilder {
	b.tlsFlags = &flags
	return b
}

// TLSDatabase sets the certificate pool used to verify the peer.
func (b *ConnBuilder) TLSDatabase(pool *x509.CertPool) *ConnBuilder {
	b.tlsDatabase = pool
	return b
}

// TLSInteraction sets the callback that provides a client certificate when
// the server requests one.
func (b *ConnBuilder) TLSInteraction(v TLSInteraction) *ConnBuilder {
	b.tlsInteraction = v
	return b
}

// Timeout sets the connect timeout used by BuildAndConnect.
func (b *ConnBuilder) Timeout(v time.Duration) *ConnBuilder {
	b.timeout = v
	b.timeoutSet = true
	return b
}

// Build creates the Conn and applies the accumulated configuration without
// connecting. An authentication method set with an empty user is rejected
// here.
func (b *ConnBuilder) Build() (*Conn, error) {
	c, err := NewConn(b.u)
	if err != nil {
		return nil, err
	}

	if b.proxySet {
		err = c.SetProxy(b.proxyHost, b.proxyPort)
		if err != nil {
			return nil, err
		}
		c.SetProxyType(b.proxyType)
	}

	if b.authFilled {
		err = c.SetAuth(b.authMethod, b.authUser, b.authPass)
		if err != nil {
			return nil, err
		}
	}

	c.SetTunneled(b.tunneled)
	c.SetHTTPMode(b.httpMode)
	c.SetTunnelProtocol(b.tunnelProto)

	if b.tlsFlags != nil {
		if !c.SetTLSValidationFlags(*b.tlsFlags) {
			return nil, liberrors.ErrInvalidParameter{Name: "tls-validation-flags", Value: ""}
		}
	}
	if b.tlsDatabase != nil {
		c.SetTLSDatabase(b.tlsDatabase)
	}
	if b.tlsInteraction != nil {
		c.SetTLSInteraction(b.tlsInteraction)
	}

	return c, nil
}

// BuildAndConnect builds the Conn and performs the transport handshake.
func (b *ConnBuilder) BuildAndConnect() (*Conn, error) {
	timeout := defaultConnectTimeout
	if b.timeoutSet {
		timeout = b.timeout
	}

	c, err := b.Build()
	if err != nil {
		return nil, err
	}

	err = c.Connect(timeout)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// TransportBuilder accumulates fields of a Transport header. The zero value
// is not usable; start from NewTransportBuilder.
type TransportBuilder struct {
	t *headers.Transport
}

// NewTransportBuilder creates a TransportBuilder with all fields at their
// unset defaults.
func NewTransportBuilder() *TransportBuilder {
	return &TransportBuilder{t: headers.NewTransport()}
}

// Mode sets the transport mode.
func (b *TransportBuilder) Mode(v headers.TransportMode) *TransportBuilder {
	b.t.Mode = v
	return b
}

// Profile sets the transport profile.
func (b *TransportBuilder) Profile(v headers.TransportProfile) *TransportBuilder {
	b.t.Profile = v
	return b
}

// LowerTransport sets the lower transport.
func (b *TransportBuilder) LowerTransport(v headers.LowerTransport) *TransportBuilder {
	b.t.LowerTransport = v
	return b
}

// Destination sets the destination address.
func (b *TransportBuilder) Destination(v string) *TransportBuilder {
	b.t.Destination = &v
	return b
}

// Source sets the source address.
func (b *TransportBuilder) Source(v string) *TransportBuilder {
	b.t.Source = &v
	return b
}

// PlayRecord sets both directions at once.
func (b *TransportBuilder) PlayRecord(play bool, record bool) *TransportBuilder {
	b.t.ModePlay = play
	b.t.ModeRecord = record
	return b
}

// ClientPorts sets the client port range.
func (b *TransportBuilder) ClientPorts(min int, max int) *TransportBuilder {
	b.t.ClientPort = headers.RangeInt{Min: min, Max: max}
	return b
}

// ServerPorts sets the server port range.
func (b *TransportBuilder) ServerPorts(min int, max int) *TransportBuilder {
	b.t.ServerPort = headers.RangeInt{Min: min, Max: max}
	return b
}

// Interleaved sets the interleaved channel range.
func (b *TransportBuilder) Interleaved(min int, max int) *TransportBuilder {
	b.t.Interleaved = headers.RangeInt{Min: min, Max: max}
	return b
}

// Ports sets the multicast port range.
func (b *TransportBuilder) Ports(min int, max int) *TransportBuilder {
	b.t.Port = headers.RangeInt{Min: min, Max: max}
	return b
}

// TTL sets the multicast time-to-live.
func (b *TransportBuilder) TTL(v uint) *TransportBuilder {
	b.t.TTL = v
	return b
}

// SSRC sets the synchronization source identifier.
func (b *TransportBuilder) SSRC(v uint32) *TransportBuilder {
	b.t.SSRC = v
	return b
}

// Layers sets the number of multicast layers.
func (b *TransportBuilder) Layers(v uint) *TransportBuilder {
	b.t.Layers = v
	return b
}

// Append enables append mode for RECORD.
func (b *TransportBuilder) Append(v bool) *TransportBuilder {
	b.t.Append = v
	return b
}

// Build returns the accumulated Transport. The builder must not be reused
// afterwards.
func (b *TransportBuilder) Build() *headers.Transport {
	return b.t
}
