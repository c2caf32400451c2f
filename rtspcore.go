/*
Package rtspcore implements the client-side control plane of the Real Time
Streaming Protocol (RTSP, RFC 2326): connection establishment,
request/response framing, transport-parameter negotiation and
authentication/tunneling configuration.

The data plane (RTP/RTCP) and the session state machine (PLAY/PAUSE/TEARDOWN
sequencing) are out of scope; this package provides the primitives that such
layers call.
*/
package rtspcore

import (
	"sync"
)

var initOnce sync.Once

// Init performs the process-wide initialization of the library. It is
// idempotent and safe to call from tests and embedding applications any
// number of times. Calling it is optional; every entry point works without
// it.
func Init() {
	initOnce.Do(func() {})
}

// Capability identifies an optional feature of a connection. Callers check
// capabilities with Conn.HasCapability before using an advanced feature.
type Capability int

// capabilities.
const (
	// CapabilityTLSIntrospection indicates that TLS() returns the underlying
	// TLS state. Available on rtsps connections only.
	CapabilityTLSIntrospection Capability = 1 << iota

	// CapabilityExtraHTTPHeaders indicates that extra headers can be attached
	// to the HTTP tunnel handshake.
	CapabilityExtraHTTPHeaders

	// CapabilityContentLengthLimit indicates that incoming message bodies can
	// be bounded.
	CapabilityContentLengthLimit

	// CapabilityMessageBatching indicates that SendMessages is available.
	CapabilityMessageBatching

	// CapabilityWebSocketTunnel indicates that the WebSocket tunnel protocol
	// is available.
	CapabilityWebSocketTunnel
)
