// Package liberrors contains errors returned by the library.
package liberrors

import (
	"fmt"
)

// ErrInvalidURL is returned when a RTSP URL cannot be parsed.
type ErrInvalidURL struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e ErrInvalidURL) Error() string {
	return fmt.Sprintf("invalid URL '%s': %v", e.URL, e.Err)
}

// ErrUnsupportedScheme is returned when a URL scheme is not rtsp or rtsps.
type ErrUnsupportedScheme struct {
	Scheme string
}

// Error implements the error interface.
func (e ErrUnsupportedScheme) Error() string {
	return fmt.Sprintf("unsupported scheme '%s'", e.Scheme)
}

// ErrInvalidParameter is returned when a header or transport parameter is malformed.
type ErrInvalidParameter struct {
	Name  string
	Value string
}

// Error implements the error interface.
func (e ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter '%s' (%s)", e.Name, e.Value)
}

// ErrNotConnected is returned when an I/O operation is attempted on a
// connection that has not completed Connect.
type ErrNotConnected struct{}

// Error implements the error interface.
func (e ErrNotConnected) Error() string {
	return "connection has not been established"
}

// ErrAlreadyConnected is returned when Connect is called on a connected connection.
type ErrAlreadyConnected struct{}

// Error implements the error interface.
func (e ErrAlreadyConnected) Error() string {
	return "connection has already been established"
}

// ErrTimeout is returned when an operation exceeds its timeout budget.
// The connection remains usable and the operation can be retried.
type ErrTimeout struct {
	Op string
}

// Error implements the error interface.
func (e ErrTimeout) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

// ErrConnectionRefused is returned when the peer refuses the connection.
type ErrConnectionRefused struct {
	Err error
}

// Error implements the error interface.
func (e ErrConnectionRefused) Error() string {
	return fmt.Sprintf("connection refused: %v", e.Err)
}

// ErrConnectionClosed is returned after the peer has closed or reset the
// connection, or after an explicit Close. It is terminal.
type ErrConnectionClosed struct {
	Err error
}

// Error implements the error interface.
func (e ErrConnectionClosed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection closed: %v", e.Err)
	}
	return "connection closed"
}

// ErrProtocol is returned when malformed wire data is received.
type ErrProtocol struct {
	Err error
}

// Error implements the error interface.
func (e ErrProtocol) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

// ErrAuthenticationRequired is returned when the peer requires credentials
// that have not been configured.
type ErrAuthenticationRequired struct{}

// Error implements the error interface.
func (e ErrAuthenticationRequired) Error() string {
	return "authentication required"
}

// ErrAuthenticationFailed is returned when configured credentials cannot
// produce an Authorization header.
type ErrAuthenticationFailed struct {
	Reason string
}

// Error implements the error interface.
func (e ErrAuthenticationFailed) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// ErrTLS is returned when the TLS handshake fails.
type ErrTLS struct {
	Err error
}

// Error implements the error interface.
func (e ErrTLS) Error() string {
	return fmt.Sprintf("TLS error: %v", e.Err)
}

// ErrContentLengthExceeded is returned before reading a body whose declared
// length exceeds the configured limit.
type ErrContentLengthExceeded struct {
	Length uint64
	Limit  uint64
}

// Error implements the error interface.
func (e ErrContentLengthExceeded) Error() string {
	return fmt.Sprintf("Content-Length %d exceeds limit %d", e.Length, e.Limit)
}

// ErrUnsupported is returned when a feature is not available for the
// connection's configuration, like TLS introspection on a plaintext connection.
type ErrUnsupported struct {
	Feature string
}

// Error implements the error interface.
func (e ErrUnsupported) Error() string {
	return fmt.Sprintf("%s is not supported by this connection", e.Feature)
}

// ErrTunnelNotReady is returned when a tunnel pairing is attempted on a
// connection that is not in a state ready to be merged.
type ErrTunnelNotReady struct {
	Reason string
}

// Error implements the error interface.
func (e ErrTunnelNotReady) Error() string {
	return fmt.Sprintf("cannot pair tunnel: %s", e.Reason)
}

// ErrPartialSend is returned by SendMessages when the batch did not fully
// complete. Sent reports how many messages were confirmed sent.
type ErrPartialSend struct {
	Sent  int
	Total int
	Err   error
}

// Error implements the error interface.
func (e ErrPartialSend) Error() string {
	return fmt.Sprintf("sent %d of %d messages: %v", e.Sent, e.Total, e.Err)
}
