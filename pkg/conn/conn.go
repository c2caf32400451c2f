// Package conn contains a RTSP message framing implementation.
package conn

import (
	"bufio"
	"io"

	"github.com/avfoundry/rtspcore/pkg/base"
)

const (
	readBufferSize = 4096
)

// Conn frames RTSP messages over a byte stream.
type Conn struct {
	w  io.Writer
	br *bufio.Reader

	// limit applied to incoming message bodies
	contentLengthLimit uint64

	// reuse interleaved frames. they should never be passed to secondary routines
	fr base.InterleavedFrame
}

// NewConn allocates a Conn.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		w:                  rw,
		br:                 bufio.NewReaderSize(rw, readBufferSize),
		contentLengthLimit: base.DefaultMaxContentLength,
	}
}

// SetContentLengthLimit sets the maximum accepted length of incoming message
// bodies. Messages declaring a bigger body are rejected before the body is
// read.
func (c *Conn) SetContentLengthLimit(v uint64) {
	c.contentLengthLimit = v
}

// ContentLengthLimit returns the maximum accepted length of incoming message
// bodies.
func (c *Conn) ContentLengthLimit() uint64 {
	return c.contentLengthLimit
}

// BufferedReader returns the connection's buffered reader.
func (c *Conn) BufferedReader() *bufio.Reader {
	return c.br
}

// Read reads a Request, a Response or an Interleaved frame.
func (c *Conn) Read() (interface{}, error) {
	byts, err := c.br.Peek(2)
	if err != nil {
		return nil, err
	}

	if byts[0] == base.InterleavedFrameMagicByte {
		return c.ReadInterleavedFrame()
	}

	if byts[0] == 'R' && byts[1] == 'T' {
		return c.ReadResponse()
	}

	return c.ReadRequest()
}

// ReadRequest reads a Request.
func (c *Conn) ReadRequest() (*base.Request, error) {
	var req base.Request
	err := req.UnmarshalLimited(c.br, c.contentLengthLimit)
	return &req, err
}

// ReadResponse reads a Response.
func (c *Conn) ReadResponse() (*base.Response, error) {
	var res base.Response
	err := res.UnmarshalLimited(c.br, c.contentLengthLimit)
	return &res, err
}

// ReadInterleavedFrame reads an InterleavedFrame.
func (c *Conn) ReadInterleavedFrame() (*base.InterleavedFrame, error) {
	err := c.fr.Unmarshal(c.br)
	return &c.fr, err
}

// WriteRequest writes a Request.
func (c *Conn) WriteRequest(req *base.Request) error {
	buf, _ := req.Marshal()
	_, err := c.w.Write(buf)
	return err
}

// WriteResponse writes a Response.
func (c *Conn) WriteResponse(res *base.Response) error {
	buf, _ := res.Marshal()
	_, err := c.w.Write(buf)
	return err
}

// WriteInterleavedFrame writes an InterleavedFrame.
func (c *Conn) WriteInterleavedFrame(fr *base.InterleavedFrame, buf []byte) error {
	n, _ := fr.MarshalTo(buf)
	_, err := c.w.Write(buf[:n])
	return err
}
