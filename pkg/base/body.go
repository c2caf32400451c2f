package base

import (
	"bufio"
	"io"
	"strconv"

	"github.com/avfoundry/rtspcore/pkg/liberrors"
)

// DefaultMaxContentLength is the content-length limit applied when the caller
// doesn't provide one.
const DefaultMaxContentLength = 128 * 1024

type body []byte

func (b *body) unmarshal(header Header, rb *bufio.Reader, limit uint64) error {
	cls, ok := header["Content-Length"]
	if !ok || len(cls) != 1 {
		*b = nil
		return nil
	}

	cl, err := strconv.ParseUint(cls[0], 10, 64)
	if err != nil {
		return liberrors.ErrInvalidParameter{Name: "Content-Length", Value: cls[0]}
	}

	// reject before reading the body, to avoid unbounded allocations
	// caused by a hostile peer
	if cl > limit {
		return liberrors.ErrContentLengthExceeded{Length: cl, Limit: limit}
	}

	*b = make([]byte, cl)
	n, err := io.ReadFull(rb, *b)
	if err != nil && n != len(*b) {
		return err
	}

	return nil
}

func (b body) marshalSize() int {
	return len(b)
}

func (b body) marshalTo(buf []byte) int {
	return copy(buf, b)
}
