package base

import (
	"bufio"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	headerMaxEntryCount  = 255
	headerMaxKeyLength   = 512
	headerMaxValueLength = 2048
)

func headerKeyNormalize(in string) string {
	switch strings.ToLower(in) {
	case "rtp-info":
		return "RTP-Info"

	case "www-authenticate":
		return "WWW-Authenticate"

	case "cseq":
		return "CSeq"
	}
	return http.CanonicalHeaderKey(in)
}

// HeaderValue is an header value.
type HeaderValue []string

// Header is a RTSP header, present in both Requests and Responses.
// Repeated fields are legal; values of a same field keep their insertion
// order.
type Header map[string]HeaderValue

// Add appends a value to a field, without replacing existing ones.
func (h Header) Add(key string, val string) {
	key = headerKeyNormalize(key)
	h[key] = append(h[key], val)
}

// Get returns the first value of a field. The second return value
// distinguishes a missing field from a field with an empty value.
func (h Header) Get(key string) (string, bool) {
	vals, ok := h[headerKeyNormalize(key)]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// GetIndex returns the i-th value of a field.
func (h Header) GetIndex(key string, i int) (string, bool) {
	vals, ok := h[headerKeyNormalize(key)]
	if !ok || i < 0 || i >= len(vals) {
		return "", false
	}
	return vals[i], true
}

// Values returns all the values of a field in insertion order.
func (h Header) Values(key string) HeaderValue {
	return h[headerKeyNormalize(key)]
}

// Remove removes all the values of a field.
func (h Header) Remove(key string) {
	delete(h, headerKeyNormalize(key))
}

func (h *Header) unmarshal(rb *bufio.Reader) error {
	*h = make(Header)

	for {
		byt, err := rb.ReadByte()
		if err != nil {
			return err
		}

		if byt == '\r' {
			err = consumeByte(rb, '\n')
			if err != nil {
				return err
			}

			break
		}

		if len(*h) >= headerMaxEntryCount {
			return fmt.Errorf("headers count exceeds %d", headerMaxEntryCount)
		}

		key := string([]byte{byt})
		byts, err := readUpTo(rb, ':', headerMaxKeyLength-1)
		if err != nil {
			return err
		}
		key += string(byts[:len(byts)-1])
		key = headerKeyNormalize(key)

		// https://tools.ietf.org/html/rfc2616
		// The field value MAY be preceded by any amount of spaces
		for {
			byt, err = rb.ReadByte()
			if err != nil {
				return err
			}

			if byt != ' ' {
				break
			}
		}
		rb.UnreadByte() //nolint:errcheck

		byts, err = readUpTo(rb, '\r', headerMaxValueLength)
		if err != nil {
			return err
		}
		val := string(byts[:len(byts)-1])

		err = consumeByte(rb, '\n')
		if err != nil {
			return err
		}

		(*h)[key] = append((*h)[key], val)
	}

	return nil
}

func (h Header) marshalSize() int {
	n := 0
	for key, vals := range h {
		for _, val := range vals {
			n += len(key + ": " + val + "\r\n")
		}
	}
	n += 2
	return n
}

func (h Header) marshalTo(buf []byte) int {
	// sort headers by key
	// in order to obtain deterministic results
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pos := 0
	for _, key := range keys {
		for _, val := range h[key] {
			pos += copy(buf[pos:], key+": "+val+"\r\n")
		}
	}
	pos += copy(buf[pos:], "\r\n")
	return pos
}
