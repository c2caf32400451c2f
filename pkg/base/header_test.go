package base

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderKeyNormalization(t *testing.T) {
	h := make(Header)
	h.Add("cseq", "1")
	h.Add("CONTENT-length", "20")
	h.Add("www-authenticate", `Basic realm="live"`)
	h.Add("rtp-INFO", "url=rtsp://localhost/test")

	v, ok := h.Get("CSeq")
	require.True(t, ok)
	require.Equal(t, "1", v)

	v, ok = h.Get("Content-Length")
	require.True(t, ok)
	require.Equal(t, "20", v)

	_, ok = h["WWW-Authenticate"]
	require.True(t, ok)

	_, ok = h["RTP-Info"]
	require.True(t, ok)
}

func TestHeaderMultipleValues(t *testing.T) {
	h := make(Header)
	h.Add("WWW-Authenticate", `Digest realm="live", nonce="abc"`)
	h.Add("WWW-Authenticate", `Basic realm="live"`)

	require.Equal(t, HeaderValue{
		`Digest realm="live", nonce="abc"`,
		`Basic realm="live"`,
	}, h.Values("WWW-Authenticate"))

	v, ok := h.GetIndex("WWW-Authenticate", 1)
	require.True(t, ok)
	require.Equal(t, `Basic realm="live"`, v)

	_, ok = h.GetIndex("WWW-Authenticate", 2)
	require.False(t, ok)

	h.Remove("WWW-Authenticate")
	require.Nil(t, h.Values("WWW-Authenticate"))
}

func TestHeaderGetAbsentVsEmpty(t *testing.T) {
	h := make(Header)
	h.Add("Require", "")

	v, ok := h.Get("Require")
	require.True(t, ok)
	require.Equal(t, "", v)

	_, ok = h.Get("Proxy-Require")
	require.False(t, ok)
}

func TestHeaderUnmarshal(t *testing.T) {
	byts := []byte("CSeq: 1\r\n" +
		"Session: 12345678\r\n" +
		"Empty:\r\n" +
		"Spaced:    value\r\n" +
		"\r\n")

	var h Header
	err := h.unmarshal(bufio.NewReader(bytes.NewBuffer(byts)))
	require.NoError(t, err)
	require.Equal(t, Header{
		"CSeq":    HeaderValue{"1"},
		"Session": HeaderValue{"12345678"},
		"Empty":   HeaderValue{""},
		"Spaced":  HeaderValue{"value"},
	}, h)
}

func TestHeaderUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		byts []byte
	}{
		{
			"empty",
			[]byte{},
		},
		{
			"missing value",
			[]byte("Testing: val\r"),
		},
		{
			"too many entries",
			func() []byte {
				var buf bytes.Buffer
				for i := 0; i < 300; i++ {
					buf.WriteString("Key" + strconv.FormatInt(int64(i), 10) + ": val\r\n")
				}
				buf.WriteString("\r\n")
				return buf.Bytes()
			}(),
		},
		{
			"key too long",
			[]byte("K" + strings.Repeat("a", 1024) + ": val\r\n\r\n"),
		},
		{
			"value too long",
			[]byte("Key: " + strings.Repeat("a", 4096) + "\r\n\r\n"),
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var h Header
			err := h.unmarshal(bufio.NewReader(bytes.NewBuffer(ca.byts)))
			require.Error(t, err)
		})
	}
}

func TestHeaderMarshalDeterministic(t *testing.T) {
	h := Header{
		"Session":        HeaderValue{"12345678"},
		"CSeq":           HeaderValue{"2"},
		"Content-Length": HeaderValue{"4"},
	}

	buf := make([]byte, h.marshalSize())
	n := h.marshalTo(buf)
	require.Equal(t, len(buf), n)
	require.Equal(t,
		"CSeq: 2\r\n"+
			"Content-Length: 4\r\n"+
			"Session: 12345678\r\n"+
			"\r\n",
		string(buf))
}
