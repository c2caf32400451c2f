package base

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/avfoundry/rtspcore/pkg/liberrors"
)

// DefaultPort is the default port of plain RTSP.
const DefaultPort = 554

// SecureDefaultPort is the port assumed for rtsps:// URLs that don't carry an
// explicit port. Deployments disagree on this value (some use a dedicated
// RTSPS port, others keep 554 over an upgraded channel), hence it is a
// variable and not a constant.
var SecureDefaultPort = 322

// URLOption is a key/value pair of a URL query string.
type URLOption struct {
	Key   string
	Value string
}

// URL is a RTSP URL.
// This is basically an HTTP URL with some additional functions to handle
// RTSP-specific defaults.
type URL url.URL

// ParseURL parses a RTSP URL.
func ParseURL(s string) (*URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, liberrors.ErrInvalidURL{URL: s, Err: err}
	}

	if u.Scheme != "rtsp" && u.Scheme != "rtsps" {
		return nil, liberrors.ErrUnsupportedScheme{Scheme: u.Scheme}
	}

	if u.Host == "" {
		return nil, liberrors.ErrInvalidURL{URL: s, Err: fmt.Errorf("empty host")}
	}

	return (*URL)(u), nil
}

// MustParseURL is like ParseURL but panics in case of errors.
func MustParseURL(s string) *URL {
	u, err := ParseURL(s)
	if err != nil {
		panic(err)
	}
	return u
}

// String implements fmt.Stringer.
func (u *URL) String() string {
	return (*url.URL)(u).String()
}

// Clone clones a URL.
func (u *URL) Clone() *URL {
	return (*URL)(&url.URL{
		Scheme:     u.Scheme,
		Opaque:     u.Opaque,
		User:       u.User,
		Host:       u.Host,
		Path:       u.Path,
		RawPath:    u.RawPath,
		ForceQuery: u.ForceQuery,
		RawQuery:   u.RawQuery,
	})
}

// CloneWithoutCredentials clones a URL without its credentials.
func (u *URL) CloneWithoutCredentials() *URL {
	return (*URL)(&url.URL{
		Scheme:     u.Scheme,
		Opaque:     u.Opaque,
		Host:       u.Host,
		Path:       u.Path,
		RawPath:    u.RawPath,
		ForceQuery: u.ForceQuery,
		RawQuery:   u.RawQuery,
	})
}

// Hostname returns the host without any port.
func (u *URL) Hostname() string {
	return (*url.URL)(u).Hostname()
}

// Port returns the effective port, including the scheme default when the URL
// doesn't carry an explicit one.
func (u *URL) Port() int {
	if p := (*url.URL)(u).Port(); p != "" {
		v, err := strconv.ParseUint(p, 10, 16)
		if err == nil {
			return int(v)
		}
	}

	if u.Scheme == "rtsps" {
		return SecureDefaultPort
	}
	return DefaultPort
}

// Address returns the host joined with the effective port, in the form
// accepted by net.Dial.
func (u *URL) Address() string {
	return net.JoinHostPort(u.Hostname(), strconv.FormatInt(int64(u.Port()), 10))
}

// IsSecure reports whether the URL uses the rtsps scheme.
func (u *URL) IsSecure() bool {
	return u.Scheme == "rtsps"
}

// Options returns the key/value pairs of the query string, preserving their
// order. A key without '=' yields an empty value.
func (u *URL) Options() []URLOption {
	if u.RawQuery == "" {
		return nil
	}

	var opts []URLOption
	for _, pair := range strings.Split(u.RawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		opts = append(opts, URLOption{Key: key, Value: value})
	}
	return opts
}
