// Package headers contains the RTSP header models.
package headers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avfoundry/rtspcore/pkg/base"
	"github.com/avfoundry/rtspcore/pkg/liberrors"
)

// TransportMode is the protocol of a transport specification.
// It is an open enumeration: unrecognized wire tokens are carried as-is
// and round-trip through Marshal.
type TransportMode string

// transport modes.
const (
	// TransportModeUnknown is the unset value of a new Transport.
	TransportModeUnknown TransportMode = ""

	// TransportModeRTP is the standard RTP transport.
	TransportModeRTP TransportMode = "RTP"

	// TransportModeRDT is the RealMedia RDT transport.
	TransportModeRDT TransportMode = "x-real-rdt"
)

// TransportProfile is the profile of a transport specification.
type TransportProfile string

// transport profiles.
const (
	TransportProfileUnknown TransportProfile = ""
	TransportProfileAVP     TransportProfile = "AVP"
	TransportProfileAVPF    TransportProfile = "AVPF"
	TransportProfileSAVP    TransportProfile = "SAVP"
	TransportProfileSAVPF   TransportProfile = "SAVPF"
)

// LowerTransport is the packet delivery mechanism of a transport
// specification.
type LowerTransport string

// lower transports.
const (
	// LowerTransportUnknown is the unset value of a new Transport.
	LowerTransportUnknown LowerTransport = ""

	// LowerTransportUDP is UDP unicast.
	LowerTransportUDP LowerTransport = "UDP"

	// LowerTransportUDPMulticast is UDP multicast.
	LowerTransportUDPMulticast LowerTransport = "UDP-multicast"

	// LowerTransportTCP is TCP, with media interleaved in the control stream.
	LowerTransportTCP LowerTransport = "TCP"
)

// RangeInt is a closed integer interval, used for port pairs, interleaved
// channel pairs and multicast port pairs. The unset sentinel is (-1, -1).
type RangeInt struct {
	Min int
	Max int
}

func (r RangeInt) isSet() bool {
	return r.Min >= 0
}

func (r RangeInt) marshal() string {
	if r.Max < 0 {
		return strconv.FormatInt(int64(r.Min), 10)
	}
	return strconv.FormatInt(int64(r.Min), 10) + "-" + strconv.FormatInt(int64(r.Max), 10)
}

// a single value means min = max
func parseRange(val string) (RangeInt, error) {
	minStr, maxStr, found := strings.Cut(val, "-")

	minV, err := strconv.ParseInt(minStr, 10, 32)
	if err != nil {
		return RangeInt{-1, -1}, liberrors.ErrInvalidParameter{Name: "range", Value: val}
	}

	if !found {
		return RangeInt{int(minV), int(minV)}, nil
	}

	maxV, err := strconv.ParseInt(maxStr, 10, 32)
	if err != nil {
		return RangeInt{-1, -1}, liberrors.ErrInvalidParameter{Name: "range", Value: val}
	}

	return RangeInt{int(minV), int(maxV)}, nil
}

// Transport is a transport specification, the value of a Transport header.
type Transport struct {
	// protocol
	Mode TransportMode

	// profile
	Profile TransportProfile

	// lower transport
	LowerTransport LowerTransport

	// (optional) destination address
	Destination *string

	// (optional) source address
	Source *string

	// number of layers
	Layers uint

	// play mode
	ModePlay bool

	// record mode
	ModeRecord bool

	// append mode
	Append bool

	// interleaved channel pair
	Interleaved RangeInt

	// multicast TTL
	TTL uint

	// multicast port pair
	Port RangeInt

	// client port pair
	ClientPort RangeInt

	// server port pair
	ServerPort RangeInt

	// synchronization source
	SSRC uint32
}

// NewTransport allocates a Transport with every enumeration unset and every
// range at the unset sentinel.
func NewTransport() *Transport {
	return &Transport{
		Interleaved: RangeInt{-1, -1},
		Port:        RangeInt{-1, -1},
		ClientPort:  RangeInt{-1, -1},
		ServerPort:  RangeInt{-1, -1},
	}
}

// Clone returns a deep copy of the Transport. The Destination and Source
// strings are copied, never aliased.
func (h *Transport) Clone() *Transport {
	c := *h

	if h.Destination != nil {
		v := *h.Destination
		c.Destination = &v
	}
	if h.Source != nil {
		v := *h.Source
		c.Source = &v
	}

	return &c
}

func (h *Transport) unmarshalSpec(spec string) error {
	parts := strings.Split(spec, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return liberrors.ErrInvalidParameter{Name: "transport-spec", Value: spec}
	}

	switch parts[0] {
	case "RTP":
		h.Mode = TransportModeRTP

		// both tokens identify RDT; x-pn-tng is the older one
	case "x-real-rdt", "x-pn-tng":
		h.Mode = TransportModeRDT

	default:
		h.Mode = TransportMode(parts[0])
	}

	switch parts[1] {
	case "AVP":
		h.Profile = TransportProfileAVP
	case "AVPF":
		h.Profile = TransportProfileAVPF
	case "SAVP":
		h.Profile = TransportProfileSAVP
	case "SAVPF":
		h.Profile = TransportProfileSAVPF
	default:
		h.Profile = TransportProfile(parts[1])
	}

	if len(parts) >= 3 {
		switch parts[2] {
		case "UDP":
			h.LowerTransport = LowerTransportUDP
		case "TCP":
			h.LowerTransport = LowerTransportTCP
		default:
			h.LowerTransport = LowerTransport(parts[2])
		}
	}

	return nil
}

func (h *Transport) unmarshalParameter(p string) error {
	key, val, hasVal := strings.Cut(p, "=")

	switch key {
	case "unicast":
		if h.LowerTransport != LowerTransportTCP {
			h.LowerTransport = LowerTransportUDP
		}

	case "multicast":
		if h.LowerTransport != LowerTransportTCP {
			h.LowerTransport = LowerTransportUDPMulticast
		}

	case "append":
		h.Append = true

	case "interleaved":
		r, err := parseRange(val)
		if err != nil {
			return err
		}
		h.Interleaved = r

	case "port":
		r, err := parseRange(val)
		if err != nil {
			return err
		}
		h.Port = r

	case "client_port":
		r, err := parseRange(val)
		if err != nil {
			return err
		}
		h.ClientPort = r

	case "server_port":
		r, err := parseRange(val)
		if err != nil {
			return err
		}
		h.ServerPort = r

	case "ttl":
		v, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return liberrors.ErrInvalidParameter{Name: "ttl", Value: val}
		}
		h.TTL = uint(v)

	case "layers":
		v, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return liberrors.ErrInvalidParameter{Name: "layers", Value: val}
		}
		h.Layers = uint(v)

	case "ssrc":
		// conventionally hexadecimal; plain decimal digits parse the
		// same way
		v, err := strconv.ParseUint(val, 16, 32)
		if err != nil {
			return liberrors.ErrInvalidParameter{Name: "ssrc", Value: val}
		}
		h.SSRC = uint32(v)

	case "destination":
		h.Destination = &val

	case "source":
		h.Source = &val

	case "mode":
		str := strings.ToLower(val)
		str = strings.TrimPrefix(str, "\"")
		str = strings.TrimSuffix(str, "\"")

		for _, m := range strings.Split(str, ",") {
			switch strings.TrimSpace(m) {
			case "play":
				h.ModePlay = true

				// receive is an old alias for record, used by ffmpeg with the
				// -listen flag, and by Darwin Streaming Server
			case "record", "receive":
				h.ModeRecord = true

			default:
				return liberrors.ErrInvalidParameter{Name: "mode", Value: val}
			}
		}

	default:
		// ignore non-standard parameters
		_ = hasVal
	}

	return nil
}

// Unmarshal decodes a Transport header.
func (h *Transport) Unmarshal(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	*h = *NewTransport()

	parts := strings.Split(v[0], ";")

	err := h.unmarshalSpec(parts[0])
	if err != nil {
		return err
	}

	for _, p := range parts[1:] {
		if p == "" {
			continue
		}

		err = h.unmarshalParameter(p)
		if err != nil {
			return err
		}
	}

	return nil
}

// Marshal encodes a Transport header.
//
// Marshal is the formal inverse of Unmarshal for every field that is set:
// only non-default values are emitted, in a stable order. The format is lossy
// for some unset-vs-zero distinctions (a TTL of zero or a default profile is
// indistinguishable from an absent one), which is a property of the wire
// grammar, not of this implementation.
func (h Transport) Marshal() base.HeaderValue {
	var rets []string

	spec := string(h.Mode)
	if spec == "" {
		spec = string(TransportModeRTP)
	}
	if h.Profile != TransportProfileUnknown {
		spec += "/" + string(h.Profile)
	} else {
		spec += "/" + string(TransportProfileAVP)
	}
	switch h.LowerTransport {
	case LowerTransportUDP, LowerTransportUDPMulticast, LowerTransportUnknown:

	default:
		spec += "/" + string(h.LowerTransport)
	}
	rets = append(rets, spec)

	switch h.LowerTransport {
	case LowerTransportUDP:
		rets = append(rets, "unicast")

	case LowerTransportUDPMulticast:
		rets = append(rets, "multicast")
	}

	if h.Interleaved.isSet() {
		rets = append(rets, "interleaved="+h.Interleaved.marshal())
	}

	if h.Port.isSet() {
		rets = append(rets, "port="+h.Port.marshal())
	}

	if h.ClientPort.isSet() {
		rets = append(rets, "client_port="+h.ClientPort.marshal())
	}

	if h.ServerPort.isSet() {
		rets = append(rets, "server_port="+h.ServerPort.marshal())
	}

	if h.TTL > 0 {
		rets = append(rets, "ttl="+strconv.FormatUint(uint64(h.TTL), 10))
	}

	if h.Layers > 0 {
		rets = append(rets, "layers="+strconv.FormatUint(uint64(h.Layers), 10))
	}

	if h.SSRC != 0 {
		rets = append(rets, fmt.Sprintf("ssrc=%08X", h.SSRC))
	}

	if h.Append {
		rets = append(rets, "append")
	}

	if h.Destination != nil {
		rets = append(rets, "destination="+*h.Destination)
	}

	if h.Source != nil {
		rets = append(rets, "source="+*h.Source)
	}

	if h.ModePlay || h.ModeRecord {
		var modes []string
		if h.ModePlay {
			modes = append(modes, "PLAY")
		}
		if h.ModeRecord {
			modes = append(modes, "RECORD")
		}
		rets = append(rets, "mode=\""+strings.Join(modes, ",")+"\"")
	}

	return base.HeaderValue{strings.Join(rets, ";")}
}

// String implements fmt.Stringer.
func (h Transport) String() string {
	return h.Marshal()[0]
}

// Manager returns the name of the stream-handling component associated with
// a transport mode. option selects among alternative managers; the second
// return value is false when the mode has no established manager.
func Manager(mode TransportMode, option uint) (string, bool) {
	if option > 0 {
		return "", false
	}

	switch mode {
	case TransportModeRTP:
		return "rtpbin", true

	case TransportModeRDT:
		return "rdtmanager", true
	}
	return "", false
}

// MediaType returns the content type of the media packets of a transport.
// The second return value is false when the mode has no established
// content type.
func MediaType(mode TransportMode, profile TransportProfile) (string, bool) {
	switch mode {
	case TransportModeRTP:
		switch profile {
		case TransportProfileSAVP, TransportProfileSAVPF:
			return "application/x-srtp", true
		}
		return "application/x-rtp", true

	case TransportModeRDT:
		return "application/x-rdt", true
	}
	return "", false
}
