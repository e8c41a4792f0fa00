package peer

import (
	"context"
	"errors"
	"fmt"
)

// ErrIdentityTaken reports that an identity is already registered with the
// transport. Callers treat it as the host/join race signal: open failed, so
// the identity owner is the host and this side should join instead.
var ErrIdentityTaken = errors.New("identity already taken")

// TrackKind discriminates media track types.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Validate checks track kind membership.
func (k TrackKind) Validate() error {
	switch k {
	case TrackAudio, TrackVideo:
		return nil
	default:
		return fmt.Errorf("unsupported track kind %q", k)
	}
}

// Track is one enableable media track within a stream.
type Track interface {
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// MediaStream groups the audio and video tracks of one participant.
type MediaStream interface {
	ID() string
	AudioTrack() Track
	VideoTrack() Track
	Stop()
}

// DeviceSource acquires the local camera+microphone stream. Acquisition may
// fail when permission is denied or no device exists.
type DeviceSource interface {
	AcquireStream(ctx context.Context) (MediaStream, error)
}

// DataConn is the auxiliary byte/message channel between two endpoints,
// distinct from the media call.
type DataConn interface {
	RemoteIdentity() string
	Open() bool
	Send(payload []byte) error
	SetReceiver(fn func(payload []byte))
	SetCloseHandler(fn func())
	Close() error
}

// MediaCall is one bidirectional media leg between two endpoints. Inbound
// calls must be answered with a local stream before media flows.
type MediaCall interface {
	RemoteIdentity() string
	Answer(local MediaStream) error
	SetRemoteStreamHandler(fn func(stream MediaStream))
	SetCloseHandler(fn func())
	Close() error
}

// InboundHandler receives unsolicited inbound connections at an endpoint.
// Handlers decide acceptance; rejected connections are closed without media.
type InboundHandler interface {
	HandleDataConn(conn DataConn)
	HandleCall(call MediaCall)
}

// Endpoint is one opened local address, reachable under a caller-chosen
// identity until closed.
type Endpoint interface {
	Identity() string
	SetInboundHandler(h InboundHandler)
	DialData(ctx context.Context, remote string) (DataConn, error)
	Call(ctx context.Context, remote string, local MediaStream) (MediaCall, error)
	Close() error
}

// Transport allocates endpoints from string identities and routes data and
// media connections between them. Wire mechanics (ICE/SDP, codecs) live
// behind this boundary.
type Transport interface {
	Open(ctx context.Context, identity string) (Endpoint, error)
}
