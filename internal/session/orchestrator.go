package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/tiger/caption-call/api/peer"
	"github.com/tiger/caption-call/internal/session/endpointfsm"
	"github.com/tiger/caption-call/internal/session/identity"
	"github.com/tiger/caption-call/internal/telemetry"
)

// MediaState is the observable local media snapshot. The two flags are
// independent: toggling one never touches the other.
type MediaState struct {
	AudioEnabled bool
	VideoEnabled bool
	Stream       peer.MediaStream
}

// Config wires the orchestrator's external collaborators.
type Config struct {
	Transport peer.Transport
	Devices   peer.DeviceSource
	Telemetry telemetry.Emitter
}

// Orchestrator owns the local identity, the peer endpoint, local/remote
// media, the auxiliary data channel, and the two-participant invariant.
type Orchestrator struct {
	cfg    Config
	events *Events

	mu             sync.Mutex
	fsm            *endpointfsm.FSM
	identityStr    string
	endpoint       peer.Endpoint
	localStream    peer.MediaStream
	remoteStream   peer.MediaStream
	audioEnabled   bool
	videoEnabled   bool
	remoteIdentity string
	dataConn       peer.DataConn
	mediaCall      peer.MediaCall
}

// New constructs an orchestrator over a peer transport and device source.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.Devices == nil {
		return nil, fmt.Errorf("device source is required")
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.DefaultEmitter()
	}
	return &Orchestrator{
		cfg:    cfg,
		events: NewEvents(),
		fsm:    endpointfsm.New(),
	}, nil
}

// Events returns the orchestrator's typed event surface.
func (o *Orchestrator) Events() *Events {
	return o.events
}

// Identity returns the local endpoint identity, empty before creation.
func (o *Orchestrator) Identity() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.identityStr
}

// RemoteIdentity returns the paired remote identity, empty while unpaired.
func (o *Orchestrator) RemoteIdentity() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remoteIdentity
}

// ParticipantCount returns the guarded participant count in {0, 1, 2}.
func (o *Orchestrator) ParticipantCount() int {
	return o.fsm.ParticipantCount()
}

// MediaState returns the current local media snapshot.
func (o *Orchestrator) MediaState() MediaState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return MediaState{AudioEnabled: o.audioEnabled, VideoEnabled: o.videoEnabled, Stream: o.localStream}
}

// RemoteStream returns the paired remote media stream, nil while unpaired.
func (o *Orchestrator) RemoteStream() peer.MediaStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remoteStream
}

// CreateSession opens the local endpoint. An empty id generates a fresh
// identity; a caller-supplied id reproduces the shared-link flow where both
// ends race for the same address. Open failure surfaces as *EndpointError;
// identity collisions are detectable via EndpointError.IdentityTaken.
func (o *Orchestrator) CreateSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = identity.New()
	}
	if err := identity.Validate(id); err != nil {
		return "", &EndpointError{Identity: id, Err: err}
	}
	if err := o.openEndpoint(ctx, id); err != nil {
		return "", err
	}
	o.events.emitSessionCreated(id)
	return id, nil
}

// JoinSession opens a fresh local endpoint, acquires local media, then opens
// the data channel to the remote identity and places the media call. Both
// must succeed; either failure surfaces as *ConnectionError. Media
// acquisition failure surfaces as *MediaAccessError.
func (o *Orchestrator) JoinSession(ctx context.Context, remote string) error {
	if err := identity.Validate(remote); err != nil {
		return &ConnectionError{Remote: remote, Err: err}
	}
	local := identity.New()
	if err := o.openEndpoint(ctx, local); err != nil {
		return err
	}
	o.events.emitSessionCreated(local)

	stream, err := o.LocalStream(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	endpoint := o.endpoint
	o.mu.Unlock()

	conn, err := endpoint.DialData(ctx, remote)
	if err != nil {
		return &ConnectionError{Remote: remote, Err: err}
	}
	call, err := endpoint.Call(ctx, remote, stream)
	if err != nil {
		_ = conn.Close()
		return &ConnectionError{Remote: remote, Err: err}
	}

	o.mu.Lock()
	if err := o.fsm.AdmitRemote(); err != nil {
		o.mu.Unlock()
		_ = conn.Close()
		_ = call.Close()
		return &ConnectionError{Remote: remote, Err: err}
	}
	o.remoteIdentity = remote
	o.dataConn = conn
	o.mediaCall = call
	o.mu.Unlock()

	o.wireDataConn(conn, remote)
	o.wireCall(call, remote)
	if !conn.Open() {
		// Remote closed immediately: a full session rejecting the attempt.
		o.handlePeerGone(remote)
		return &ConnectionError{Remote: remote, Err: fmt.Errorf("data channel closed by remote")}
	}
	o.emitTelemetry("session.joined", telemetry.SeverityInfo, "joined remote session", remote)
	o.events.emitConnected(remote)
	return nil
}

// LocalStream lazily acquires camera+microphone. Idempotent: a second call
// returns the previously acquired stream without re-prompting.
func (o *Orchestrator) LocalStream(ctx context.Context) (peer.MediaStream, error) {
	o.mu.Lock()
	if o.localStream != nil {
		existing := o.localStream
		o.mu.Unlock()
		return existing, nil
	}
	devices := o.cfg.Devices
	o.mu.Unlock()

	stream, err := devices.AcquireStream(ctx)
	if err != nil {
		return nil, &MediaAccessError{Err: err}
	}

	o.mu.Lock()
	if o.localStream != nil {
		existing := o.localStream
		o.mu.Unlock()
		stream.Stop()
		return existing, nil
	}
	o.localStream = stream
	o.audioEnabled = stream.AudioTrack().Enabled()
	o.videoEnabled = stream.VideoTrack().Enabled()
	o.mu.Unlock()
	return stream, nil
}

// ToggleAudio sets only the audio track's enabled flag. No-op without a
// local stream.
func (o *Orchestrator) ToggleAudio(enabled bool) {
	o.mu.Lock()
	if o.localStream == nil {
		o.mu.Unlock()
		o.emitTelemetry("media.toggle_audio", telemetry.SeverityDebug, "toggle before stream acquisition ignored", "")
		return
	}
	o.localStream.AudioTrack().SetEnabled(enabled)
	o.audioEnabled = enabled
	o.mu.Unlock()
	o.events.emitAudioToggled(enabled)
}

// ToggleVideo sets only the video track's enabled flag. No-op without a
// local stream.
func (o *Orchestrator) ToggleVideo(enabled bool) {
	o.mu.Lock()
	if o.localStream == nil {
		o.mu.Unlock()
		o.emitTelemetry("media.toggle_video", telemetry.SeverityDebug, "toggle before stream acquisition ignored", "")
		return
	}
	o.localStream.VideoTrack().SetEnabled(enabled)
	o.videoEnabled = enabled
	o.mu.Unlock()
	o.events.emitVideoToggled(enabled)
}

// SendData sends one payload over the data channel, best effort. Payloads
// are silently dropped while the channel is not open.
func (o *Orchestrator) SendData(payload []byte) {
	o.mu.Lock()
	conn := o.dataConn
	o.mu.Unlock()
	if conn == nil || !conn.Open() {
		o.emitTelemetry("data.send", telemetry.SeverityDebug, "data channel not open, payload dropped", "")
		return
	}
	if err := conn.Send(payload); err != nil {
		o.emitTelemetry("data.send", telemetry.SeverityWarn, fmt.Sprintf("data send failed: %v", err), "")
	}
}

// Disconnect tears everything down: local tracks, data channel, media call,
// endpoint. Participant count resets to 0 and media state to defaults. Safe
// to call repeatedly and from a partially-initialized state.
func (o *Orchestrator) Disconnect() {
	o.mu.Lock()
	wasActive := o.endpoint != nil || o.localStream != nil
	local := o.localStream
	conn := o.dataConn
	call := o.mediaCall
	endpoint := o.endpoint
	o.localStream = nil
	o.remoteStream = nil
	o.dataConn = nil
	o.mediaCall = nil
	o.endpoint = nil
	o.remoteIdentity = ""
	o.audioEnabled = false
	o.videoEnabled = false
	o.fsm.Close()
	o.mu.Unlock()

	if local != nil {
		local.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if call != nil {
		_ = call.Close()
	}
	if endpoint != nil {
		_ = endpoint.Close()
	}
	if wasActive {
		o.events.emitDisconnected()
	}
}

// HandleDataConn applies the inbound-connection policy to an unsolicited
// data connection.
func (o *Orchestrator) HandleDataConn(conn peer.DataConn) {
	remote := conn.RemoteIdentity()
	o.mu.Lock()
	ok, isNew := o.admitLocked(remote)
	if !ok {
		o.mu.Unlock()
		_ = conn.Close()
		o.emitTelemetry("inbound.data", telemetry.SeverityInfo, "inbound data connection rejected at capacity", remote)
		return
	}
	o.dataConn = conn
	o.mu.Unlock()

	o.wireDataConn(conn, remote)
	if isNew {
		o.events.emitConnected(remote)
	}
}

// HandleCall applies the inbound-connection policy to an unsolicited media
// call, lazily acquiring local media before answering.
func (o *Orchestrator) HandleCall(call peer.MediaCall) {
	remote := call.RemoteIdentity()
	o.mu.Lock()
	ok, isNew := o.admitLocked(remote)
	if !ok {
		o.mu.Unlock()
		_ = call.Close()
		o.emitTelemetry("inbound.call", telemetry.SeverityInfo, "inbound call rejected at capacity", remote)
		return
	}
	o.mediaCall = call
	o.mu.Unlock()

	o.wireCall(call, remote)

	stream, err := o.LocalStream(context.Background())
	if err != nil {
		o.emitTelemetry("inbound.call", telemetry.SeverityError, fmt.Sprintf("media acquisition for inbound call failed: %v", err), remote)
		_ = call.Close()
		return
	}
	if err := call.Answer(stream); err != nil {
		o.emitTelemetry("inbound.call", telemetry.SeverityError, fmt.Sprintf("answer failed: %v", err), remote)
		_ = call.Close()
		return
	}
	if isNew {
		o.events.emitConnected(remote)
	}
}

func (o *Orchestrator) openEndpoint(ctx context.Context, id string) error {
	o.mu.Lock()
	if o.fsm.State() == endpointfsm.StateClosed {
		o.fsm = endpointfsm.New()
	}
	if err := o.fsm.BeginOpen(); err != nil {
		o.mu.Unlock()
		return &EndpointError{Identity: id, Err: err}
	}
	transport := o.cfg.Transport
	o.mu.Unlock()

	endpoint, err := transport.Open(ctx, id)

	o.mu.Lock()
	if err != nil {
		_ = o.fsm.FailOpen()
		o.mu.Unlock()
		return &EndpointError{Identity: id, Err: err}
	}
	o.endpoint = endpoint
	o.identityStr = id
	if err := o.fsm.ConfirmOpen(); err != nil {
		o.mu.Unlock()
		_ = endpoint.Close()
		return &EndpointError{Identity: id, Err: err}
	}
	o.mu.Unlock()

	endpoint.SetInboundHandler(o)
	o.emitTelemetry("endpoint.open", telemetry.SeverityInfo, "local endpoint open", "")
	return nil
}

// admitLocked funnels every pairing attempt through the capacity guard.
// Returns (accepted, firstLegOfPairing). A second leg from the already
// paired remote is accepted without a state transition.
func (o *Orchestrator) admitLocked(remote string) (bool, bool) {
	if o.fsm.State() == endpointfsm.StatePaired {
		return remote != "" && remote == o.remoteIdentity, false
	}
	if err := o.fsm.AdmitRemote(); err != nil {
		return false, false
	}
	o.remoteIdentity = remote
	return true, true
}

func (o *Orchestrator) wireDataConn(conn peer.DataConn, remote string) {
	conn.SetReceiver(func(payload []byte) {
		o.events.emitData(payload)
	})
	conn.SetCloseHandler(func() {
		o.handlePeerGone(remote)
	})
}

func (o *Orchestrator) wireCall(call peer.MediaCall, remote string) {
	call.SetRemoteStreamHandler(func(stream peer.MediaStream) {
		o.mu.Lock()
		if o.remoteIdentity != remote {
			o.mu.Unlock()
			return
		}
		o.remoteStream = stream
		o.mu.Unlock()
		o.events.emitRemoteStream(stream)
	})
	call.SetCloseHandler(func() {
		o.handlePeerGone(remote)
	})
}

// handlePeerGone reverts Paired -> Open when the paired remote departs. The
// endpoint remains usable for a new inbound pairing under the same identity.
func (o *Orchestrator) handlePeerGone(remote string) {
	o.mu.Lock()
	if o.remoteIdentity != remote {
		o.mu.Unlock()
		return
	}
	if err := o.fsm.RemoteDeparted(); err != nil {
		o.mu.Unlock()
		return
	}
	conn := o.dataConn
	call := o.mediaCall
	o.remoteIdentity = ""
	o.remoteStream = nil
	o.dataConn = nil
	o.mediaCall = nil
	o.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if call != nil {
		_ = call.Close()
	}
	o.emitTelemetry("peer.departed", telemetry.SeverityInfo, "remote peer departed", remote)
	o.events.emitPeerDisconnected()
}

func (o *Orchestrator) emitTelemetry(name, severity, msg, remote string) {
	o.mu.Lock()
	correlation := telemetry.Correlation{SessionID: o.identityStr, PeerID: remote, Component: "session"}
	o.mu.Unlock()
	o.cfg.Telemetry.EmitLog(name, severity, msg, nil, correlation)
}
