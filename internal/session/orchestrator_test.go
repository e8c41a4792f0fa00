package session

import (
	"context"
	"errors"
	"testing"

	"github.com/tiger/caption-call/api/peer"
	"github.com/tiger/caption-call/transports/memory"
)

func newOrchestrator(t *testing.T, transport *memory.Transport) *Orchestrator {
	t.Helper()
	orchestrator, err := New(Config{Transport: transport, Devices: memory.NewDeviceSource()})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orchestrator
}

func TestCreateSessionGeneratesDistinctIdentities(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	seen := make(map[string]struct{}, 20)
	for i := 0; i < 20; i++ {
		orchestrator := newOrchestrator(t, transport)
		id, err := orchestrator.CreateSession(context.Background(), "")
		if err != nil {
			t.Fatalf("create session %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identity %q", id)
		}
		seen[id] = struct{}{}
		if orchestrator.ParticipantCount() != 1 {
			t.Fatalf("expected count 1 after create, got %d", orchestrator.ParticipantCount())
		}
	}
}

func TestCreateSessionCollisionSignalsIdentityTaken(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	host := newOrchestrator(t, transport)
	id, err := host.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("host create: %v", err)
	}

	guest := newOrchestrator(t, transport)
	_, err = guest.CreateSession(context.Background(), id)
	var endpointErr *EndpointError
	if !errors.As(err, &endpointErr) {
		t.Fatalf("expected EndpointError, got %v", err)
	}
	if !endpointErr.IdentityTaken() {
		t.Fatalf("expected identity-taken collision, got %v", endpointErr)
	}
	if guest.ParticipantCount() != 0 {
		t.Fatalf("failed create must leave count 0, got %d", guest.ParticipantCount())
	}
}

func TestJoinSessionPairsBothEnds(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	host := newOrchestrator(t, transport)
	id, err := host.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("host create: %v", err)
	}

	hostConnected := ""
	host.Events().OnConnected(func(remote string) { hostConnected = remote })
	var hostRemoteStream peer.MediaStream
	host.Events().OnRemoteStream(func(s peer.MediaStream) { hostRemoteStream = s })

	guest := newOrchestrator(t, transport)
	if err := guest.JoinSession(context.Background(), id); err != nil {
		t.Fatalf("join: %v", err)
	}

	if host.ParticipantCount() != 2 || guest.ParticipantCount() != 2 {
		t.Fatalf("expected both sides paired, got host=%d guest=%d", host.ParticipantCount(), guest.ParticipantCount())
	}
	if hostConnected != guest.Identity() {
		t.Fatalf("host connected event carried %q, want %q", hostConnected, guest.Identity())
	}
	if hostRemoteStream == nil {
		t.Fatalf("host never received the guest stream")
	}
	if guest.RemoteStream() == nil {
		t.Fatalf("guest never received the host stream")
	}
}

func TestThirdInboundConnectionRejectedWithoutMutation(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	host := newOrchestrator(t, transport)
	id, err := host.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("host create: %v", err)
	}
	guest := newOrchestrator(t, transport)
	if err := guest.JoinSession(context.Background(), id); err != nil {
		t.Fatalf("first join: %v", err)
	}

	before := host.ParticipantCount()
	intruder := newOrchestrator(t, transport)
	err = intruder.JoinSession(context.Background(), id)
	var connErr *ConnectionError
	if err == nil {
		// The data conn may pair transiently, but the host must not admit
		// the third participant.
		t.Logf("join returned nil; verifying host state is unchanged")
	} else if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if host.ParticipantCount() != before {
		t.Fatalf("third attempt mutated count: before=%d after=%d", before, host.ParticipantCount())
	}
	if host.RemoteIdentity() != guest.Identity() {
		t.Fatalf("host pairing changed to %q", host.RemoteIdentity())
	}
}

func TestToggleIndependenceAndNoStreamNoop(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	orchestrator := newOrchestrator(t, transport)

	// Before any stream exists toggles are no-ops.
	orchestrator.ToggleAudio(false)
	state := orchestrator.MediaState()
	if state.Stream != nil || state.AudioEnabled || state.VideoEnabled {
		t.Fatalf("toggle before stream mutated state: %+v", state)
	}

	if _, err := orchestrator.LocalStream(context.Background()); err != nil {
		t.Fatalf("local stream: %v", err)
	}
	state = orchestrator.MediaState()
	if !state.AudioEnabled || !state.VideoEnabled {
		t.Fatalf("expected both tracks enabled after acquisition: %+v", state)
	}

	audioEvents := 0
	videoEvents := 0
	orchestrator.Events().OnAudioToggled(func(bool) { audioEvents++ })
	orchestrator.Events().OnVideoToggled(func(bool) { videoEvents++ })

	orchestrator.ToggleAudio(false)
	state = orchestrator.MediaState()
	if state.AudioEnabled || !state.VideoEnabled {
		t.Fatalf("audio toggle touched video: %+v", state)
	}
	orchestrator.ToggleVideo(false)
	state = orchestrator.MediaState()
	if state.AudioEnabled || state.VideoEnabled {
		t.Fatalf("expected both disabled: %+v", state)
	}
	if audioEvents != 1 || videoEvents != 1 {
		t.Fatalf("expected one event per toggle, got audio=%d video=%d", audioEvents, videoEvents)
	}
}

func TestLocalStreamIdempotentAndMediaAccessError(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	devices := memory.NewDeviceSource()
	orchestrator, err := New(Config{Transport: transport, Devices: devices})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	first, err := orchestrator.LocalStream(context.Background())
	if err != nil {
		t.Fatalf("first acquisition: %v", err)
	}
	second, err := orchestrator.LocalStream(context.Background())
	if err != nil {
		t.Fatalf("second acquisition: %v", err)
	}
	if first != second {
		t.Fatalf("expected idempotent acquisition")
	}
	if devices.Acquisitions() != 1 {
		t.Fatalf("expected a single device prompt, got %d", devices.Acquisitions())
	}

	denied := &memory.DeviceSource{FailWith: errors.New("NotAllowedError")}
	deniedOrch, err := New(Config{Transport: transport, Devices: denied})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	_, err = deniedOrch.LocalStream(context.Background())
	var mediaErr *MediaAccessError
	if !errors.As(err, &mediaErr) {
		t.Fatalf("expected MediaAccessError, got %v", err)
	}
}

func TestDisconnectResetsStateAndSignalsPeer(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	host := newOrchestrator(t, transport)
	id, err := host.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("host create: %v", err)
	}
	guest := newOrchestrator(t, transport)
	if err := guest.JoinSession(context.Background(), id); err != nil {
		t.Fatalf("join: %v", err)
	}

	hostPeerGone := 0
	host.Events().OnPeerDisconnected(func() { hostPeerGone++ })
	guestDisconnected := 0
	guest.Events().OnDisconnected(func() { guestDisconnected++ })

	guest.Disconnect()

	if guest.ParticipantCount() != 0 {
		t.Fatalf("guest count not reset: %d", guest.ParticipantCount())
	}
	if state := guest.MediaState(); state.Stream != nil || state.AudioEnabled || state.VideoEnabled {
		t.Fatalf("guest media state not reset: %+v", state)
	}
	if guestDisconnected != 1 {
		t.Fatalf("expected one disconnected event, got %d", guestDisconnected)
	}

	// Host reverts to a joinable single-participant session.
	if host.ParticipantCount() != 1 {
		t.Fatalf("host count after peer departure: %d", host.ParticipantCount())
	}
	if hostPeerGone == 0 {
		t.Fatalf("host never observed peer departure")
	}
	if host.RemoteStream() != nil {
		t.Fatalf("host remote stream not cleared")
	}

	// Disconnect is idempotent and safe from partial states.
	guest.Disconnect()
	newOrchestrator(t, transport).Disconnect()

	// The host identity remains usable for a new pairing.
	rejoiner := newOrchestrator(t, transport)
	if err := rejoiner.JoinSession(context.Background(), id); err != nil {
		t.Fatalf("rejoin after departure: %v", err)
	}
	if host.ParticipantCount() != 2 {
		t.Fatalf("host did not re-pair: %d", host.ParticipantCount())
	}
}

func TestSendDataBestEffortWhenChannelClosed(t *testing.T) {
	t.Parallel()

	transport := memory.NewTransport()
	orchestrator := newOrchestrator(t, transport)
	// No pairing yet: send must be a silent drop, not a panic or error.
	orchestrator.SendData([]byte("early"))

	host := newOrchestrator(t, transport)
	id, err := host.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := orchestrator.JoinSession(context.Background(), id); err != nil {
		t.Fatalf("join: %v", err)
	}

	var got []byte
	host.Events().OnData(func(payload []byte) { got = payload })
	orchestrator.SendData([]byte("ping"))
	if string(got) != "ping" {
		t.Fatalf("data payload lost: %q", got)
	}
}
