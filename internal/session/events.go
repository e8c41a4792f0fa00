package session

import (
	"sync"

	"github.com/tiger/caption-call/api/peer"
)

// Events is the orchestrator's typed publish/subscribe surface: one handler
// list per event kind, no dynamically-keyed listener map. Registration is
// safe from any goroutine; handlers run on the emitting goroutine.
type Events struct {
	mu               sync.Mutex
	sessionCreated   []func(identity string)
	connected        []func(remote string)
	disconnected     []func()
	peerDisconnected []func()
	remoteStream     []func(stream peer.MediaStream)
	audioToggled     []func(enabled bool)
	videoToggled     []func(enabled bool)
	data             []func(payload []byte)
}

// NewEvents returns an empty event registry.
func NewEvents() *Events {
	return &Events{}
}

// OnSessionCreated registers a handler for local endpoint creation.
func (e *Events) OnSessionCreated(fn func(identity string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionCreated = append(e.sessionCreated, fn)
}

// OnConnected registers a handler for remote pairing.
func (e *Events) OnConnected(fn func(remote string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = append(e.connected, fn)
}

// OnDisconnected registers a handler for local teardown.
func (e *Events) OnDisconnected(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnected = append(e.disconnected, fn)
}

// OnPeerDisconnected registers a handler for remote departure.
func (e *Events) OnPeerDisconnected(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peerDisconnected = append(e.peerDisconnected, fn)
}

// OnRemoteStream registers a handler for remote media arrival.
func (e *Events) OnRemoteStream(fn func(stream peer.MediaStream)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remoteStream = append(e.remoteStream, fn)
}

// OnAudioToggled registers a handler for local audio toggle events.
func (e *Events) OnAudioToggled(fn func(enabled bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audioToggled = append(e.audioToggled, fn)
}

// OnVideoToggled registers a handler for local video toggle events.
func (e *Events) OnVideoToggled(fn func(enabled bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.videoToggled = append(e.videoToggled, fn)
}

// OnData registers a handler for inbound data-channel payloads.
func (e *Events) OnData(fn func(payload []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = append(e.data, fn)
}

func (e *Events) emitSessionCreated(identity string) {
	for _, fn := range e.snapshotSessionCreated() {
		fn(identity)
	}
}

func (e *Events) emitConnected(remote string) {
	e.mu.Lock()
	handlers := append([]func(string){}, e.connected...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(remote)
	}
}

func (e *Events) emitDisconnected() {
	e.mu.Lock()
	handlers := append([]func(){}, e.disconnected...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (e *Events) emitPeerDisconnected() {
	e.mu.Lock()
	handlers := append([]func(){}, e.peerDisconnected...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (e *Events) emitRemoteStream(stream peer.MediaStream) {
	e.mu.Lock()
	handlers := append([]func(peer.MediaStream){}, e.remoteStream...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(stream)
	}
}

func (e *Events) emitAudioToggled(enabled bool) {
	e.mu.Lock()
	handlers := append([]func(bool){}, e.audioToggled...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(enabled)
	}
}

func (e *Events) emitVideoToggled(enabled bool) {
	e.mu.Lock()
	handlers := append([]func(bool){}, e.videoToggled...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(enabled)
	}
}

func (e *Events) emitData(payload []byte) {
	e.mu.Lock()
	handlers := append([]func([]byte){}, e.data...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(payload)
	}
}

func (e *Events) snapshotSessionCreated() []func(string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]func(string){}, e.sessionCreated...)
}
