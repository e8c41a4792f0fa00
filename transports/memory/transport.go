// Package memory provides an in-process peer transport: identities register
// in a shared table and data/media connections are delivered synchronously
// between endpoints. It backs tests and the loopback demo; wire mechanics of
// a production transport live behind the same api/peer boundary.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tiger/caption-call/api/peer"
)

// Transport is an in-process identity registry.
type Transport struct {
	mu        sync.Mutex
	endpoints map[string]*Endpoint
}

// NewTransport returns an empty in-process transport.
func NewTransport() *Transport {
	return &Transport{endpoints: make(map[string]*Endpoint)}
}

// Open registers an endpoint under an identity. A second open for a live
// identity fails with peer.ErrIdentityTaken.
func (t *Transport) Open(_ context.Context, identity string) (peer.Endpoint, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, taken := t.endpoints[identity]; taken {
		return nil, fmt.Errorf("open %s: %w", identity, peer.ErrIdentityTaken)
	}
	endpoint := &Endpoint{transport: t, identity: identity}
	t.endpoints[identity] = endpoint
	return endpoint, nil
}

func (t *Transport) lookup(identity string) (*Endpoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	endpoint, ok := t.endpoints[identity]
	if !ok {
		return nil, fmt.Errorf("unknown identity %s", identity)
	}
	return endpoint, nil
}

func (t *Transport) release(identity string, endpoint *Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endpoints[identity] == endpoint {
		delete(t.endpoints, identity)
	}
}

// Endpoint is one registered in-process address.
type Endpoint struct {
	transport *Transport
	identity  string

	mu      sync.Mutex
	handler peer.InboundHandler
	closed  bool
}

// Identity returns the registered address.
func (e *Endpoint) Identity() string {
	return e.identity
}

// SetInboundHandler installs the unsolicited-connection receiver.
func (e *Endpoint) SetInboundHandler(h peer.InboundHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// DialData opens a data connection to a registered remote identity. The
// remote half is delivered synchronously to the remote inbound handler.
func (e *Endpoint) DialData(_ context.Context, remote string) (peer.DataConn, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("endpoint %s is closed", e.identity)
	}
	target, err := e.transport.lookup(remote)
	if err != nil {
		return nil, err
	}

	local := &dataConn{remote: remote}
	far := &dataConn{remote: e.identity}
	local.half = far
	far.half = local
	local.open = true
	far.open = true

	if handler := target.inboundHandler(); handler != nil {
		handler.HandleDataConn(far)
	}
	return local, nil
}

// Call places a media call to a registered remote identity carrying the
// local stream. The call is delivered synchronously to the remote handler.
func (e *Endpoint) Call(_ context.Context, remote string, local peer.MediaStream) (peer.MediaCall, error) {
	if e.isClosed() {
		return nil, fmt.Errorf("endpoint %s is closed", e.identity)
	}
	if local == nil {
		return nil, fmt.Errorf("local stream is required")
	}
	target, err := e.transport.lookup(remote)
	if err != nil {
		return nil, err
	}

	caller := &mediaCall{remote: remote}
	callee := &mediaCall{remote: e.identity, inbound: true, offeredStream: local}
	caller.half = callee
	callee.half = caller

	if handler := target.inboundHandler(); handler != nil {
		handler.HandleCall(callee)
	}
	return caller, nil
}

// Close deregisters the identity. Live connections stay open; the identity
// becomes reusable.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.transport.release(e.identity, e)
	return nil
}

func (e *Endpoint) inboundHandler() peer.InboundHandler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler
}

func (e *Endpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// dataConn is one half of a paired in-process data connection.
type dataConn struct {
	remote string

	mu           sync.Mutex
	half         *dataConn
	open         bool
	receiver     func(payload []byte)
	closeHandler func()
}

func (c *dataConn) RemoteIdentity() string { return c.remote }

func (c *dataConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *dataConn) Send(payload []byte) error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return fmt.Errorf("data connection to %s is closed", c.remote)
	}
	half := c.half
	c.mu.Unlock()

	half.mu.Lock()
	receiver := half.receiver
	half.mu.Unlock()
	if receiver != nil {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		receiver(buf)
	}
	return nil
}

func (c *dataConn) SetReceiver(fn func(payload []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiver = fn
}

func (c *dataConn) SetCloseHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeHandler = fn
}

func (c *dataConn) Close() error {
	for _, half := range []*dataConn{c, c.halfConn()} {
		if half == nil {
			continue
		}
		half.mu.Lock()
		wasOpen := half.open
		half.open = false
		onClose := half.closeHandler
		half.closeHandler = nil
		half.mu.Unlock()
		if wasOpen && onClose != nil {
			onClose()
		}
	}
	return nil
}

func (c *dataConn) halfConn() *dataConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.half
}

// mediaCall is one half of a paired in-process media call.
type mediaCall struct {
	remote  string
	inbound bool

	mu            sync.Mutex
	half          *mediaCall
	closed        bool
	offeredStream peer.MediaStream
	pendingStream peer.MediaStream
	streamHandler func(stream peer.MediaStream)
	closeHandler  func()
}

func (m *mediaCall) RemoteIdentity() string { return m.remote }

// Answer accepts an inbound call with a local stream. The answering side
// receives the caller's offered stream; the caller receives the answer.
func (m *mediaCall) Answer(local peer.MediaStream) error {
	m.mu.Lock()
	if !m.inbound {
		m.mu.Unlock()
		return fmt.Errorf("only inbound calls can be answered")
	}
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("call from %s is closed", m.remote)
	}
	if local == nil {
		m.mu.Unlock()
		return fmt.Errorf("local stream is required")
	}
	offered := m.offeredStream
	half := m.half
	m.mu.Unlock()

	m.deliverStream(offered)
	half.deliverStream(local)
	return nil
}

func (m *mediaCall) SetRemoteStreamHandler(fn func(stream peer.MediaStream)) {
	m.mu.Lock()
	m.streamHandler = fn
	pending := m.pendingStream
	m.pendingStream = nil
	m.mu.Unlock()
	if fn != nil && pending != nil {
		fn(pending)
	}
}

func (m *mediaCall) SetCloseHandler(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeHandler = fn
}

func (m *mediaCall) Close() error {
	for _, half := range []*mediaCall{m, m.halfCall()} {
		if half == nil {
			continue
		}
		half.mu.Lock()
		wasOpen := !half.closed
		half.closed = true
		onClose := half.closeHandler
		half.closeHandler = nil
		half.mu.Unlock()
		if wasOpen && onClose != nil {
			onClose()
		}
	}
	return nil
}

func (m *mediaCall) deliverStream(stream peer.MediaStream) {
	if stream == nil {
		return
	}
	m.mu.Lock()
	handler := m.streamHandler
	if handler == nil {
		m.pendingStream = stream
	}
	m.mu.Unlock()
	if handler != nil {
		handler(stream)
	}
}

func (m *mediaCall) halfCall() *mediaCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.half
}
