package wsrelay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tiger/caption-call/api/peer"
	"github.com/tiger/caption-call/internal/telemetry"
)

// TransportConfig points the client adapter at a relay server.
type TransportConfig struct {
	// URL is the relay websocket endpoint, e.g. "ws://127.0.0.1:8787/ws".
	URL       string
	Dialer    *websocket.Dialer
	Telemetry telemetry.Emitter
}

// Transport adapts a relay connection to the peer endpoint boundary.
type Transport struct {
	url     string
	dialer  *websocket.Dialer
	emitter telemetry.Emitter
}

var _ peer.Transport = (*Transport)(nil)

func NewTransport(cfg TransportConfig) (*Transport, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("relay url is required")
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.DefaultEmitter()
	}
	return &Transport{url: cfg.URL, dialer: cfg.Dialer, emitter: cfg.Telemetry}, nil
}

// Open registers identity with the relay. A 409 during the handshake means
// the identity is already registered and maps to the identity-taken signal.
func (t *Transport) Open(ctx context.Context, identity string) (peer.Endpoint, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, fmt.Errorf("identity is required")
	}

	conn, resp, err := t.dialer.DialContext(ctx, t.url+"?identity="+url.QueryEscape(identity), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("open endpoint %s: %w", identity, peer.ErrIdentityTaken)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	endpoint := &Endpoint{
		identity: identity,
		conn:     conn,
		conns:    map[string]*dataConn{},
		calls:    map[string]*mediaCall{},
		emitter:  t.emitter,
	}
	go endpoint.readLoop()
	return endpoint, nil
}

// Endpoint is one relay registration. Data connections and calls are
// multiplexed over the single websocket, keyed by remote identity.
type Endpoint struct {
	identity string
	conn     *websocket.Conn
	writeMu  sync.Mutex

	mu      sync.Mutex
	handler peer.InboundHandler
	conns   map[string]*dataConn
	calls   map[string]*mediaCall
	closed  bool

	emitter telemetry.Emitter
}

func (e *Endpoint) Identity() string {
	return e.identity
}

func (e *Endpoint) SetInboundHandler(h peer.InboundHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

func (e *Endpoint) DialData(_ context.Context, remote string) (peer.DataConn, error) {
	if strings.TrimSpace(remote) == "" {
		return nil, fmt.Errorf("remote identity is required")
	}
	conn, _ := e.ensureDataConn(remote)
	if err := e.send(frame{Type: frameDataOpen, To: remote}); err != nil {
		e.dropConn(remote, conn)
		return nil, err
	}
	return conn, nil
}

func (e *Endpoint) Call(_ context.Context, remote string, local peer.MediaStream) (peer.MediaCall, error) {
	if strings.TrimSpace(remote) == "" {
		return nil, fmt.Errorf("remote identity is required")
	}
	if local == nil {
		return nil, fmt.Errorf("local stream is required")
	}
	call, _ := e.ensureCall(remote, false)
	if err := e.send(frame{Type: frameCall, To: remote, StreamID: local.ID()}); err != nil {
		e.dropCall(remote, call)
		return nil, err
	}
	return call, nil
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.conn.Close()
	e.teardown()
	return err
}

func (e *Endpoint) send(f frame) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return fmt.Errorf("endpoint %s is closed", e.identity)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.conn.WriteJSON(f)
}

func (e *Endpoint) readLoop() {
	for {
		var f frame
		if err := e.conn.ReadJSON(&f); err != nil {
			e.mu.Lock()
			e.closed = true
			e.mu.Unlock()
			e.teardown()
			return
		}
		e.dispatch(f)
	}
}

func (e *Endpoint) dispatch(f frame) {
	switch f.Type {
	case frameDataOpen:
		conn, isNew := e.ensureDataConn(f.From)
		if isNew {
			if handler := e.inboundHandler(); handler != nil {
				handler.HandleDataConn(conn)
			}
		}
	case frameData:
		conn, isNew := e.ensureDataConn(f.From)
		if isNew {
			if handler := e.inboundHandler(); handler != nil {
				handler.HandleDataConn(conn)
			}
		}
		conn.deliver(f.Payload)
	case frameDataClose:
		if conn := e.takeConn(f.From); conn != nil {
			conn.markClosed()
		}
	case frameCall:
		call, isNew := e.ensureCall(f.From, true)
		call.setOffered(NewRemoteStream(f.StreamID))
		if isNew {
			if handler := e.inboundHandler(); handler != nil {
				handler.HandleCall(call)
			}
		}
	case frameCallAnswer:
		if call := e.lookupCall(f.From); call != nil {
			call.deliverStream(NewRemoteStream(f.StreamID))
		}
	case frameCallClose:
		if call := e.takeCall(f.From); call != nil {
			call.markClosed()
		}
	case framePeerGone:
		if conn := e.takeConn(f.From); conn != nil {
			conn.markClosed()
		}
		if call := e.takeCall(f.From); call != nil {
			call.markClosed()
		}
	default:
		e.emitter.EmitLog("relay_frame_ignored", telemetry.SeverityWarn, string(f.Type), nil,
			telemetry.Correlation{SessionID: e.identity, Component: "wsrelay"})
	}
}

func (e *Endpoint) inboundHandler() peer.InboundHandler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler
}

func (e *Endpoint) ensureDataConn(remote string) (*dataConn, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if conn, ok := e.conns[remote]; ok {
		return conn, false
	}
	conn := &dataConn{endpoint: e, remote: remote, open: true}
	e.conns[remote] = conn
	return conn, true
}

func (e *Endpoint) ensureCall(remote string, inbound bool) (*mediaCall, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if call, ok := e.calls[remote]; ok {
		return call, false
	}
	call := &mediaCall{endpoint: e, remote: remote, inbound: inbound}
	e.calls[remote] = call
	return call, true
}

func (e *Endpoint) lookupCall(remote string) *mediaCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[remote]
}

func (e *Endpoint) takeConn(remote string) *dataConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	conn := e.conns[remote]
	delete(e.conns, remote)
	return conn
}

func (e *Endpoint) takeCall(remote string) *mediaCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	call := e.calls[remote]
	delete(e.calls, remote)
	return call
}

func (e *Endpoint) dropConn(remote string, conn *dataConn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conns[remote] == conn {
		delete(e.conns, remote)
	}
}

func (e *Endpoint) dropCall(remote string, call *mediaCall) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls[remote] == call {
		delete(e.calls, remote)
	}
}

// teardown closes every outstanding connection and call, firing their close
// handlers. Runs when the websocket drops or the endpoint closes.
func (e *Endpoint) teardown() {
	e.mu.Lock()
	conns := make([]*dataConn, 0, len(e.conns))
	for _, conn := range e.conns {
		conns = append(conns, conn)
	}
	calls := make([]*mediaCall, 0, len(e.calls))
	for _, call := range e.calls {
		calls = append(calls, call)
	}
	e.conns = map[string]*dataConn{}
	e.calls = map[string]*mediaCall{}
	e.mu.Unlock()

	for _, conn := range conns {
		conn.markClosed()
	}
	for _, call := range calls {
		call.markClosed()
	}
}

// dataConn is the local half of a relayed data channel.
type dataConn struct {
	endpoint *Endpoint
	remote   string

	mu           sync.Mutex
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
	c.mu.Unlock()
	return c.endpoint.send(frame{Type: frameData, To: c.remote, Payload: payload})
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
	_ = c.endpoint.send(frame{Type: frameDataClose, To: c.remote})
	c.endpoint.dropConn(c.remote, c)
	c.markClosed()
	return nil
}

func (c *dataConn) deliver(payload []byte) {
	c.mu.Lock()
	receiver := c.receiver
	open := c.open
	c.mu.Unlock()
	if open && receiver != nil {
		receiver(payload)
	}
}

func (c *dataConn) markClosed() {
	c.mu.Lock()
	wasOpen := c.open
	c.open = false
	onClose := c.closeHandler
	c.closeHandler = nil
	c.mu.Unlock()
	if wasOpen && onClose != nil {
		onClose()
	}
}

// mediaCall is the local half of a relayed call. Only stream descriptors
// cross the wire.
type mediaCall struct {
	endpoint *Endpoint
	remote   string
	inbound  bool

	mu            sync.Mutex
	closed        bool
	offeredStream peer.MediaStream
	pendingStream peer.MediaStream
	streamHandler func(stream peer.MediaStream)
	closeHandler  func()
}

func (m *mediaCall) RemoteIdentity() string { return m.remote }

// Answer accepts an inbound call with a local stream. The answering side
// receives the caller's offered stream; the caller is sent the answer.
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
	m.mu.Unlock()

	if err := m.endpoint.send(frame{Type: frameCallAnswer, To: m.remote, StreamID: local.ID()}); err != nil {
		return err
	}
	m.deliverStream(offered)
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
	_ = m.endpoint.send(frame{Type: frameCallClose, To: m.remote})
	m.endpoint.dropCall(m.remote, m)
	m.markClosed()
	return nil
}

func (m *mediaCall) setOffered(stream peer.MediaStream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offeredStream = stream
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

func (m *mediaCall) markClosed() {
	m.mu.Lock()
	wasOpen := !m.closed
	m.closed = true
	onClose := m.closeHandler
	m.closeHandler = nil
	m.mu.Unlock()
	if wasOpen && onClose != nil {
		onClose()
	}
}
