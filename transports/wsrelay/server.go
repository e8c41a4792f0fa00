// Package wsrelay carries the peer transport boundary over a websocket
// relay: one server routes data frames and call signaling between
// registered identities, and the client side adapts a relay connection to
// the endpoint interface. Media payloads do not traverse the relay; calls
// exchange stream descriptors only.
package wsrelay

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tiger/caption-call/internal/telemetry"
)

// Server is the relay hub. Register it on an HTTP mux and point clients at
// the same path.
type Server struct {
	upgrader websocket.Upgrader
	emitter  telemetry.Emitter

	mu      sync.Mutex
	clients map[string]*serverClient
}

type serverClient struct {
	identity string
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

func (c *serverClient) write(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// ServerConfig configures the relay hub.
type ServerConfig struct {
	Telemetry telemetry.Emitter
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Telemetry == nil {
		cfg.Telemetry = telemetry.DefaultEmitter()
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		emitter: cfg.Telemetry,
		clients: map[string]*serverClient{},
	}
}

// ServeHTTP registers one endpoint identity per websocket connection. A
// duplicate identity is refused with 409 before the upgrade, which the
// client surfaces as the identity-taken signal.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if _, exists := s.clients[identity]; exists {
		s.mu.Unlock()
		http.Error(w, "identity already taken", http.StatusConflict)
		return
	}
	// Reserve the slot before the upgrade so a concurrent register of the
	// same identity conflicts instead of racing.
	client := &serverClient{identity: identity}
	s.clients[identity] = client
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.remove(identity, client)
		return
	}
	client.conn = conn

	s.log(telemetry.SeverityInfo, "relay_registered", identity)
	s.readLoop(client)
}

func (s *Server) readLoop(client *serverClient) {
	defer func() {
		s.remove(client.identity, client)
		_ = client.conn.Close()
		s.broadcastGone(client.identity)
		s.log(telemetry.SeverityInfo, "relay_departed", client.identity)
	}()

	for {
		var f frame
		if err := client.conn.ReadJSON(&f); err != nil {
			return
		}
		f.From = client.identity

		target, ok := s.lookup(f.To)
		if !ok {
			_ = client.write(frame{Type: framePeerGone, From: f.To})
			continue
		}
		if err := target.write(f); err != nil {
			_ = client.write(frame{Type: framePeerGone, From: f.To})
		}
	}
}

func (s *Server) lookup(identity string) (*serverClient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, ok := s.clients[identity]
	if !ok || client.conn == nil {
		return nil, false
	}
	return client, true
}

func (s *Server) remove(identity string, client *serverClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[identity] == client {
		delete(s.clients, identity)
	}
}

// broadcastGone tells every remaining client the identity went away.
// Clients without a connection to it ignore the frame.
func (s *Server) broadcastGone(identity string) {
	s.mu.Lock()
	remaining := make([]*serverClient, 0, len(s.clients))
	for _, client := range s.clients {
		if client.conn != nil {
			remaining = append(remaining, client)
		}
	}
	s.mu.Unlock()

	for _, client := range remaining {
		_ = client.write(frame{Type: framePeerGone, From: identity})
	}
}

func (s *Server) log(severity, name, identity string) {
	s.emitter.EmitLog(name, severity, identity, nil, telemetry.Correlation{Component: "wsrelay"})
}
