// Package fakesfu is a minimal in-process signaling peer for tests: a
// real gorilla/websocket server that answers requests with scripted
// responses and can push notifications on demand. It is adapted from
// the teacher's backend hub/room/client trio (which relayed raw
// messages between two file-transfer peers); here the server plays the
// SFU side of the protocol and actually honors request/response acks,
// which the teacher's relay never needed to do.
package fakesfu

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/websocket"
)

// Server is a single-connection fake SFU signaling endpoint.
type Server struct {
	httpServer *httptest.Server
	upgrader   websocket.Upgrader

	mu         sync.Mutex
	conn       *websocket.Conn
	responders map[string]func(data json.RawMessage) (any, error)
	connected  chan struct{}
}

// New starts a fake SFU server listening on a local port.
func New() *Server {
	s := &Server{
		responders: make(map[string]func(json.RawMessage) (any, error)),
		connected:  make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	s.httpServer = httptest.NewServer(http.HandlerFunc(s.handleConn))
	return s
}

// URL returns the ws:// URL clients should Dial.
func (s *Server) URL() string {
	return "ws" + s.httpServer.URL[len("http"):] + "/ws"
}

// OnRequest registers a canned responder for method. The responder's
// return value is marshaled into the response envelope's data field.
func (s *Server) OnRequest(method string, fn func(data json.RawMessage) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[method] = fn
}

// WaitConnected blocks until a client has dialed in.
func (s *Server) WaitConnected() {
	<-s.connected
}

// Notify pushes a {method, data} notification to the connected client.
func (s *Server) Notify(method string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return websocket.ErrCloseSent
	}
	return conn.WriteJSON(envelope{Method: method, Data: payload})
}

// CloseConn closes the underlying connection, simulating a disconnect.
func (s *Server) CloseConn() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close shuts the fake server down.
func (s *Server) Close() {
	s.httpServer.Close()
}

type envelope struct {
	ID       string          `json:"id,omitempty"`
	Method   string          `json:"method,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Response *bool           `json:"response,omitempty"`
	OK       bool            `json:"ok,omitempty"`
	Errno    int             `json:"errno,omitempty"`
	ErrorMsg string          `json:"error,omitempty"`
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.connected)

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Response != nil {
			continue // acks are not expected inbound from the client
		}

		s.mu.Lock()
		fn, ok := s.responders[env.Method]
		s.mu.Unlock()

		resp := true
		if !ok {
			conn.WriteJSON(envelope{ID: env.ID, Response: &resp, OK: false, Errno: 404, ErrorMsg: "no responder registered"})
			continue
		}

		result, err := fn(env.Data)
		if err != nil {
			conn.WriteJSON(envelope{ID: env.ID, Response: &resp, OK: false, Errno: 500, ErrorMsg: err.Error()})
			continue
		}

		payload, merr := json.Marshal(result)
		if merr != nil {
			conn.WriteJSON(envelope{ID: env.ID, Response: &resp, OK: false, Errno: 500, ErrorMsg: merr.Error()})
			continue
		}
		conn.WriteJSON(envelope{ID: env.ID, Response: &resp, OK: true, Data: payload})
	}
}
