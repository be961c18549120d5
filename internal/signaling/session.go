// Package signaling implements the persistent bidirectional channel
// described in spec §4.1: request/response with timeout and retry,
// inbound notification dispatch, and the connection lifecycle events
// that drive the Room State Coordinator.
//
// The channel itself is a gorilla/websocket connection framed with the
// Envelope JSON shape — the concrete stand-in this corpus offers for
// the "message framing layer providing emit(event, payload, ack)" that
// spec §1 assumes as external.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/coremeet/roomclient/internal/netresolve"
	"github.com/coremeet/roomclient/internal/roomerr"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

// DisconnectReason classifies why the channel went down, driving spec
// §4.1's permanent-vs-transient split.
type DisconnectReason string

const (
	// ReasonServerDisconnect is "io server disconnect": permanent.
	ReasonServerDisconnect DisconnectReason = "server disconnect"
	// ReasonTransient covers every other disconnect reason.
	ReasonTransient DisconnectReason = "transient"
)

// EventKind is one of the four connection lifecycle events in spec §4.1.
type EventKind string

const (
	EventConnect         EventKind = "connect"
	EventDisconnect      EventKind = "disconnect"
	EventReconnectFailed EventKind = "reconnect_failed"
	EventReconnect       EventKind = "reconnect"
)

// Event is pushed onto Session.Events for every lifecycle transition.
type Event struct {
	Kind   EventKind
	Reason DisconnectReason
}

// Notification is one inbound `{method, data}` message that was not an
// ack for an outbound request.
type Notification struct {
	Method string
	Data   json.RawMessage
}

type pendingRequest struct {
	replyCh chan *Envelope
}

// Session owns one websocket connection, answering outbound requests
// with correlated acks and surfacing inbound notifications and
// connection lifecycle events, per spec §4.1.
type Session struct {
	requestTimeout time.Duration
	requestRetries int
	logger         *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]*pendingRequest
	closed  bool

	outgoing      chan *Envelope
	done          chan struct{}
	notifications chan Notification
	events        chan Event
}

// New constructs a Session. Call Dial to establish the connection.
func New(requestTimeout time.Duration, requestRetries int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		requestTimeout: requestTimeout,
		requestRetries: requestRetries,
		logger:         logger,
		pending:        make(map[string]*pendingRequest),
		outgoing:       make(chan *Envelope, 16),
		done:           make(chan struct{}),
		notifications:  make(chan Notification, 64),
		events:         make(chan Event, 8),
	}
}

// Dial establishes the websocket connection, resolving the host through
// netresolve's resilient lookup before the gorilla dial (grounded on the
// teacher's custom-DNS dialer).
func (s *Session) Dial(serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid signaling url: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDial = func(network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ip, err := netresolve.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		return net.Dial(network, net.JoinHostPort(ip, port))
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to signaling server: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.closed = false
	s.mu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readPump(conn)
	go s.writePump(conn)

	s.events <- Event{Kind: EventConnect}
	return nil
}

// Events returns the connection lifecycle event stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Notifications returns the inbound-notification stream.
func (s *Session) Notifications() <-chan Notification {
	return s.notifications
}

func (s *Session) readPump(conn *websocket.Conn) {
	defer s.handleDisconnect(conn, ReasonTransient)

	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.handleDisconnect(conn, ReasonServerDisconnect)
			}
			return
		}

		switch {
		case env.IsResponse():
			s.deliverResponse(&env)
		case env.IsRequest():
			s.replyUnknownMethod(&env)
		default:
			select {
			case s.notifications <- Notification{Method: env.Method, Data: env.Data}:
			default:
				s.logger.Warn("dropping notification, channel full", "method", env.Method)
			}
		}
	}
}

func (s *Session) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-s.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) deliverResponse(env *Envelope) {
	s.mu.Lock()
	pr, ok := s.pending[env.ID]
	if ok {
		delete(s.pending, env.ID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	pr.replyCh <- env
}

func (s *Session) replyUnknownMethod(env *Envelope) {
	// spec §4.1: inbound requests are only ever answered 500 unknown.
	resp := true
	s.send(&Envelope{
		ID:       env.ID,
		Response: &resp,
		OK:       false,
		Errno:    500,
		ErrorMsg: "unknown method",
	})
}

func (s *Session) send(env *Envelope) {
	select {
	case s.outgoing <- env:
	case <-s.done:
	}
}

// SendRequest serializes a single outbound request and awaits its ack,
// retrying up to requestRetries times on timeout only (spec §4.1).
// Requests are fire-and-forget ordering-wise: the caller must not
// assume FIFO ordering across concurrent awaits.
func (s *Session) SendRequest(ctx context.Context, method string, data any) (json.RawMessage, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, roomerr.New("sendRequest:"+method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.requestRetries; attempt++ {
		resp, err := s.attemptOnce(ctx, method, payload)
		if err == nil {
			return resp, nil
		}
		if err != roomerr.ErrSignalingTimeout {
			return nil, err
		}
		lastErr = err
	}
	return nil, roomerr.Wrap("sendRequest:"+method, lastErr, fmt.Sprintf("exhausted %d retries", s.requestRetries))
}

func (s *Session) attemptOnce(ctx context.Context, method string, payload json.RawMessage) (json.RawMessage, error) {
	id := uuid.NewString()
	replyCh := make(chan *Envelope, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, roomerr.ErrClosed
	}
	s.pending[id] = &pendingRequest{replyCh: replyCh}
	s.mu.Unlock()

	s.send(&Envelope{ID: id, Method: method, Data: payload})

	timer := time.NewTimer(s.requestTimeout)
	defer timer.Stop()

	select {
	case env, ok := <-replyCh:
		if !ok {
			// replyCh was closed out from under us by handleDisconnect:
			// the connection dropped with this request still in flight.
			return nil, roomerr.ErrClosed
		}
		if !env.OK {
			sentinel := fmt.Errorf("errno %d", env.Errno)
			if env.Errno == 404 {
				sentinel = roomerr.ErrNotFoundInSFU
			}
			return nil, roomerr.Wrap("sfu:"+method, sentinel, env.ErrorMsg)
		}
		return env.Data, nil

	case <-timer.C:
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, roomerr.ErrSignalingTimeout

	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, ctx.Err()

	case <-s.done:
		return nil, roomerr.ErrClosed
	}
}

func (s *Session) handleDisconnect(conn *websocket.Conn, reason DisconnectReason) {
	s.mu.Lock()
	if s.conn != conn || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.pending
	s.pending = make(map[string]*pendingRequest)
	s.mu.Unlock()

	for _, pr := range pending {
		close(pr.replyCh)
	}

	conn.Close()

	select {
	case s.events <- Event{Kind: EventDisconnect, Reason: reason}:
	default:
	}
}

// Close tears down the connection. Any SFU responses arriving after
// Close are discarded (spec §5 "Cancellation").
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	close(s.done)
	if conn != nil {
		conn.Close()
	}
}
