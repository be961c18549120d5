package signaling

import "encoding/json"

// Envelope is the one wire shape exchanged on the signaling channel,
// covering all three message kinds from spec §4.1: outbound request,
// inbound request (answered only with a 500 "unknown method" per
// spec §4.1), and inbound/outbound notification.
type Envelope struct {
	// ID correlates a request with its response. Notifications never
	// carry one.
	ID string `json:"id,omitempty"`

	// Method is the request/notification method name (spec §6).
	Method string `json:"method,omitempty"`

	// Data is the request/notification payload.
	Data json.RawMessage `json:"data,omitempty"`

	// Response envelopes only:
	Response *bool           `json:"response,omitempty"`
	OK       bool            `json:"ok,omitempty"`
	Errno    int             `json:"errno,omitempty"`
	ErrorMsg string          `json:"error,omitempty"`

	// Request envelopes only (peer-initiated, spec §4.1: answered with
	// 500 unknown and otherwise treated as a notification).
	Request *bool `json:"request,omitempty"`
}

// IsResponse reports whether e is an ack for a prior outbound request.
func (e *Envelope) IsResponse() bool {
	return e.Response != nil && *e.Response
}

// IsRequest reports whether e is a peer-initiated inbound request.
func (e *Envelope) IsRequest() bool {
	return e.Request != nil && *e.Request
}
