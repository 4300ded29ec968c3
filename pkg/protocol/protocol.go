// Package protocol defines the wire envelopes exchanged over a connection
// and through the group broker: client requests, server responses, error
// responses, and broker-delivered events. All envelopes are JSON objects.
package protocol

import (
	"encoding/json"

	"github.com/oklog/ulid/v2"
)

// Reserved kwargs recognized by the dispatch layer.
const (
	// KwargAccessToken carries the authentication token on the first
	// privileged request of an unauthenticated session.
	KwargAccessToken = "access_token"

	// KwargResponseKey carries an opaque client correlation token that is
	// echoed back in error responses.
	KwargResponseKey = "event_response_key"
)

// MessageTypeError is the response type discriminator for error responses.
const MessageTypeError = "error"

// Request is a client-to-server method invocation:
//
//	{"method": "...", "args": [...], "kwargs": {...}}
//
// Positional args are applied before keyword args.
type Request struct {
	Method string         `json:"method"`
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// ResponseKey returns the client correlation token, if one was supplied.
func (r *Request) ResponseKey() any {
	return r.Kwargs[KwargResponseKey]
}

// AccessToken returns the access token kwarg, or "" if absent or not a string.
func (r *Request) AccessToken() string {
	token, _ := r.Kwargs[KwargAccessToken].(string)
	return token
}

// DecodeRequest parses a raw frame into a Request. A payload that is not a
// well-formed JSON object, or that names no method, fails with a type_error.
func DecodeRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewTypeError("The payload has to be a JSON object.")
	}
	if req.Method == "" {
		return nil, NewTypeError("The request names no method.")
	}
	if req.Kwargs == nil {
		req.Kwargs = map[string]any{}
	}
	return &req, nil
}

// ErrorResponse is the server-to-client error envelope:
//
//	{"type": "error", "detail": "...", "type_code": "...", ...extra}
//
// Extra parameters, including the echoed correlation token, are flattened
// into the top-level object.
type ErrorResponse struct {
	Detail      string
	Type        ErrorType
	ResponseKey any
	Extra       map[string]any
}

// MarshalJSON flattens Extra into the top-level object. The fixed fields
// win over colliding Extra keys.
func (r *ErrorResponse) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 4+len(r.Extra))
	for k, v := range r.Extra {
		m[k] = v
	}
	m["type"] = MessageTypeError
	m["detail"] = r.Detail
	m["type_code"] = r.Type
	m[KwargResponseKey] = r.ResponseKey
	return json.Marshal(m)
}

// Event is the broker-delivered broadcast envelope:
//
//	{"id": "...", "eventName": "...", "args": [...], "kwargs": {...},
//	 "initiatorId": "...", "event_response_key": ...}
//
// InitiatorID is empty when the publisher was not authenticated.
type Event struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"eventName"`
	Args        []any          `json:"args,omitempty"`
	Kwargs      map[string]any `json:"kwargs,omitempty"`
	InitiatorID string         `json:"initiatorId,omitempty"`
	ResponseKey any            `json:"event_response_key,omitempty"`
}

// NewEvent creates an Event with a fresh ULID.
func NewEvent(name string, args []any, kwargs map[string]any) *Event {
	return &Event{
		ID:     ulid.Make().String(),
		Name:   name,
		Args:   args,
		Kwargs: kwargs,
	}
}

// EncodeEvent serializes an event envelope for the broker.
func EncodeEvent(ev *Event) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a broker message payload into an Event.
func DecodeEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, NewTypeError("The event payload has to be a JSON object.")
	}
	if ev.Name == "" {
		return nil, NewTypeError("The event names no method.")
	}
	return &ev, nil
}
