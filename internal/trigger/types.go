// Package trigger defines the values that flow between the webhook surface,
// the dispatcher and the event handlers.
package trigger

import (
	"encoding/json"
	"net/http"
	"sync"

	"stripe-webhook-router/internal/event"
)

// Request is an inbound webhook request. Body is the exact bytes received
// and is the only input to signature verification.
type Request struct {
	Body   []byte
	Header http.Header

	once   sync.Once
	parsed map[string]interface{}
}

// NewRequest wraps a raw body and its headers
func NewRequest(body []byte, header http.Header) *Request {
	if header == nil {
		header = http.Header{}
	}
	return &Request{Body: body, Header: header}
}

// JSON returns the body parsed as a JSON object. Invalid, empty or non-object
// bodies yield an empty map. The result is shared and must not be modified.
func (r *Request) JSON() map[string]interface{} {
	r.once.Do(func() {
		r.parsed = ParseLenient(r.Body)
	})
	return r.parsed
}

// ParseLenient parses body as a JSON object, returning an empty map on failure
func ParseLenient(body []byte) map[string]interface{} {
	var parsed map[string]interface{}
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil || parsed == nil {
		return map[string]interface{}{}
	}
	return parsed
}

// Variables is the flat key/value output of a handler
type Variables map[string]interface{}

// Payload is the shared, read-only value every matched handler receives
type Payload struct {
	Kind  event.Kind
	Event *event.Event
}

// Ack is the HTTP acknowledgement returned to the provider
type Ack struct {
	StatusCode int
	Body       AckBody
}

// AckBody is serialized as the acknowledgement response
type AckBody struct {
	Status               string   `json:"status"`
	EventType            string   `json:"event_type"`
	DispatchedEventNames []string `json:"dispatched_event_names"`
}

// DispatchResult is what the dispatcher produces for a verified request
type DispatchResult struct {
	EventNames []string
	Ack        Ack
	Payload    Payload
}
