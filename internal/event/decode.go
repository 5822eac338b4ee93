package event

import (
	"encoding/json"
	"time"

	"github.com/stripe/stripe-go/v81"

	"stripe-webhook-router/internal/common/errors"
)

// DecodeSnapshot decodes a verified snapshot body into the canonical event
func DecodeSnapshot(payload []byte) (*Event, error) {
	var raw stripe.Event
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.WrapValidation("failed to decode snapshot event", err)
	}
	if raw.Type == "" {
		return nil, errors.ValidationError("event type is empty")
	}

	e := &Event{
		ID:         raw.ID,
		Type:       string(raw.Type),
		Kind:       KindSnapshot,
		Object:     raw.Object,
		CreatedAt:  time.Unix(raw.Created, 0).UTC(),
		Livemode:   raw.Livemode,
		APIVersion: raw.APIVersion,
		Account:    raw.Account,
	}
	if raw.Data != nil {
		e.Data = raw.Data.Object
		e.PreviousAttributes = raw.Data.PreviousAttributes
	}
	if e.Data == nil {
		e.Data = map[string]interface{}{}
	}
	return e, nil
}

// DecodeThinNotification decodes a verified thin event envelope
func DecodeThinNotification(payload []byte) (*ThinNotification, error) {
	var n ThinNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.WrapValidation("failed to decode thin event notification", err)
	}
	if n.ID == "" {
		return nil, errors.ValidationError("thin event notification has no id")
	}
	if n.Type == "" {
		return nil, errors.ValidationError("event type is empty")
	}
	return &n, nil
}

type v2Event struct {
	ID            string                 `json:"id"`
	Object        string                 `json:"object"`
	Type          string                 `json:"type"`
	Created       time.Time              `json:"created"`
	Livemode      bool                   `json:"livemode"`
	Context       string                 `json:"context"`
	Data          map[string]interface{} `json:"data"`
	Reason        map[string]interface{} `json:"reason"`
	RelatedObject *RelatedObject         `json:"related_object"`
}

// DecodeV2Event decodes the body returned by the v2 events API
func DecodeV2Event(payload []byte) (*Event, error) {
	var raw v2Event
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.WrapValidation("failed to decode v2 event", err)
	}
	if raw.ID == "" || raw.Type == "" {
		return nil, errors.ValidationError("v2 event is missing id or type")
	}

	data := raw.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	return &Event{
		ID:            raw.ID,
		Type:          raw.Type,
		Kind:          KindThin,
		Object:        raw.Object,
		Data:          data,
		CreatedAt:     raw.Created.UTC(),
		Livemode:      raw.Livemode,
		Context:       raw.Context,
		RelatedObject: raw.RelatedObject,
		Reason:        raw.Reason,
	}, nil
}
