// Package event holds the canonical event model and the snapshot/thin
// classification rules.
package event

import (
	"time"
)

// Kind is the payload family of an inbound notification
type Kind string

const (
	// KindSnapshot events carry the full object state in the signed body
	KindSnapshot Kind = "snapshot"
	// KindThin events carry only a reference that must be resolved upstream
	KindThin Kind = "thin"
)

// ObjectThinEvent is the object tag of v2 event notifications
const ObjectThinEvent = "v2.core.event"

// RelatedObject references the resource a thin event is about
type RelatedObject struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// Event is the canonical provider event handed to handlers. Snapshot events
// carry the object state in Data; resolved thin events carry the v2 event data.
type Event struct {
	ID                 string                 `json:"id"`
	Type               string                 `json:"type"`
	Kind               Kind                   `json:"kind"`
	Object             string                 `json:"object,omitempty"`
	Data               map[string]interface{} `json:"data,omitempty"`
	PreviousAttributes map[string]interface{} `json:"previous_attributes,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	Livemode           bool                   `json:"livemode"`
	APIVersion         string                 `json:"api_version,omitempty"`
	Account            string                 `json:"account,omitempty"`
	Context            string                 `json:"context,omitempty"`
	RelatedObject      *RelatedObject         `json:"related_object,omitempty"`
	Reason             map[string]interface{} `json:"reason,omitempty"`
}

// ThinNotification is the signed envelope of a thin event. It only names the
// event and is never handed to handlers.
type ThinNotification struct {
	ID            string         `json:"id"`
	Object        string         `json:"object"`
	Type          string         `json:"type"`
	Created       time.Time      `json:"created"`
	Livemode      bool           `json:"livemode"`
	Context       string         `json:"context,omitempty"`
	RelatedObject *RelatedObject `json:"related_object,omitempty"`
}

// Flatten renders e as handler variables
func Flatten(e *Event) map[string]interface{} {
	if e == nil {
		return map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"id":         e.ID,
		"type":       e.Type,
		"kind":       string(e.Kind),
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
		"livemode":   e.Livemode,
		"data":       e.Data,
	}
	if e.Object != "" {
		vars["object"] = e.Object
	}
	if e.APIVersion != "" {
		vars["api_version"] = e.APIVersion
	}
	if e.Account != "" {
		vars["account"] = e.Account
	}
	if e.Context != "" {
		vars["context"] = e.Context
	}
	if e.PreviousAttributes != nil {
		vars["previous_attributes"] = e.PreviousAttributes
	}
	if e.Reason != nil {
		vars["reason"] = e.Reason
	}
	if e.RelatedObject != nil {
		related := map[string]interface{}{
			"id":   e.RelatedObject.ID,
			"type": e.RelatedObject.Type,
		}
		if e.RelatedObject.URL != "" {
			related["url"] = e.RelatedObject.URL
		}
		vars["related_object"] = related
	}
	return vars
}
