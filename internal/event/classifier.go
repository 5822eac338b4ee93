package event

import (
	"strings"

	"stripe-webhook-router/internal/common/errors"
)

// ThinTypePrefix marks thin event types, e.g. "v1.billing.meter.error_report_triggered"
const ThinTypePrefix = "v"

// IsThinType reports whether eventType names a thin event
func IsThinType(eventType string) bool {
	return hasThinPrefix(eventType, ThinTypePrefix)
}

// hasThinPrefix is the single thin-event predicate; an empty prefix falls
// back to ThinTypePrefix.
func hasThinPrefix(eventType, prefix string) bool {
	if prefix == "" {
		prefix = ThinTypePrefix
	}
	return strings.HasPrefix(eventType, prefix)
}

// Classification is the outcome of classifying a parsed body
type Classification struct {
	Type string
	Kind Kind
}

// Classifier decides the payload family of a parsed request body
type Classifier interface {
	Classify(body map[string]interface{}) (Classification, error)
}

// PrefixClassifier treats every type starting with Prefix as thin
type PrefixClassifier struct {
	Prefix string
}

// NewClassifier returns a classifier using ThinTypePrefix
func NewClassifier() *PrefixClassifier {
	return &PrefixClassifier{Prefix: ThinTypePrefix}
}

// Classify reads the "type" field of body. A missing, non-string or empty
// type is a validation error.
func (c *PrefixClassifier) Classify(body map[string]interface{}) (Classification, error) {
	eventType, _ := body["type"].(string)
	if eventType == "" {
		return Classification{}, errors.ValidationError("event type is empty")
	}

	kind := KindSnapshot
	if hasThinPrefix(eventType, c.Prefix) {
		kind = KindThin
	}
	return Classification{Type: eventType, Kind: kind}, nil
}
