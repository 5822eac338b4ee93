package brokers

import (
	"strconv"
)

// Attribute keys used by brokers that carry metadata as flat string maps
const (
	AttrMessageID  = "message_id"
	AttrRoutingKey = "routing_key"
	AttrExchange   = "exchange"
	AttrTimestamp  = "timestamp"
	AttrHeaderPfx  = "header_"
)

// Attributes flattens the message metadata into string attributes. Headers
// are prefixed so they cannot shadow the fixed keys.
func (m *Message) Attributes() map[string]string {
	attrs := make(map[string]string, len(m.Headers)+4)
	if m.MessageID != "" {
		attrs[AttrMessageID] = m.MessageID
	}
	if m.RoutingKey != "" {
		attrs[AttrRoutingKey] = m.RoutingKey
	}
	if m.Exchange != "" {
		attrs[AttrExchange] = m.Exchange
	}
	if !m.Timestamp.IsZero() {
		attrs[AttrTimestamp] = strconv.FormatInt(m.Timestamp.UnixNano(), 10)
	}
	for k, v := range m.Headers {
		attrs[AttrHeaderPfx+k] = v
	}
	return attrs
}

// QueueOr returns the message queue or fallback when it is empty
func (m *Message) QueueOr(fallback string) string {
	if m.Queue == "" {
		return fallback
	}
	return m.Queue
}
