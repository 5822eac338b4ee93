package dispatch

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/event"
)

// Default channel names
const (
	ChannelSnapshotEvents = "stripe_snapshot_events"
	ChannelThinEvents     = "stripe_thin_events"
)

// ChannelTable maps a classified event to the handler channels it is
// dispatched to. Kind channels always come first, followed by any channels
// bound to the exact event type.
type ChannelTable struct {
	byKind map[event.Kind][]string
	byType map[string][]string
}

// DefaultChannelTable routes each kind to its single default channel
func DefaultChannelTable() *ChannelTable {
	return &ChannelTable{
		byKind: map[event.Kind][]string{
			event.KindSnapshot: {ChannelSnapshotEvents},
			event.KindThin:     {ChannelThinEvents},
		},
		byType: map[string][]string{},
	}
}

// SetKind replaces the channels for kind
func (t *ChannelTable) SetKind(kind event.Kind, channels ...string) *ChannelTable {
	t.byKind[kind] = append([]string(nil), channels...)
	return t
}

// AddType fans events of eventType out to additional channels
func (t *ChannelTable) AddType(eventType string, channels ...string) *ChannelTable {
	t.byType[eventType] = append(t.byType[eventType], channels...)
	return t
}

// Channels returns the ordered, de-duplicated channel list. The returned
// slice is owned by the caller.
func (t *ChannelTable) Channels(kind event.Kind, eventType string) []string {
	return lo.Uniq(append(append([]string{}, t.byKind[kind]...), t.byType[eventType]...))
}

// Names lists every channel the table can produce, sorted
func (t *ChannelTable) Names() []string {
	var all []string
	for _, group := range t.byKind {
		all = append(all, group...)
	}
	for _, group := range t.byType {
		all = append(all, group...)
	}
	names := lo.Uniq(all)
	sort.Strings(names)
	return names
}

// ParseTypeChannels parses "type=channel[|channel],type=channel" into a
// type to channels map. An empty string yields an empty map.
func ParseTypeChannels(value string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		eventType, channels, ok := strings.Cut(entry, "=")
		eventType = strings.TrimSpace(eventType)
		if !ok || eventType == "" {
			return nil, errors.ConfigError("invalid type channel entry: " + entry)
		}
		for _, channel := range strings.Split(channels, "|") {
			channel = strings.TrimSpace(channel)
			if channel == "" {
				return nil, errors.ConfigError("empty channel for event type " + eventType)
			}
			out[eventType] = append(out[eventType], channel)
		}
	}
	return out, nil
}
