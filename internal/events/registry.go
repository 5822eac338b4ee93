package events

import (
	"sort"
	"sync"

	"stripe-webhook-router/internal/signature"
)

// ChannelCheckoutSessionCompleted is the channel of the checkout handler.
// It only receives events when an event type is fanned out to it.
const ChannelCheckoutSessionCompleted = "stripe_checkout_session_completed"

// Registry maps channel names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// DefaultRegistry registers the built-in handlers. Snapshot handlers verify
// the request again with verifier.
func DefaultRegistry(verifier *signature.Verifier, snapshotChannel, thinChannel string) *Registry {
	r := NewRegistry()
	r.Register(snapshotChannel, Verified{Verifier: verifier, Next: SnapshotEvents{}})
	r.Register(thinChannel, ThinEvents{})
	r.Register(ChannelCheckoutSessionCompleted, Verified{Verifier: verifier, Next: CheckoutSessionCompleted{}})
	return r
}

// Register binds handler to channel, replacing any previous binding
func (r *Registry) Register(channel string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[channel] = handler
}

func (r *Registry) Get(channel string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[channel]
	return h, ok
}

// Channels returns the registered channel names, sorted
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
