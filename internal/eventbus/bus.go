// Package eventbus fans telemetry and control-plane updates out to UI
// subscribers. It generalizes the teacher's internal/hub.Hub — a single
// fixed payload type and single channel per client — into a topic-keyed
// bus carrying the four event kinds the ground station publishes.
package eventbus

import (
	"sync"

	"github.com/kstaniek/groundstation/internal/logging"
	"github.com/kstaniek/groundstation/internal/metrics"
)

// Topic names one of the event kinds a Client can receive.
type Topic string

const (
	TopicEndpointUpdate  Topic = "endpoint-update"
	TopicTelemetryUpdate Topic = "telemetry-update"
	TopicCatalogueUpdate Topic = "catalogue-update"
	TopicError           Topic = "error"
)

// Event is one published message: Topic names its kind, Payload carries
// the topic-specific value (an []Endpoint, a TelemetryBatch, a
// CatalogueChange, or a string, respectively — subscribers type-assert on
// Topic).
type Event struct {
	Topic   Topic
	Payload any
}

// BackpressurePolicy controls what happens when a subscriber's queue is
// full: PolicyDrop silently discards the event, PolicyKick disconnects the
// subscriber so it can reconnect and resynchronize.
type BackpressurePolicy int

const (
	PolicyDrop BackpressurePolicy = iota
	PolicyKick
)

// Client is one connected subscriber's delivery channel.
type Client struct {
	Out       chan Event
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed; idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Closed) })
}

// Bus fans Events out to every subscribed Client, honoring Policy on a
// full queue.
type Bus struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	Policy   BackpressurePolicy
}

// New creates an empty Bus with the drop backpressure policy.
func New() *Bus { return &Bus{clients: make(map[*Client]struct{})} }

// Subscribe registers c with the bus.
func (b *Bus) Subscribe(c *Client) {
	b.mu.Lock()
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.mu.Unlock()
	metrics.SetHubClients(n)
}

// Unsubscribe removes c from the bus and closes it.
func (b *Bus) Unsubscribe(c *Client) {
	b.mu.Lock()
	delete(b.clients, c)
	n := len(b.clients)
	b.mu.Unlock()
	select {
	case <-c.Closed:
	default:
		c.Close()
	}
	metrics.SetHubClients(n)
}

// Publish delivers ev to every subscriber, dropping or kicking slow ones
// per Policy.
func (b *Bus) Publish(ev Event) {
	clients := b.Snapshot()
	metrics.SetBroadcastFanout(len(clients))
	for _, c := range clients {
		select {
		case c.Out <- ev:
		default:
			if b.Policy == PolicyKick {
				metrics.IncHubKick()
				c.Close()
			} else {
				metrics.IncHubDrop()
				logging.L().Warn("eventbus: dropped event", "topic", ev.Topic)
			}
		}
	}
}

// Snapshot returns a slice copy of current subscribers.
func (b *Bus) Snapshot() []*Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of active subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
