package events

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-player pub/sub event bus with support for global subscribers.
// Host code emits structured events; each subscriber (line session,
// websocket session, transcript writer) encodes them per-transport.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID][]Subscriber
	global      []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[uuid.UUID][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific player's events.
func (b *Bus) Subscribe(player uuid.UUID, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[player] = append(b.subscribers[player], sub)
}

// Unsubscribe removes a subscriber for a specific player.
func (b *Bus) Unsubscribe(player uuid.UUID, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[player]
	for i, s := range subs {
		if s == sub {
			b.subscribers[player] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[player]) == 0 {
		delete(b.subscribers, player)
	}
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit sends an event to the player specified in ev.Player and all global
// subscribers.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := b.subscribers[ev.Player]
	globals := b.global
	b.mu.RUnlock()

	deliver(subs, ev)
	deliver(globals, ev)
}

// EmitToPlayer sends an event to a specific player (overriding ev.Player).
func (b *Bus) EmitToPlayer(player uuid.UUID, ev Event) {
	ev.Player = player
	b.Emit(ev)
}

func deliver(subs []Subscriber, ev Event) {
	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// PlayerSubscribers returns the number of subscribers for a player.
func (b *Bus) PlayerSubscribers(player uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[player])
}
