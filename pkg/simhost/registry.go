package simhost

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Event kinds this host fires.
const (
	KindChat       = "PlayerChatEvent"
	KindConnect    = "PlayerConnectEvent"
	KindDisconnect = "PlayerDisconnectEvent"
)

type listener struct {
	priority int16
	seq      int
	handler  func(any)
}

// EventRegistry holds module listeners. Lower priorities run first and
// equal priorities run in registration order.
type EventRegistry struct {
	log *zap.Logger

	mu        sync.RWMutex
	listeners map[string][]listener
	seq       int
}

func newEventRegistry(logger *zap.Logger) *EventRegistry {
	return &EventRegistry{
		log: logger,
		listeners: map[string][]listener{
			KindChat:       nil,
			KindConnect:    nil,
			KindDisconnect: nil,
		},
	}
}

// Register adds handler for kind.
func (r *EventRegistry) Register(priority int16, kind string, handler func(any)) error {
	if handler == nil {
		return fmt.Errorf("simhost: nil handler for %s", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list, ok := r.listeners[kind]
	if !ok {
		return fmt.Errorf("simhost: unknown event kind %q", kind)
	}
	r.seq++
	list = append(list, listener{priority: priority, seq: r.seq, handler: handler})
	sort.SliceStable(list, func(i, j int) bool { return list[i].priority < list[j].priority })
	r.listeners[kind] = list
	return nil
}

// Fire runs every listener of kind with ev. A panicking listener is logged
// and skipped.
func (r *EventRegistry) Fire(kind string, ev any) {
	r.mu.RLock()
	list := r.listeners[kind]
	r.mu.RUnlock()
	for _, l := range list {
		r.call(kind, l, ev)
	}
}

func (r *EventRegistry) call(kind string, l listener, ev any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("listener panicked", zap.String("kind", kind), zap.Any("panic", rec))
		}
	}()
	l.handler(ev)
}

// Listeners returns the number of listeners for kind.
func (r *EventRegistry) Listeners(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[kind])
}
