package events

import (
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // Host message (universal fallback)
	EvChat                        // Delivered chat line
	EvPrivate                     // Private message
	EvSystem                      // Notice from the host or a module
	EvConnect                     // Player connected
	EvDisconnect                  // Player disconnected
	EvMove                        // Position or world changed
	EvWho                         // WHO data
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvChat:
		return "chat"
	case EvPrivate:
		return "private"
	case EvSystem:
		return "system"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvMove:
		return "move"
	case EvWho:
		return "who"
	default:
		return "unknown"
	}
}

// Event is a structured host event that flows through the bus.
// Line clients render Message as ANSI text, WebSocket clients get the
// segments as JSON.
type Event struct {
	Type    EventType
	Player  uuid.UUID // Recipient (uuid.Nil for broadcast)
	Source  uuid.UUID // Who generated the event
	World   string
	Message host.Message
	Data    map[string]any
}
