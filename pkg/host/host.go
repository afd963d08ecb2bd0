// Package host holds the small set of types every host release agrees on.
//
// Everything else a host exposes (event registries, the player universe,
// command objects, argument types, permission APIs) changes shape between
// releases and is reached through package compat by probing, never by a
// direct call against a concrete host type.
package host

import (
	"strings"

	"github.com/google/uuid"
)

// Segment is a styled run of text inside a Message.
type Segment struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// Message is what the host delivers to a player or command sender.
// Segments is nil for raw text.
type Message struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// Raw returns an unstyled message.
func Raw(text string) Message {
	return Message{Text: text}
}

// IsRich reports whether the message carries styled segments.
func (m Message) IsRich() bool {
	return len(m.Segments) > 0
}

// String returns the plain text of the message.
func (m Message) String() string {
	if m.Text != "" || len(m.Segments) == 0 {
		return m.Text
	}
	var sb strings.Builder
	for _, s := range m.Segments {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Sender is the origin of a command. Console and other non-interactive
// origins report uuid.Nil.
type Sender interface {
	UUID() uuid.UUID
	SendMessage(msg Message)
}

// PlayerRef is a handle to a connected player.
type PlayerRef interface {
	Sender
	Username() string
}

// Formatter renders a chat line for a single viewer.
type Formatter func(viewer PlayerRef, content string) Message

// ChatEvent is delivered to chat listeners before the host fans a line out.
// Listeners may replace Formatter and filter Targets in place. Content is
// read-only.
type ChatEvent struct {
	Sender    PlayerRef
	Content   string
	Targets   []PlayerRef
	Formatter Formatter
	Cancelled bool
}

// Cancel stops delivery of the event to every target.
func (e *ChatEvent) Cancel() {
	e.Cancelled = true
	e.Targets = e.Targets[:0]
}

// CommandContext is handed to a command's Run function.
type CommandContext interface {
	Sender() Sender
	Arg(name string) (string, bool)
}

// ArgSpec declares one positional argument. Type is a host argument type
// object, usually taken from the platform's ArgTypes value.
type ArgSpec struct {
	Name        string
	Description string
	Type        any
}

// CommandSpec describes a command the host should build.
type CommandSpec struct {
	Name        string
	Description string
	Args        []ArgSpec
	Subcommands []CommandSpec
	Run         func(ctx CommandContext)
}

// Platform is the entry point a host hands to an embedded module. The
// values it returns are opaque on purpose.
type Platform interface {
	EventRegistry() any
	Universe() any
	ArgTypes() any
	NewCommand(spec CommandSpec) any
	RegisterCommand(cmd any) error
}
