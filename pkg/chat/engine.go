// Package chat routes chat lines between players. Each line is tagged with
// the sender's mode, and LOCAL lines only reach players in the same world
// within the local radius.
package chat

import (
	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/compat"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRadius is the local chat radius in blocks.
const DefaultRadius = 50

// Locator reads where a player is.
type Locator interface {
	Position(handle any) compat.Vec3
	World(handle any) any
}

// Recorder receives routing statistics.
type Recorder interface {
	ChatRouted(mode chatstate.Mode, delivered, filtered int)
}

// Options configures an Engine.
type Options struct {
	Logger *zap.Logger
	// Radius returns the current local radius. It is read once per line.
	Radius   func() int
	Markup   MarkupParser
	Recorder Recorder
}

// Engine applies chat modes to host chat events.
type Engine struct {
	store  *chatstate.Store
	loc    Locator
	markup MarkupParser
	radius func() int
	rec    Recorder
	log    *zap.Logger
}

// NewEngine builds an engine over store and loc.
func NewEngine(store *chatstate.Store, loc Locator, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	radius := opts.Radius
	if radius == nil {
		radius = func() int { return DefaultRadius }
	}
	return &Engine{
		store:  store,
		loc:    loc,
		markup: opts.Markup,
		radius: radius,
		rec:    opts.Recorder,
		log:    logger.Named("chat"),
	}
}

// SenderMode returns the mode a line from sender is routed with. Senders
// without an identity always chat globally.
func (e *Engine) SenderMode(sender host.PlayerRef) chatstate.Mode {
	if sender == nil || sender.UUID() == uuid.Nil {
		return chatstate.Global
	}
	return e.store.Mode(sender.UUID())
}

// OnChat rewrites the event's formatter and, for LOCAL lines, drops
// targets out of range. Content is never modified.
func (e *Engine) OnChat(ev *host.ChatEvent) {
	if ev == nil || ev.Cancelled {
		return
	}
	mode := e.SenderMode(ev.Sender)
	name := "unknown"
	if ev.Sender != nil {
		name = ev.Sender.Username()
	}
	ev.Formatter = func(_ host.PlayerRef, content string) host.Message {
		return e.Format(mode, name, content)
	}

	filtered := 0
	if mode == chatstate.Local && ev.Sender != nil {
		before := len(ev.Targets)
		ev.Targets = e.FilterLocal(ev.Sender, ev.Targets)
		filtered = before - len(ev.Targets)
	}
	if e.rec != nil {
		e.rec.ChatRouted(mode, len(ev.Targets), filtered)
	}
	e.log.Debug("chat routed",
		zap.Stringer("mode", mode),
		zap.String("sender", name),
		zap.Int("targets", len(ev.Targets)),
		zap.Int("filtered", filtered))

	if ev.Sender != nil && ev.Sender.UUID() != uuid.Nil && e.store.Debug(ev.Sender.UUID()) {
		ev.Sender.SendMessage(host.Raw(DebugSummary(mode, ev.Targets)))
	}
}

// Format renders one chat line.
func (e *Engine) Format(mode chatstate.Mode, name, content string) host.Message {
	markup, plain := FormatLine(mode, name, content)
	return Render(e.markup, markup, plain)
}

// FilterLocal keeps the targets in sender's world whose squared distance
// to sender is at most radius². It filters in place and returns the
// shortened slice.
func (e *Engine) FilterLocal(sender host.PlayerRef, targets []host.PlayerRef) []host.PlayerRef {
	r := float64(e.radius())
	if r < 0 {
		r = 0
	}
	r2 := r * r
	origin := e.loc.Position(sender)
	world := e.loc.World(sender)

	kept := targets[:0]
	for _, t := range targets {
		if t == nil {
			continue
		}
		if e.loc.World(t) != world {
			continue
		}
		if origin.DistSq(e.loc.Position(t)) > r2 {
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(targets); i++ {
		targets[i] = nil
	}
	return kept
}
