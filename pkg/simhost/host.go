// Package simhost is a small runnable game host. It exposes the host API a
// chat module is embedded through (event registry, player universe,
// command objects, argument types, markup) and serves players over a line
// protocol, WebSocket and a REST API.
package simhost

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/crystal-mush/localchat/pkg/config"
	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
)

// Options configures a Host.
type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics
	// Plain disables ANSI colors for line clients.
	Plain bool
}

// Host is the game host a module is installed into.
type Host struct {
	cfg      atomic.Pointer[config.Config]
	log      *zap.Logger
	bus      *events.Bus
	registry *EventRegistry
	universe *Universe
	commands *commandTable
	builtins map[string]builtin
	metrics  *Metrics
	render   *Renderer
	console  *Console
}

// New creates a host for cfg.
func New(cfg *config.Config, opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	profile := termenv.ANSI256
	if opts.Plain {
		profile = termenv.Ascii
	}
	h := &Host{
		log:      logger.Named("simhost"),
		bus:      events.NewBus(),
		commands: newCommandTable(),
		metrics:  opts.Metrics,
		render:   NewRenderer(profile),
	}
	h.cfg.Store(cfg)
	h.registry = newEventRegistry(h.log)
	h.universe = newUniverse(h)
	h.console = &Console{log: h.log.Named("console")}
	h.builtins = h.builtinCommands()
	return h
}

// Config returns the current configuration.
func (h *Host) Config() *config.Config { return h.cfg.Load() }

// Apply swaps in a reloaded configuration. Operators, grants and accounts
// take effect on the next check.
func (h *Host) Apply(cfg *config.Config) {
	if cfg != nil {
		h.cfg.Store(cfg)
	}
}

// Bus returns the host event bus.
func (h *Host) Bus() *events.Bus { return h.bus }

// Players returns the player universe.
func (h *Host) Players() *Universe { return h.universe }

// Registry returns the event registry.
func (h *Host) Registry() *EventRegistry { return h.registry }

// Console returns the console sender.
func (h *Host) Console() *Console { return h.console }

// EventRegistry implements host.Platform.
func (h *Host) EventRegistry() any { return h.registry }

// Universe implements host.Platform.
func (h *Host) Universe() any { return h.universe }

// ArgTypes implements host.Platform.
func (h *Host) ArgTypes() any { return argTypes }

// NewCommand implements host.Platform.
func (h *Host) NewCommand(spec host.CommandSpec) any { return newCommand(spec, "") }

// RegisterCommand implements host.Platform.
func (h *Host) RegisterCommand(cmd any) error {
	c, ok := cmd.(*Command)
	if !ok || c == nil {
		return fmt.Errorf("simhost: not a command object: %T", cmd)
	}
	if err := h.commands.add(c, func(name string) bool {
		_, ok := h.builtins[name]
		return ok
	}); err != nil {
		return err
	}
	h.log.Debug("command registered", zap.String("name", c.Name()), zap.Strings("aliases", c.aliases))
	return nil
}

// ParseMarkup implements the host's rich text parser.
func (h *Host) ParseMarkup(text string) (host.Message, error) {
	return ParseMarkup(text)
}

// Commands returns the module commands ordered by name.
func (h *Host) Commands() []*Command { return h.commands.list() }

var _ host.Platform = (*Host)(nil)

// notice builds a one-color host message.
func notice(color, text string) host.Message {
	return host.Message{Segments: []host.Segment{{Text: text, Color: color}}}
}

// Login attaches s to the account's player and subscribes it to the
// player's events. The first session of a player announces the join and
// fires the connect event.
func (h *Host) Login(s *Session, acct config.Account) *Player {
	id := AccountID(acct)
	p, first := h.universe.attach(s, id, acct.Username)
	s.setPlayer(p)
	h.bus.Subscribe(id, s)
	h.metrics.loggedIn(s.Transport, 1)
	h.log.Info("login",
		zap.Int("session", s.ID),
		zap.String("player", p.name),
		zap.Stringer("uuid", id),
		zap.Stringer("transport", s.Transport))

	if first {
		h.announce(p, events.EvConnect, p.name+" joined the server.")
		h.registry.Fire(KindConnect, &ConnectEvent{Player: p})
	}
	return p
}

// Logout detaches s from its player. The last session of a player takes
// the player offline.
func (h *Host) Logout(s *Session) {
	p, last := h.universe.detach(s)
	if p == nil {
		return
	}
	h.bus.Unsubscribe(p.id, s)
	h.metrics.loggedIn(s.Transport, -1)
	h.log.Info("logout", zap.Int("session", s.ID), zap.String("player", p.name), zap.Bool("offline", last))
	if last {
		h.announce(p, events.EvDisconnect, p.name+" left the server.")
		h.registry.Fire(KindDisconnect, &DisconnectEvent{Player: p})
	}
}

// announce tells every other online player about p.
func (h *Host) announce(p *Player, typ events.EventType, text string) {
	for _, other := range h.universe.OnlinePlayers() {
		if other.UUID() == p.id {
			continue
		}
		h.bus.EmitToPlayer(other.UUID(), events.Event{
			Type:    typ,
			Source:  p.id,
			World:   p.World(),
			Message: notice("yellow", text),
		})
	}
}

// HandleLine runs one line of input from a logged-in session: commands
// start with a slash, anything else is chat.
func (h *Host) HandleLine(s *Session, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	s.touch()
	p := s.Player()
	if p == nil {
		s.SendText("You are not connected. Use: connect <name> <password>")
		return
	}
	if strings.HasPrefix(line, "/") {
		h.Dispatch(p, s, line)
		return
	}
	h.Chat(p, line)
}

// RunConsole runs a command line as the console.
func (h *Host) RunConsole(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "/") {
		line = "/" + line
	}
	h.Dispatch(h.console, nil, line)
}

// Dispatch runs a command line for sender. s is the sender's session, nil
// for the console.
func (h *Host) Dispatch(sender host.Sender, s *Session, line string) {
	words := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(words) == 0 {
		return
	}
	name := strings.ToLower(words[0])
	if b, ok := h.builtins[name]; ok {
		h.metrics.command("builtin")
		p, _ := sender.(*Player)
		b(&callCtx{sender: sender, player: p, session: s, args: words[1:]})
		return
	}
	if c, ok := h.commands.lookup(name); ok {
		h.metrics.command("module")
		h.log.Debug("command", zap.String("name", name), zap.Stringer("sender", sender.UUID()))
		c.run(sender, words, line)
		return
	}
	h.metrics.command("unknown")
	sender.SendMessage(host.Raw("Unknown command /" + words[0] + ". Type /help for a list."))
}

// Chat submits a chat line from p. Listeners see the event first and may
// cancel it, narrow its targets or replace the formatter.
func (h *Host) Chat(p *Player, content string) {
	ev := &host.ChatEvent{
		Sender:    p,
		Content:   content,
		Targets:   h.universe.OnlinePlayers(),
		Formatter: defaultFormatter(p.name),
	}
	h.registry.Fire(KindChat, ev)
	if ev.Cancelled {
		h.metrics.chat("cancelled", 0)
		return
	}
	format := ev.Formatter
	if format == nil {
		format = defaultFormatter(p.name)
	}
	world := p.World()
	delivered := 0
	for _, t := range ev.Targets {
		if t == nil {
			continue
		}
		msg := format(t, content)
		if tp, ok := t.(*Player); ok {
			h.bus.EmitToPlayer(tp.id, events.Event{
				Type:    events.EvChat,
				Source:  p.id,
				World:   world,
				Message: msg,
				Data:    map[string]any{"sender_name": p.name},
			})
		} else {
			t.SendMessage(msg)
		}
		delivered++
	}
	h.metrics.chat("delivered", delivered)
}

func defaultFormatter(name string) host.Formatter {
	return func(_ host.PlayerRef, content string) host.Message {
		return host.Raw("<" + name + "> " + content)
	}
}

// Console is the server operator's command sender.
type Console struct {
	log *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

func (c *Console) UUID() uuid.UUID { return uuid.Nil }
func (c *Console) Name() string    { return "Console" }

// SetOutput makes the console print replies to w as well as logging them.
func (c *Console) SetOutput(w io.Writer) {
	c.mu.Lock()
	c.out = w
	c.mu.Unlock()
}

// SendMessage logs msg.
func (c *Console) SendMessage(msg host.Message) {
	text := msg.String()
	c.log.Info("reply", zap.String("text", text))
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out != nil {
		fmt.Fprintln(c.out, text)
	}
}
