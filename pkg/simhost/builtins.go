package simhost

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/localchat/pkg/events"
	"github.com/crystal-mush/localchat/pkg/host"
)

type callCtx struct {
	sender  host.Sender
	player  *Player  // nil for the console
	session *Session // nil for the console
	args    []string
}

func (c *callCtx) reply(text string) {
	c.sender.SendMessage(host.Raw(text))
}

// needPlayer reports whether a player issued the command and tells the
// console otherwise.
func (c *callCtx) needPlayer() bool {
	if c.player == nil {
		c.reply("Only players can do that.")
		return false
	}
	return true
}

type builtin func(c *callCtx)

type builtinInfo struct {
	usage string
	desc  string
}

var builtinHelp = map[string]builtinInfo{
	"connect": {"connect <name> <password>", "Log in (before connecting)"},
	"tp":      {"/tp <x> <y> <z>", "Move to a position in your world"},
	"world":   {"/world [name]", "Show worlds or move to another one"},
	"who":     {"/who", "List online players"},
	"quit":    {"/quit", "Disconnect"},
	"help":    {"/help", "List commands"},
}

func (h *Host) builtinCommands() map[string]builtin {
	return map[string]builtin{
		"connect": h.cmdConnect,
		"tp":      h.cmdTeleport,
		"world":   h.cmdWorld,
		"who":     h.cmdWho,
		"quit":    h.cmdQuit,
		"help":    h.cmdHelp,
	}
}

func (h *Host) cmdConnect(c *callCtx) {
	c.reply("You are already connected.")
}

func (h *Host) cmdTeleport(c *callCtx) {
	if !c.needPlayer() {
		return
	}
	if len(c.args) != 3 {
		c.reply("Usage: " + builtinHelp["tp"].usage)
		return
	}
	var xyz [3]float64
	for i, a := range c.args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			c.reply(fmt.Sprintf("Not a number: %s", a))
			return
		}
		xyz[i] = v
	}
	c.player.MoveTo("", Position{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	h.moved(c.player)
}

func (h *Host) cmdWorld(c *callCtx) {
	worlds := h.Config().Worlds
	if len(c.args) == 0 {
		current := ""
		if c.player != nil {
			current = " You are in " + c.player.World() + "."
		}
		c.reply("Worlds: " + strings.Join(worlds, ", ") + "." + current)
		return
	}
	if !c.needPlayer() {
		return
	}
	for _, w := range worlds {
		if strings.EqualFold(w, c.args[0]) {
			c.player.MoveTo(w, c.player.Position())
			h.moved(c.player)
			return
		}
	}
	c.reply(fmt.Sprintf("No world named %s.", c.args[0]))
}

// moved tells p where it is now. WebSocket clients get the coordinates as
// data.
func (h *Host) moved(p *Player) {
	pos, world := p.Position(), p.World()
	h.bus.EmitToPlayer(p.id, events.Event{
		Type:    events.EvMove,
		Source:  p.id,
		World:   world,
		Message: host.Raw(fmt.Sprintf("You are at %.1f, %.1f, %.1f in %s.", pos.X, pos.Y, pos.Z, world)),
		Data: map[string]any{
			"world": world,
			"x":     pos.X,
			"y":     pos.Y,
			"z":     pos.Z,
		},
	})
}

func (h *Host) cmdWho(c *callCtx) {
	players := h.universe.OnlinePlayers()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Players online (%d):", len(players))
	who := make([]map[string]any, 0, len(players))
	for _, ref := range players {
		p := ref.(*Player)
		pos := p.Position()
		fmt.Fprintf(&sb, "\n  %-16s %-10s %.0f, %.0f, %.0f", p.name, p.World(), pos.X, pos.Y, pos.Z)
		who = append(who, map[string]any{"name": p.name, "world": p.World()})
	}
	if c.player == nil {
		c.reply(sb.String())
		return
	}
	h.bus.EmitToPlayer(c.player.id, events.Event{
		Type:    events.EvWho,
		Message: host.Raw(sb.String()),
		Data:    map[string]any{"players": who},
	})
}

func (h *Host) cmdQuit(c *callCtx) {
	if c.session == nil {
		c.reply("The console cannot quit; stop the server instead.")
		return
	}
	c.session.SendText("Goodbye!")
	c.session.Close()
}

func (h *Host) cmdHelp(c *callCtx) {
	var sb strings.Builder
	sb.WriteString("Host commands:")
	for _, name := range []string{"tp", "world", "who", "quit", "help"} {
		info := builtinHelp[name]
		fmt.Fprintf(&sb, "\n  %-22s %s", info.usage, info.desc)
	}
	cmds := h.commands.list()
	if len(cmds) > 0 {
		sb.WriteString("\nModule commands:")
	}
	for _, cmd := range cmds {
		fmt.Fprintf(&sb, "\n  %-22s %s", cmd.Usage(), cmd.Description())
		if len(cmd.aliases) > 0 {
			fmt.Fprintf(&sb, " (aliases: %s)", strings.Join(cmd.aliases, ", "))
		}
		if cmd.node != "" {
			fmt.Fprintf(&sb, " [%s]", cmd.node)
		}
	}
	c.reply(sb.String())
}
