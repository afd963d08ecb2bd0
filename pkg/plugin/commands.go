package plugin

import (
	"errors"
	"fmt"

	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/control"
	"github.com/crystal-mush/localchat/pkg/host"
	"go.uber.org/zap"
)

// clearChatLevel is the host permission level asked for /clearchat.
const clearChatLevel = 4

// command is one host command plus how it is installed.
type command struct {
	spec     host.CommandSpec
	aliases  []string
	node     string // empty: the host should not restrict the command
	level    int
	trailing bool
}

type handler func(ctx host.CommandContext) control.Outcome

// run adapts h to a host Run function that replies with the outcome.
func (p *Plugin) run(name string, h handler) func(host.CommandContext) {
	return func(ctx host.CommandContext) {
		if ctx == nil {
			return
		}
		out := h(ctx)
		if p.metrics != nil {
			p.metrics.CommandRun(name, result(out.Err))
		}
		if s := ctx.Sender(); s != nil && out.Message.String() != "" {
			s.SendMessage(out.Message)
		}
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, control.ErrDenied):
		return "denied"
	case errors.Is(err, control.ErrNotFound):
		return "not_found"
	case errors.Is(err, control.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func arg(ctx host.CommandContext, name string) string {
	v, _ := ctx.Arg(name)
	return v
}

func (p *Plugin) commands() []command {
	greedy, _ := p.adapter.GreedyTextType(p.platform.ArgTypes())
	plane := p.plane

	chatAdmin := func(name, usage string, h func(s host.Sender, target string) control.Outcome) host.CommandSpec {
		return host.CommandSpec{
			Name:        name,
			Description: usage,
			Args:        []host.ArgSpec{{Name: "player", Description: "Player name or UUID"}},
			Run: p.run("chatadmin "+name, func(ctx host.CommandContext) control.Outcome {
				return h(ctx.Sender(), arg(ctx, "player"))
			}),
		}
	}

	return []command{
		{
			spec: host.CommandSpec{
				Name:        "g",
				Description: "Switch to global chat",
				Run: p.run("g", func(ctx host.CommandContext) control.Outcome {
					return plane.SwitchMode(ctx.Sender(), chatstate.Global)
				}),
			},
		},
		{
			spec: host.CommandSpec{
				Name:        "l",
				Description: "Switch to local chat",
				Run: p.run("l", func(ctx host.CommandContext) control.Outcome {
					return plane.SwitchMode(ctx.Sender(), chatstate.Local)
				}),
			},
		},
		{
			spec: host.CommandSpec{
				Name:        "chatdebug",
				Description: "Show where your chat lines go",
				Run: p.run("chatdebug", func(ctx host.CommandContext) control.Outcome {
					return plane.ToggleDebug(ctx.Sender())
				}),
			},
			node: control.PermChatDebug,
		},
		{
			spec: host.CommandSpec{
				Name:        "localradius",
				Description: "Set the local chat radius",
				Args:        []host.ArgSpec{{Name: "blocks", Description: "Radius in blocks"}},
				Run: p.run("localradius", func(ctx host.CommandContext) control.Outcome {
					return plane.SetLocalRadius(ctx.Sender(), arg(ctx, "blocks"))
				}),
			},
			node: control.PermLocalRadius,
		},
		{
			spec: host.CommandSpec{
				Name:        "chatwarning",
				Description: "Broadcast the chat rules every N minutes (0 = off)",
				Args:        []host.ArgSpec{{Name: "minutes", Description: "Interval in minutes"}},
				Run: p.run("chatwarning", func(ctx host.CommandContext) control.Outcome {
					return plane.SetWarningMinutes(ctx.Sender(), arg(ctx, "minutes"))
				}),
			},
			aliases: []string{"cw"},
			node:    control.PermChatWarning,
		},
		{
			spec: host.CommandSpec{
				Name:        "chatdisable",
				Description: "Toggle all chat",
				Run: p.run("chatdisable", func(ctx host.CommandContext) control.Outcome {
					return plane.ToggleChatDisabled(ctx.Sender())
				}),
			},
			aliases: []string{"cdb"},
			node:    control.PermChatDisable,
		},
		{
			spec: host.CommandSpec{
				Name:        "localdisable",
				Description: "Toggle local chat",
				Run: p.run("localdisable", func(ctx host.CommandContext) control.Outcome {
					return plane.ToggleChannelDisabled(ctx.Sender(), control.ChannelLocal)
				}),
			},
			node: control.PermChatDisable,
		},
		{
			spec: host.CommandSpec{
				Name:        "msgdisable",
				Description: "Toggle private messages",
				Run: p.run("msgdisable", func(ctx host.CommandContext) control.Outcome {
					return plane.ToggleChannelDisabled(ctx.Sender(), control.ChannelMsg)
				}),
			},
			node: control.PermChatDisable,
		},
		{
			spec: host.CommandSpec{
				Name:        "chatadmin",
				Description: "Manage chat admins",
				Subcommands: []host.CommandSpec{
					chatAdmin("add", "Usage: /chatadmin add <player|uuid>", plane.AddChatAdmin),
					chatAdmin("remove", "Usage: /chatadmin remove <player|uuid>", plane.RemoveChatAdmin),
					{
						Name:        "list",
						Description: "List chat admins",
						Run: p.run("chatadmin list", func(ctx host.CommandContext) control.Outcome {
							return plane.ListChatAdmins(ctx.Sender())
						}),
					},
				},
				Run: p.run("chatadmin", func(ctx host.CommandContext) control.Outcome {
					return control.Outcome{
						Err:     control.ErrInvalidInput,
						Message: host.Raw("Usage: /chatadmin <add|remove|list> [player|uuid]"),
					}
				}),
			},
			node: control.PermChatAdmin,
		},
		{
			spec: host.CommandSpec{
				Name:        "msg",
				Description: "Send a private message",
				Args: []host.ArgSpec{
					{Name: "player", Description: "Online player"},
					{Name: "message", Description: "Message text", Type: greedy},
				},
				Run: p.run("msg", p.privateMessage),
			},
			trailing: true,
		},
		{
			spec: host.CommandSpec{
				Name:        "clearchat",
				Description: "Clear chat for everyone",
				Run: p.run("clearchat", func(ctx host.CommandContext) control.Outcome {
					return plane.ClearChat(ctx.Sender())
				}),
			},
			aliases: []string{"cc"},
			node:    control.PermClearChat,
			level:   clearChatLevel,
		},
	}
}

// privateMessage prefers the raw input line so the message keeps its
// spacing; the bound argument is the fallback.
func (p *Plugin) privateMessage(ctx host.CommandContext) control.Outcome {
	text := ""
	if raw, ok := p.adapter.RawInput(ctx); ok {
		text = control.Remainder(raw, 2)
	}
	if text == "" {
		text = arg(ctx, "message")
	}
	return p.plane.SendPrivateMessage(ctx.Sender(), arg(ctx, "player"), text)
}

// register builds c on the host, applies its permission and argument
// settings and hands it over.
func (p *Plugin) register(c command) error {
	obj := p.platform.NewCommand(c.spec)
	if obj == nil {
		return fmt.Errorf("plugin: host built no command for /%s", c.spec.Name)
	}
	if c.node == "" {
		p.adapter.RelaxPermissions(obj)
	} else if !p.adapter.RequirePermissionNode(obj, c.node) {
		p.log.Debug("permission node not attached", zap.String("command", c.spec.Name))
	}
	if c.level > 0 {
		p.adapter.RequirePermissionLevel(obj, c.level)
	}
	if len(c.aliases) > 0 && !p.adapter.AddAliases(obj, c.aliases...) {
		p.log.Debug("aliases not registered", zap.String("command", c.spec.Name), zap.Strings("aliases", c.aliases))
	}
	if c.trailing {
		p.adapter.EnableTrailingArgs(obj)
		p.adapter.EnableGreedy(obj)
	}
	if err := p.platform.RegisterCommand(obj); err != nil {
		return fmt.Errorf("plugin: register /%s: %w", c.spec.Name, err)
	}
	return nil
}
