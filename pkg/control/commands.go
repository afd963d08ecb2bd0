package control

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/crystal-mush/localchat/pkg/chat"
	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const playersOnly = "This command can only be used by players."

func (p *Plane) ok(text string) Outcome {
	return Outcome{Message: host.Raw(text)}
}

func (p *Plane) okColored(color, text string) Outcome {
	return Outcome{Message: p.system(color, text)}
}

func (p *Plane) fail(err error, text string) Outcome {
	return Outcome{Err: err, Message: p.system(chat.ColorError, text)}
}

// deny logs and reports a failed authorization for command.
func (p *Plane) deny(actor host.Sender, command string) Outcome {
	p.log.Info("command denied",
		zap.String("command", command),
		zap.Stringer("actor", identity(actor)))
	return p.fail(fmt.Errorf("/%s: %w", command, ErrDenied),
		fmt.Sprintf("You don't have permission to use /%s.", command))
}

// SwitchMode moves a player to mode. Anyone may switch.
func (p *Plane) SwitchMode(actor host.Sender, mode chatstate.Mode) Outcome {
	id := identity(actor)
	if id == uuid.Nil {
		return p.fail(ErrInvalidInput, playersOnly)
	}
	p.store.SetMode(id, mode)
	if mode == chatstate.Global {
		return p.ok("You are now in GLOBAL chat. [G]")
	}
	return p.ok(fmt.Sprintf("You are now in LOCAL chat (%d blocks). [L]", p.Radius()))
}

// ToggleDebug flips the actor's debug flag. A host without a permission
// query lets the command through.
func (p *Plane) ToggleDebug(actor host.Sender) Outcome {
	id := identity(actor)
	if id == uuid.Nil {
		return p.fail(ErrInvalidInput, playersOnly)
	}
	if !p.Authorize(actor, PermChatDebug, true) {
		return p.deny(actor, "chatdebug")
	}
	if p.store.ToggleDebug(id) {
		return p.ok("ChatDebug: ON")
	}
	return p.ok("ChatDebug: OFF")
}

// SetLocalRadius parses raw as a block count and applies it. The radius is
// untouched when parsing fails.
func (p *Plane) SetLocalRadius(actor host.Sender, raw string) Outcome {
	if !p.Authorize(actor, PermLocalRadius, false) {
		return p.deny(actor, "localradius")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.fail(ErrInvalidInput, "Usage: /localradius <blocks>")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return p.fail(fmt.Errorf("localradius %q: %w", raw, ErrInvalidInput),
			"Invalid value. Use a whole number, e.g. /localradius 80")
	}
	if err := p.SetRadius(n); err != nil {
		return p.fail(fmt.Errorf("localradius %d: %w", n, err), "The radius must be 0 or more.")
	}
	p.record(actor, "localradius", "", strconv.Itoa(n))
	return p.ok(fmt.Sprintf("LOCAL chat radius is now %d blocks.", n))
}

// SetWarningMinutes parses raw as an interval in minutes; 0 disables the
// warning.
func (p *Plane) SetWarningMinutes(actor host.Sender, raw string) Outcome {
	if !p.Authorize(actor, PermChatWarning, false) {
		return p.deny(actor, "chatwarning")
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return p.fail(fmt.Errorf("chatwarning %q: %w", raw, ErrInvalidInput),
			"Usage: /chatwarning <minutes> (0 = disable)")
	}
	if err := p.ScheduleWarnings(n); err != nil {
		return p.fail(fmt.Errorf("chatwarning: %w", err), "The chat warning could not be scheduled.")
	}
	p.record(actor, "chatwarning", "", strconv.Itoa(n))
	if n == 0 {
		return p.okColored("yellow", "Chat warning disabled.")
	}
	return p.okColored("green", fmt.Sprintf("Chat warning set to every %d minute(s).", n))
}

// ToggleChatDisabled flips the global chat switch and tells everyone.
func (p *Plane) ToggleChatDisabled(actor host.Sender) Outcome {
	if !p.Authorize(actor, PermChatDisable, false) {
		return p.deny(actor, "chatdisable")
	}
	now := flip(&p.chatDisabled)
	p.record(actor, "chatdisable", "", strconv.FormatBool(now))
	p.log.Info("chat switch toggled", zap.Bool("disabled", now))
	if now {
		p.Broadcast(p.system(chat.ColorError, "Chat has been disabled by the staff."))
		return p.ok("Chat disabled.")
	}
	p.Broadcast(p.system("green", "Chat has been re-enabled by the staff."))
	return p.ok("Chat enabled.")
}

// ToggleChannelDisabled flips the switch for ch and tells everyone.
func (p *Plane) ToggleChannelDisabled(actor host.Sender, ch Channel) Outcome {
	command := ch.String() + "disable"
	if !p.Authorize(actor, PermChatDisable, false) {
		return p.deny(actor, command)
	}
	now := flip(p.channelFlag(ch))
	p.record(actor, command, "", strconv.FormatBool(now))

	label := "Local chat"
	if ch == ChannelMsg {
		label = "Private messages"
	}
	if now {
		p.Broadcast(p.system(chat.ColorError, label+" has been disabled by the staff."))
		return p.ok(label + " disabled.")
	}
	p.Broadcast(p.system("green", label+" has been re-enabled by the staff."))
	return p.ok(label + " enabled.")
}

// ClearChat pushes the chat history of every online player off screen.
func (p *Plane) ClearChat(actor host.Sender) Outcome {
	if !p.Authorize(actor, PermClearChat, false) {
		return p.deny(actor, "clearchat")
	}
	blank := host.Raw(" ")
	notice := p.system(chat.ColorNotice, "Chat was cleared by staff.")
	n := 0
	for _, pl := range p.host.OnlinePlayers() {
		if pl == nil {
			continue
		}
		for i := 0; i < p.clearLines; i++ {
			pl.SendMessage(blank)
		}
		pl.SendMessage(notice)
		n++
	}
	p.record(actor, "clearchat", "", strconv.Itoa(n))
	return p.ok(fmt.Sprintf("Chat cleared for %d player(s).", n))
}
