package control

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/localchat/pkg/chat"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/google/uuid"
)

// Remainder returns what follows the first n words of a command line,
// ignoring a leading slash, with inner spacing kept. It returns "" when the
// line has no more than n words.
func Remainder(line string, n int) string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "/")
	for i := 0; i < n; i++ {
		s = strings.TrimLeft(s, " \t")
		j := strings.IndexAny(s, " \t")
		if j < 0 {
			return ""
		}
		s = s[j:]
	}
	return strings.TrimSpace(s)
}

func pmLine(prefix, who, text string) (markup, plain string) {
	markup = chat.Colored(chat.ColorPM, "["+prefix+" ") +
		chat.Colored(chat.ColorLocal, chat.Escape(who)) +
		chat.Colored(chat.ColorPM, "] ") +
		chat.Colored(chat.ColorText, chat.Escape(text))
	plain = "[" + prefix + " " + who + "] " + text
	return markup, plain
}

// onlineTarget finds an online player by UUID or by name.
func (p *Plane) onlineTarget(target string) (host.PlayerRef, bool) {
	target = strings.TrimSpace(target)
	if id, err := uuid.Parse(target); err == nil {
		return p.host.PlayerByID(id)
	}
	return p.host.PlayerByName(target)
}

// SendPrivateMessage delivers text from actor to the online player target,
// given by UUID or name. The actor's outcome carries the "[To X]" echo.
func (p *Plane) SendPrivateMessage(actor host.Sender, target, text string) Outcome {
	id := identity(actor)
	if id == uuid.Nil {
		return p.fail(ErrInvalidInput, playersOnly)
	}
	if p.msgDisabled.Load() && !p.CanBypass(actor) {
		return p.fail(fmt.Errorf("msg: %w", ErrDenied), "Private messages are currently disabled.")
	}
	to, ok := p.onlineTarget(target)
	if !ok || to.UUID() == uuid.Nil {
		return p.fail(fmt.Errorf("msg %q: %w", target, ErrNotFound), "Player not found (online).")
	}
	if to.UUID() == id {
		return p.fail(ErrInvalidInput, "You can't send /msg to yourself.")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return p.fail(ErrInvalidInput, "Usage: /msg <player> <message...>")
	}

	from := p.host.SenderName(actor)
	markup, plain := pmLine("From", from, text)
	to.SendMessage(chat.Render(p.host, markup, plain))

	markup, plain = pmLine("To", to.Username(), text)
	return Outcome{Message: chat.Render(p.host, markup, plain)}
}
