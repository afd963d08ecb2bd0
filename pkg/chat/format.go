package chat

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/localchat/pkg/chatstate"
	"github.com/crystal-mush/localchat/pkg/host"
)

// Colors used in chat markup.
const (
	ColorGlobal = "green"
	ColorLocal  = "yellow"
	ColorText   = "white"
	ColorNotice = "gray"
	ColorError  = "red"
	ColorPM     = "light_purple"
)

// MarkupParser turns tagged text into a rich host message.
type MarkupParser interface {
	ParseMarkup(text string) (host.Message, bool)
}

var escaper = strings.NewReplacer("<", "‹", ">", "›")

// Escape replaces angle brackets so user text cannot open or close tags.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Colored wraps already escaped text in a color tag.
func Colored(color, text string) string {
	return fmt.Sprintf("<color:%s>%s</color>", color, text)
}

// Render parses markup with p and falls back to plain text.
func Render(p MarkupParser, markup, plain string) host.Message {
	if p != nil {
		if msg, ok := p.ParseMarkup(markup); ok {
			return msg
		}
	}
	return host.Raw(plain)
}

// System renders a one-color notice.
func System(p MarkupParser, color, text string) host.Message {
	return Render(p, Colored(color, Escape(text)), text)
}

// FormatLine builds the markup and plain forms of a chat line.
func FormatLine(mode chatstate.Mode, name, content string) (markup, plain string) {
	tag := mode.Tag() + " "
	color := ColorLocal
	if mode == chatstate.Global {
		color = ColorGlobal
	}
	markup = Colored(color, tag+Escape(name)) + Colored(ColorText, ": "+Escape(content))
	plain = tag + name + ": " + content
	return markup, plain
}

// debugShown is the number of target names listed in a debug summary.
const debugShown = 10

// DebugSummary describes where a line went, e.g.
// "DEBUG chat=LOCAL targets=2 -> Alice, Bob".
func DebugSummary(mode chatstate.Mode, targets []host.PlayerRef) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DEBUG chat=%s targets=%d -> ", mode, len(targets))
	shown := 0
	for _, t := range targets {
		if t == nil {
			continue
		}
		if shown == debugShown {
			sb.WriteString(", ...")
			break
		}
		if shown > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(t.Username())
		shown++
	}
	return sb.String()
}
