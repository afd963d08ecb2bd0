package simhost

import (
	"fmt"
	"strings"

	"github.com/crystal-mush/localchat/pkg/host"
)

const (
	colorOpen  = "<color:"
	colorClose = "</color>"
)

// ParseMarkup turns "<color:name>text</color>" runs into message segments.
// Text outside a tag keeps the default color. Tags do not nest.
func ParseMarkup(text string) (host.Message, error) {
	var segs []host.Segment
	rest := text
	for rest != "" {
		i := strings.IndexByte(rest, '<')
		if i < 0 {
			segs = append(segs, host.Segment{Text: rest})
			break
		}
		if i > 0 {
			segs = append(segs, host.Segment{Text: rest[:i]})
			rest = rest[i:]
		}
		if !strings.HasPrefix(rest, colorOpen) {
			return host.Message{}, fmt.Errorf("markup: unknown tag at %q", clip(rest))
		}
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return host.Message{}, fmt.Errorf("markup: unterminated tag at %q", clip(rest))
		}
		color := rest[len(colorOpen):end]
		if _, ok := palette[color]; !ok {
			return host.Message{}, fmt.Errorf("markup: unknown color %q", color)
		}
		rest = rest[end+1:]
		stop := strings.Index(rest, colorClose)
		if stop < 0 {
			return host.Message{}, fmt.Errorf("markup: missing %s after color %s", colorClose, color)
		}
		body := rest[:stop]
		if strings.ContainsRune(body, '<') {
			return host.Message{}, fmt.Errorf("markup: nested tag in %q", clip(body))
		}
		if body != "" {
			segs = append(segs, host.Segment{Text: body, Color: color})
		}
		rest = rest[stop+len(colorClose):]
	}
	return host.Message{Segments: segs}, nil
}

func clip(s string) string {
	if len(s) > 24 {
		return s[:24] + "..."
	}
	return s
}
