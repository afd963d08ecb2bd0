package simhost

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/muesli/termenv"
)

// palette maps markup color names to terminal colors.
var palette = map[string]lipgloss.Color{
	"black":        "#000000",
	"dark_blue":    "#0000AA",
	"dark_green":   "#00AA00",
	"dark_aqua":    "#00AAAA",
	"dark_red":     "#AA0000",
	"dark_purple":  "#AA00AA",
	"gold":         "#FFAA00",
	"gray":         "#AAAAAA",
	"dark_gray":    "#555555",
	"blue":         "#5555FF",
	"green":        "#55FF55",
	"aqua":         "#55FFFF",
	"red":          "#FF5555",
	"light_purple": "#FF55FF",
	"yellow":       "#FFFF55",
	"white":        "#FFFFFF",
}

// Renderer turns messages into terminal text for line clients.
type Renderer struct {
	r      *lipgloss.Renderer
	styles map[string]lipgloss.Style
}

// NewRenderer renders with the given color profile. termenv.Ascii gives
// plain text.
func NewRenderer(profile termenv.Profile) *Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(profile)
	styles := make(map[string]lipgloss.Style, len(palette))
	for name, c := range palette {
		styles[name] = r.NewStyle().Foreground(c)
	}
	return &Renderer{r: r, styles: styles}
}

// Render returns msg as a single line of terminal text.
func (rr *Renderer) Render(msg host.Message) string {
	if !msg.IsRich() {
		return msg.Text
	}
	var sb strings.Builder
	for _, s := range msg.Segments {
		st, ok := rr.styles[s.Color]
		if !ok {
			sb.WriteString(s.Text)
			continue
		}
		sb.WriteString(st.Render(s.Text))
	}
	return sb.String()
}
