package simhost

import (
	"strings"
	"testing"

	"github.com/crystal-mush/localchat/pkg/host"
	"github.com/muesli/termenv"
)

func TestParseMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want []host.Segment
	}{
		{"plain", []host.Segment{{Text: "plain"}}},
		{"<color:green>[G] Alice</color><color:white>: hi</color>", []host.Segment{
			{Text: "[G] Alice", Color: "green"},
			{Text: ": hi", Color: "white"},
		}},
		{"a <color:red>b</color> c", []host.Segment{
			{Text: "a "},
			{Text: "b", Color: "red"},
			{Text: " c"},
		}},
	}
	for _, tt := range tests {
		msg, err := ParseMarkup(tt.in)
		if err != nil {
			t.Errorf("ParseMarkup(%q): %v", tt.in, err)
			continue
		}
		if len(msg.Segments) != len(tt.want) {
			t.Errorf("ParseMarkup(%q) = %+v", tt.in, msg.Segments)
			continue
		}
		for i := range tt.want {
			if msg.Segments[i] != tt.want[i] {
				t.Errorf("ParseMarkup(%q) segment %d = %+v, want %+v", tt.in, i, msg.Segments[i], tt.want[i])
			}
		}
	}
}

func TestParseMarkupErrors(t *testing.T) {
	for _, in := range []string{
		"<b>bold</b>",
		"<color:green>open",
		"<color:mauve>x</color>",
		"<color:green",
		"<color:green>a<color:red>b</color></color>",
	} {
		if _, err := ParseMarkup(in); err == nil {
			t.Errorf("ParseMarkup(%q) should fail", in)
		}
	}
}

func TestRenderer(t *testing.T) {
	msg, _ := ParseMarkup("<color:green>[G] Alice</color>: hi")

	plain := NewRenderer(termenv.Ascii).Render(msg)
	if plain != "[G] Alice: hi" {
		t.Errorf("unexpected plain rendering %q", plain)
	}
	colored := NewRenderer(termenv.ANSI256).Render(msg)
	if !strings.Contains(colored, "\x1b[") || !strings.Contains(colored, "[G] Alice") {
		t.Errorf("expected ANSI output, got %q", colored)
	}
	if got := NewRenderer(termenv.ANSI256).Render(host.Raw("raw")); got != "raw" {
		t.Errorf("raw messages pass through, got %q", got)
	}
}
